package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the accumulated idle tracking",
	Long: `Discard the persisted idle-since record. The agent starts a fresh idle
streak on its next cycle, so an imminent automatic suspend is pushed
back by a full idle threshold.`,
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ClearIdleTracking(); err != nil {
		return fmt.Errorf("clear idle tracking: %w", err)
	}

	fmt.Println("Idle tracking cleared.")
	return nil
}
