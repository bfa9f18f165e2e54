package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"doze/internal/power"
)

func init() {
	rootCmd.AddCommand(sleepNowCmd)
}

var sleepNowCmd = &cobra.Command{
	Use:   "sleep-now",
	Short: "Suspend the host immediately",
	Long: `Request a host suspend right away, without waiting for the idle
threshold. The sleep hooks still run through the power subsystem, so the
guest is parked exactly as it would be for an automatic suspend.`,
	RunE: runSleepNow,
}

func runSleepNow(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	executor := power.NewExecutor(cfg.Sleep, logger)

	if cfg.Sleep.DryRun {
		fmt.Println("Dry-run mode: logging the suspend request instead of executing it.")
	} else {
		fmt.Println("Suspending host...")
	}

	if err := executor.Suspend(); err != nil {
		return fmt.Errorf("suspend host: %w", err)
	}
	return nil
}
