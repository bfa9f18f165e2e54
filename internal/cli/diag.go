package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"doze/internal/diag"
	"doze/internal/statestore"
)

func init() {
	diagCmd.Flags().StringVarP(&diagOutput, "output", "o", "", "Bundle path (default doze-diag-<timestamp>.zip)")
	diagCmd.Flags().BoolVar(&diagNoLogs, "no-logs", false, "Skip the log tail")
	diagCmd.Flags().BoolVar(&diagNoConfig, "no-config", false, "Skip the configuration files")
	diagCmd.Flags().BoolVar(&diagNoState, "no-state", false, "Skip the persisted state records")
	rootCmd.AddCommand(diagCmd)
}

var (
	diagOutput   string
	diagNoLogs   bool
	diagNoConfig bool
	diagNoState  bool
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Collect a support bundle",
	Long: `Write a ZIP with the effective configuration (secrets redacted), the
persisted state records, a log tail and the Wake-on-LAN status, plus a
manifest with checksums. Attach the bundle to bug reports instead of
collecting files by hand.`,
	RunE: runDiag,
}

func runDiag(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	bundleCfg := diag.NewConfig(rootCmd.Version)
	bundleCfg.Domain = cfg.Workload.Name
	bundleCfg.LogFile = cfg.Logging.File
	bundleCfg.WoLInterface = cfg.WoL.Interface
	bundleCfg.IncludeLogs = !diagNoLogs
	bundleCfg.IncludeConfig = !diagNoConfig
	bundleCfg.IncludeState = !diagNoState
	if diagOutput != "" {
		bundleCfg.OutputPath = diagOutput
	}

	// The bundle matters most exactly when parts of the system are broken,
	// so a store that will not open shrinks the contents instead of
	// aborting the collection.
	var store statestore.Store
	if s, err := openStore(cfg, logger); err == nil {
		store = s
		defer store.Close()
	}

	path, err := diag.NewPackager(bundleCfg, store, logger).CreatePackage()
	if err != nil {
		return fmt.Errorf("create support bundle: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat support bundle: %w", err)
	}
	fmt.Printf("Support bundle written to %s (%d bytes)\n", path, info.Size())
	return nil
}
