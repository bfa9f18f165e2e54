package cli

import (
	"context"

	"github.com/spf13/cobra"

	"doze/internal/clock"
	"doze/internal/orchestrator"
)

func init() {
	hookCmd.AddCommand(hookPreCmd)
	hookCmd.AddCommand(hookPostCmd)
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Sleep/wake transition hooks for the host power subsystem",
	Long: `The hook subcommands are invoked from a /usr/lib/systemd/system-sleep/
script: "pre" parks the guest before the host suspends, "post" restores
it after resume.

Hooks always exit 0 (except on configuration errors): a failure to park
the guest is logged and the host transition proceeds, because blocking
suspend indefinitely is worse than an unclean guest stop.`,
}

var hookPreCmd = &cobra.Command{
	Use:   "pre",
	Short: "Prepare the guest for host suspend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHookPhase("pre")
	},
}

var hookPostCmd = &cobra.Command{
	Use:   "post",
	Short: "Restore the guest after host resume",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHookPhase("post")
	},
}

func runHookPhase(phase string) error {
	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("hook.store_unavailable", "State store could not be opened, skipping guest handling", map[string]interface{}{
			"phase": phase,
			"error": err.Error(),
		})
		return nil
	}
	defer store.Close()

	ctrl, ch, err := connectWorkload(cfg, logger)
	if err != nil {
		logger.Error("hook.workload_unavailable", "Workload channel could not be built, skipping guest handling", map[string]interface{}{
			"phase": phase,
			"error": err.Error(),
		})
		return nil
	}
	defer ctrl.Close()

	orch := orchestrator.New(cfg, ctrl, ch, store, clock.Real(), logger)

	switch phase {
	case "pre":
		err = orch.PreSleep(context.Background())
	case "post":
		err = orch.PostWake(context.Background())
	}
	if err != nil {
		logger.Error("hook.phase_failed", "Hook phase finished with an error", map[string]interface{}{
			"phase": phase,
			"error": err.Error(),
		})
	}
	return nil
}
