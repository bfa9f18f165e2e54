package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"doze/internal/agent"
	"doze/internal/clock"
	"doze/internal/idle"
	"doze/internal/power"
	"doze/internal/signal"
	"doze/internal/statusapi"
)

func init() {
	agentCmd.Flags().BoolVar(&agentDryRun, "dry-run", false, "Log suspend decisions without executing them")
	rootCmd.AddCommand(agentCmd)
}

var agentDryRun bool

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the idle-watching agent loop",
	Long: `Run the continuously polling agent: evaluate all activity signals each
cycle, track how long the system has been idle, and suspend the host
once the idle threshold holds. Intended to run under systemd.`,
	RunE: runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if agentDryRun {
		cfg.Sleep.DryRun = true
	}

	logger := newLogger(cfg)
	defer logger.Close()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctrl, ch, err := connectWorkload(cfg, logger)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	clk := clock.Real()
	signals := signal.FromConfig(cfg, ctrl, ch, clk, logger)
	aggregator := signal.NewAggregator(signals, cfg.Signals, logger)
	tracker := idle.NewTracker(cfg.Idle, store, clk, logger)
	executor := power.NewExecutor(cfg.Sleep, logger)

	ag := agent.New(cfg, aggregator, tracker, executor, store, clk, logger)

	if cfg.API.Enabled {
		api := statusapi.NewServer(cfg.API, store, ag.HealthCheck, rootCmd.Version, logger)
		if err := api.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = api.Stop(ctx)
		}()
	}

	if err := ag.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
