package cli

import (
	"fmt"
	"os"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/fsutil"
	"doze/internal/guest"
	"doze/internal/hypervisor"
	"doze/internal/logging"
	"doze/internal/statestore"
)

// loadConfig loads and validates the layered configuration. A broken
// configuration is reported and the process exits with EX_CONFIG so
// systemd marks the unit failed instead of restart-looping it.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(exitConfig)
	}
	return cfg
}

// newLogger builds the logger for daemon-side commands (agent, hooks):
// structured events to stderr or to the configured file.
func newLogger(cfg config.Config) *logging.Logger {
	level := logging.Level(cfg.Logging.Level)

	if cfg.Logging.File != "" {
		logger, err := logging.NewFileLogger(level, cfg.Logging.File)
		if err == nil {
			return logger
		}
		fmt.Fprintf(os.Stderr, "Warning: could not open log file, using stderr: %v\n", err)
	}

	if cfg.Logging.Format == string(logging.FormatText) {
		return logging.NewTextLogger(level)
	}
	return logging.NewLogger(level)
}

// newInteractiveLogger builds the quiet human-readable logger used by
// one-shot commands, where the command output itself is the interface
// and log events only surface problems.
func newInteractiveLogger() *logging.Logger {
	return logging.NewTextLogger(logging.LevelWarn)
}

// openStore opens the configured state store backend over the resolved
// state directory.
func openStore(cfg config.Config, logger *logging.Logger) (statestore.Store, error) {
	dir := fsutil.GetStateDir(fsutil.DefaultStateDir)
	return statestore.Open(cfg.Store.Backend, dir, logger)
}

// connectWorkload builds the hypervisor controller and the guest command
// channel for the managed domain. The controller dials lazily, so this
// never fails on an unreachable libvirtd; channel construction fails only
// on unusable configuration (e.g. missing SSH key).
func connectWorkload(cfg config.Config, logger *logging.Logger) (hypervisor.Controller, guest.Channel, error) {
	ctrl := hypervisor.NewLibvirtController(cfg.Workload.LibvirtSocket, cfg.Workload.Name, logger)
	ch, err := guest.New(cfg.Guest, ctrl, clock.Real(), logger)
	if err != nil {
		_ = ctrl.Close()
		return nil, nil, fmt.Errorf("build guest channel: %w", err)
	}
	return ctrl, ch, nil
}
