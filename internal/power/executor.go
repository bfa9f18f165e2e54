// Package power issues the host suspend command and sanity-checks the
// environment it depends on.
package power

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"doze/internal/config"
	"doze/internal/logging"
)

// Executor runs the configured host suspend command. In dry-run mode it
// logs instead of suspending, which makes threshold tuning safe on a
// live machine.
type Executor struct {
	command string
	dryRun  bool
	logger  *logging.Logger

	run      func(name string, args ...string) ([]byte, error)
	lookPath func(file string) (string, error)
	readFile func(name string) ([]byte, error)
}

// NewExecutor creates a suspend executor from the sleep configuration.
func NewExecutor(cfg config.SleepConfig, logger *logging.Logger) *Executor {
	return &Executor{
		command: cfg.Command,
		dryRun:  cfg.DryRun,
		logger:  logger,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
		lookPath: exec.LookPath,
		readFile: os.ReadFile,
	}
}

// Suspend issues the suspend command. With systemd the command returns
// once the suspend job is queued; the machine goes down moments later
// and the calling loop simply resumes after wake.
func (e *Executor) Suspend() error {
	if e.dryRun {
		e.logger.Info("power.suspend.dryrun", "Dry-run mode, would suspend now", map[string]interface{}{
			"command": e.command,
		})
		return nil
	}

	fields := strings.Fields(e.command)
	if len(fields) == 0 {
		return fmt.Errorf("suspend command is empty")
	}

	e.logger.Info("power.suspend.requested", "Suspending host", map[string]interface{}{
		"command": e.command,
	})

	output, err := e.run(fields[0], fields[1:]...)
	if err != nil {
		e.logger.Error("power.suspend.failed", "Suspend command failed", map[string]interface{}{
			"error":  err.Error(),
			"output": strings.TrimSpace(string(output)),
		})
		return fmt.Errorf("suspend command failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	e.logger.Info("power.suspend.issued", "Suspend command accepted", nil)
	return nil
}

// Preflight checks that suspending can plausibly work: the suspend
// binary exists, the kernel lists suspend-to-RAM as reachable, and the
// state directory accepts writes. Problems come back as warnings; none
// of them should keep the agent from starting, since conditions can
// change while it runs.
func (e *Executor) Preflight(stateDir string) []string {
	var warnings []string

	fields := strings.Fields(e.command)
	if len(fields) == 0 {
		warnings = append(warnings, "sleep.command is empty")
	} else if _, err := e.lookPath(fields[0]); err != nil {
		warnings = append(warnings, fmt.Sprintf("suspend command %q not found in PATH", fields[0]))
	}

	// /sys/power/state lists the sleep states this kernel can enter. An
	// unreadable file (containers, locked-down sysfs) proves nothing and
	// is skipped.
	if states, err := e.readFile("/sys/power/state"); err == nil {
		if !strings.Contains(string(states), "mem") {
			warnings = append(warnings, "kernel does not list mem in /sys/power/state, suspend to RAM unsupported")
		}
	}

	probe, err := os.CreateTemp(stateDir, ".doze-preflight-*")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("state directory %s is not writable: %v", stateDir, err))
	} else {
		probe.Close()
		os.Remove(probe.Name())
	}

	for _, w := range warnings {
		e.logger.Warn("power.preflight.warning", "Preflight check failed", map[string]interface{}{
			"warning": w,
		})
	}
	return warnings
}
