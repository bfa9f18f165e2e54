package power

import (
	"errors"
	"strings"
	"testing"

	"doze/internal/config"
	"doze/internal/logging"
)

func newTestExecutor(cfg config.SleepConfig) *Executor {
	exe := NewExecutor(cfg, logging.NewLogger(logging.LevelError))
	exe.lookPath = func(string) (string, error) { return "/usr/bin/systemctl", nil }
	exe.readFile = func(string) ([]byte, error) { return []byte("freeze mem disk\n"), nil }
	return exe
}

func TestSuspendRunsConfiguredCommand(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})

	var gotName string
	var gotArgs []string
	exe.run = func(name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}

	if err := exe.Suspend(); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}
	if gotName != "systemctl" {
		t.Errorf("command = %q, want %q", gotName, "systemctl")
	}
	if len(gotArgs) != 1 || gotArgs[0] != "suspend" {
		t.Errorf("args = %v, want [suspend]", gotArgs)
	}
}

func TestSuspendDryRunSkipsCommand(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend", DryRun: true})

	ran := false
	exe.run = func(string, ...string) ([]byte, error) {
		ran = true
		return nil, nil
	}

	if err := exe.Suspend(); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}
	if ran {
		t.Error("dry-run executed the suspend command")
	}
}

func TestSuspendFailureIncludesOutput(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})
	exe.run = func(string, ...string) ([]byte, error) {
		return []byte("Failed to suspend: access denied\n"), errors.New("exit status 1")
	}

	err := exe.Suspend()
	if err == nil {
		t.Fatal("Suspend() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error = %v, want command output included", err)
	}
}

func TestPreflightCleanSystem(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})

	if warnings := exe.Preflight(t.TempDir()); len(warnings) != 0 {
		t.Errorf("Preflight() = %v, want no warnings", warnings)
	}
}

func TestPreflightMissingBinary(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})
	exe.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	warnings := exe.Preflight(t.TempDir())
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not found in PATH") {
		t.Errorf("Preflight() = %v, want missing-binary warning", warnings)
	}
}

func TestPreflightKernelWithoutSuspend(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})
	exe.readFile = func(string) ([]byte, error) { return []byte("disk\n"), nil }

	warnings := exe.Preflight(t.TempDir())
	if len(warnings) != 1 || !strings.Contains(warnings[0], "mem") {
		t.Errorf("Preflight() = %v, want kernel-support warning", warnings)
	}
}

func TestPreflightSkipsUnreadableKernelStates(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})
	exe.readFile = func(string) ([]byte, error) { return nil, errors.New("permission denied") }

	if warnings := exe.Preflight(t.TempDir()); len(warnings) != 0 {
		t.Errorf("Preflight() = %v, want no warnings", warnings)
	}
}

func TestPreflightUnwritableStateDir(t *testing.T) {
	exe := newTestExecutor(config.SleepConfig{Command: "systemctl suspend"})

	warnings := exe.Preflight("/nonexistent/doze-state")
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not writable") {
		t.Errorf("Preflight() = %v, want unwritable warning", warnings)
	}
}
