// Package guest runs commands inside the managed VM. Two channels are
// supported: the QEMU guest agent reached through libvirt, and direct
// SSH for guests without an agent.
package guest

import (
	"context"
	"fmt"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/hypervisor"
	"doze/internal/logging"
)

// ExecResult is the outcome of one command inside the guest.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Channel executes commands inside the guest. Implementations must be
// safe for concurrent use; signal providers poll in parallel.
type Channel interface {
	// Name identifies the channel type for logging.
	Name() string
	// Ping verifies the guest side is reachable.
	Ping(ctx context.Context) error
	// Exec runs a shell command inside the guest and waits for it to
	// finish. A non-zero guest exit code is not an error; transport
	// failures are.
	Exec(ctx context.Context, command string) (ExecResult, error)
}

// New builds the channel selected by configuration.
func New(cfg config.GuestConfig, ctrl hypervisor.Controller, clk clock.Clock, logger *logging.Logger) (Channel, error) {
	switch cfg.Channel {
	case config.ChannelQGA:
		return NewQGAChannel(cfg, ctrl, clk, logger), nil
	case config.ChannelSSH:
		return NewSSHChannel(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown guest channel %q", cfg.Channel)
	}
}
