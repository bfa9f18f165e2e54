package signal

import (
	"context"
	"fmt"

	"doze/internal/config"
	"doze/internal/guest"
)

// GuestPowerSignal asks the guest OS for outstanding power requests:
// systemd-inhibit locks on Linux guests, `powercfg /requests` output on
// Windows guests. A guest holding its own sleep open should hold the
// host open too.
type GuestPowerSignal struct {
	ch       guest.Channel
	command  string
	patterns []string
}

// NewGuestPowerSignal builds the guest power request provider.
func NewGuestPowerSignal(cfg config.GuestPowerSignalConfig, ch guest.Channel) *GuestPowerSignal {
	return &GuestPowerSignal{
		ch:       ch,
		command:  cfg.Command,
		patterns: cfg.Patterns,
	}
}

// Name implements Signal.
func (s *GuestPowerSignal) Name() string { return NameGuestPower }

// Poll implements Signal.
func (s *GuestPowerSignal) Poll(ctx context.Context) Reading {
	out, bad, ok := guestExec(ctx, s.ch, NameGuestPower, s.command)
	if !ok {
		return bad
	}

	var requests []string
	for _, line := range nonBlankLines(out) {
		if len(s.patterns) > 0 && !matchAny(line, s.patterns) {
			continue
		}
		requests = append(requests, line)
	}

	if len(requests) > 0 {
		return active(NameGuestPower, float64(len(requests)), 0,
			fmt.Sprintf("%d power requests, first: %s", len(requests), requests[0]))
	}
	return idle(NameGuestPower, 0, 0, "no power requests")
}
