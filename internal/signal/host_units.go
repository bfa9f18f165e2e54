package signal

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"doze/internal/config"
)

// HostUnitsSignal checks whether any of the configured systemd units is
// active on the host. Points at things like backup timers or a media
// server that must finish before the machine sleeps.
type HostUnitsSignal struct {
	units    []string
	isActive func(ctx context.Context, unit string) bool
}

// NewHostUnitsSignal builds the host unit watch provider.
func NewHostUnitsSignal(cfg config.HostUnitsSignalConfig) *HostUnitsSignal {
	return &HostUnitsSignal{
		units: cfg.Units,
		isActive: func(ctx context.Context, unit string) bool {
			return exec.CommandContext(ctx, "systemctl", "is-active", "--quiet", unit).Run() == nil
		},
	}
}

// Name implements Signal.
func (s *HostUnitsSignal) Name() string { return NameHostUnits }

// Poll implements Signal.
func (s *HostUnitsSignal) Poll(ctx context.Context) Reading {
	if len(s.units) == 0 {
		return idle(NameHostUnits, 0, 0, "no units configured")
	}

	var activeUnits []string
	for _, unit := range s.units {
		if s.isActive(ctx, unit) {
			activeUnits = append(activeUnits, unit)
		}
	}

	if len(activeUnits) > 0 {
		return active(NameHostUnits, float64(len(activeUnits)), 0, strings.Join(activeUnits, ", "))
	}
	return idle(NameHostUnits, 0, 0, fmt.Sprintf("none of %d units active", len(s.units)))
}
