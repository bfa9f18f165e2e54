package signal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"doze/internal/config"
	"doze/internal/guest"
)

// GuestInputSignal reads the time since the last user input inside the
// guest. The probe command prints milliseconds; recent input means a
// person is at the machine. Note the raw counter survives suspend, so
// the aggregator caps it at the time since the last wake.
type GuestInputSignal struct {
	ch          guest.Channel
	command     string
	idleSeconds float64
}

// NewGuestInputSignal builds the guest input idle provider.
func NewGuestInputSignal(cfg config.GuestInputSignalConfig, ch guest.Channel) *GuestInputSignal {
	return &GuestInputSignal{
		ch:          ch,
		command:     cfg.Command,
		idleSeconds: float64(cfg.IdleSeconds),
	}
}

// Name implements Signal.
func (s *GuestInputSignal) Name() string { return NameGuestInput }

// Poll implements Signal.
func (s *GuestInputSignal) Poll(ctx context.Context) Reading {
	out, bad, ok := guestExec(ctx, s.ch, NameGuestInput, s.command)
	if !ok {
		return bad
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return unavailablef(NameGuestInput, "probe printed no value")
	}
	millis, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return unavailablef(NameGuestInput, "cannot parse %q as milliseconds", fields[0])
	}
	if millis < 0 {
		return unavailablef(NameGuestInput, "probe reported negative idle time %dms", millis)
	}

	seconds := float64(millis) / 1000
	if seconds < s.idleSeconds {
		return active(NameGuestInput, seconds, s.idleSeconds, fmt.Sprintf("input %.0fs ago", seconds))
	}
	return idle(NameGuestInput, seconds, s.idleSeconds, fmt.Sprintf("no input for %.0fs", seconds))
}
