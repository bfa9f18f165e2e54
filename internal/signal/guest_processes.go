package signal

import (
	"context"
	"fmt"
	"strings"

	"doze/internal/config"
	"doze/internal/guest"
)

// GuestProcessesSignal lists processes inside the guest and matches
// their names against configured patterns. Meant for workloads that are
// busy without burning CPU, like a paused render waiting on assets.
type GuestProcessesSignal struct {
	ch       guest.Channel
	command  string
	patterns []string
}

// NewGuestProcessesSignal builds the guest process watch provider.
func NewGuestProcessesSignal(cfg config.GuestProcessesSignalConfig, ch guest.Channel) *GuestProcessesSignal {
	return &GuestProcessesSignal{
		ch:       ch,
		command:  cfg.Command,
		patterns: cfg.Patterns,
	}
}

// Name implements Signal.
func (s *GuestProcessesSignal) Name() string { return NameGuestProcesses }

// Poll implements Signal.
func (s *GuestProcessesSignal) Poll(ctx context.Context) Reading {
	if len(s.patterns) == 0 {
		return idle(NameGuestProcesses, 0, 0, "no patterns configured")
	}

	out, bad, ok := guestExec(ctx, s.ch, NameGuestProcesses, s.command)
	if !ok {
		return bad
	}

	names := nonBlankLines(out)
	matches := matchNames(names, s.patterns)
	if len(matches) > 0 {
		return active(NameGuestProcesses, float64(len(matches)), 0, strings.Join(matches, ", "))
	}
	return idle(NameGuestProcesses, 0, 0, fmt.Sprintf("%d processes, none match", len(names)))
}

// matchNames returns the distinct names matching any pattern, in first
// occurrence order.
func matchNames(names, patterns []string) []string {
	var matches []string
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] || !matchAny(name, patterns) {
			continue
		}
		seen[name] = true
		matches = append(matches, name)
	}
	return matches
}
