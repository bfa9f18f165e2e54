package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"doze/internal/config"
)

// HostProcessesSignal matches process names on the host against
// configured patterns. Useful when host-side jobs (backups, transcodes)
// should keep the machine up even though the guest is idle.
type HostProcessesSignal struct {
	patterns []string
	names    func(ctx context.Context) ([]string, error)
}

// NewHostProcessesSignal builds the host process watch provider.
func NewHostProcessesSignal(cfg config.HostProcessesSignalConfig) *HostProcessesSignal {
	return &HostProcessesSignal{
		patterns: cfg.Patterns,
		names:    hostProcessNames,
	}
}

// Name implements Signal.
func (s *HostProcessesSignal) Name() string { return NameHostProcesses }

// Poll implements Signal.
func (s *HostProcessesSignal) Poll(ctx context.Context) Reading {
	if len(s.patterns) == 0 {
		return idle(NameHostProcesses, 0, 0, "no patterns configured")
	}

	names, err := s.names(ctx)
	if err != nil {
		return unavailable(NameHostProcesses, err)
	}

	matches := matchNames(names, s.patterns)
	if len(matches) > 0 {
		return active(NameHostProcesses, float64(len(matches)), 0, strings.Join(matches, ", "))
	}
	return idle(NameHostProcesses, 0, 0, fmt.Sprintf("%d processes, none match", len(names)))
}

// hostProcessNames lists the names of all running host processes.
// Processes that vanish mid-scan are skipped, not errors.
func hostProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
