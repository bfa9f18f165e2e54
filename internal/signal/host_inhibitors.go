package signal

import (
	"context"
	"os/exec"
	"strings"

	"doze/internal/config"
)

// HostInhibitorsSignal checks for systemd inhibitor locks held on the
// host. Package managers, backup jobs and media players take these to
// keep the machine awake mid-operation.
type HostInhibitorsSignal struct {
	what   []string
	ignore []string
	run    func(ctx context.Context) (string, error)
}

// NewHostInhibitorsSignal builds the host inhibitor provider.
func NewHostInhibitorsSignal(cfg config.HostInhibitorsSignalConfig) *HostInhibitorsSignal {
	return &HostInhibitorsSignal{
		what:   cfg.What,
		ignore: cfg.Ignore,
		run: func(ctx context.Context) (string, error) {
			out, err := exec.CommandContext(ctx, "systemd-inhibit", "--list", "--no-pager", "--no-legend").CombinedOutput()
			return string(out), err
		},
	}
}

// Name implements Signal.
func (s *HostInhibitorsSignal) Name() string { return NameHostInhibitors }

// Poll implements Signal.
func (s *HostInhibitorsSignal) Poll(ctx context.Context) Reading {
	out, err := s.run(ctx)
	if err != nil {
		return unavailable(NameHostInhibitors, err)
	}

	inhibitors := parseInhibitors(out, s.what, s.ignore)
	if len(inhibitors) > 0 {
		return active(NameHostInhibitors, float64(len(inhibitors)), 0, strings.Join(inhibitors, ", "))
	}
	return idle(NameHostInhibitors, 0, 0, "no matching inhibitors")
}

// parseInhibitors extracts the holders ("who") of block-mode inhibitor
// locks that match a what pattern. Lines are matched as whole text
// because column layout varies across systemd versions; the first field
// is the holder, the last the mode. Delay-mode locks do not count, as
// desktop daemons hold those permanently. Holders on the ignore list
// are dropped.
func parseInhibitors(output string, what, ignore []string) []string {
	var inhibitors []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" || !matchAny(line, what) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[len(fields)-1] != "block" {
			continue
		}
		who := fields[0]
		if len(ignore) > 0 && matchAny(who, ignore) {
			continue
		}
		inhibitors = append(inhibitors, who)
	}
	return inhibitors
}
