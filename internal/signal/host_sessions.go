package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// HostSessionsSignal counts remote interactive sessions on the host
// itself. Somebody SSHed into the hypervisor must not lose their shell
// to a suspend.
type HostSessionsSignal struct {
	users func(ctx context.Context) ([]host.UserStat, error)
}

// NewHostSessionsSignal builds the host session provider.
func NewHostSessionsSignal() *HostSessionsSignal {
	return &HostSessionsSignal{users: host.UsersWithContext}
}

// Name implements Signal.
func (s *HostSessionsSignal) Name() string { return NameHostSessions }

// Poll implements Signal.
func (s *HostSessionsSignal) Poll(ctx context.Context) Reading {
	users, err := s.users(ctx)
	if err != nil {
		return unavailable(NameHostSessions, err)
	}

	remote := remoteSessions(users)
	if len(remote) > 0 {
		return active(NameHostSessions, float64(len(remote)), 0, strings.Join(remote, ", "))
	}
	return idle(NameHostSessions, 0, 0, fmt.Sprintf("%d sessions, none remote", len(users)))
}

// remoteSessions filters login records down to sessions coming from
// another machine. Local console logins and X displays (hosts like
// ":0") stay out; the input signal covers those.
func remoteSessions(users []host.UserStat) []string {
	var remote []string
	for _, u := range users {
		if u.Host == "" || u.Host == "localhost" || strings.HasPrefix(u.Host, ":") {
			continue
		}
		remote = append(remote, fmt.Sprintf("%s@%s on %s", u.User, u.Host, u.Terminal))
	}
	return remote
}
