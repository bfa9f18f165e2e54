// Package statestore persists the small set of records doze needs across
// process restarts and sleep/wake transitions. Records live under the
// state directory (tmpfs by default) so they intentionally do not survive
// a reboot.
package statestore

import "time"

// Hibernation intent outcomes.
const (
	// OutcomePending is written before hibernation is issued. If the
	// process dies mid-transition, the post-wake hook still finds the
	// intent and can recover the guest.
	OutcomePending = "pending"
	// OutcomeHibernated means the guest reached a stopped state after a
	// hibernate command.
	OutcomeHibernated = "hibernated"
	// OutcomeWasShutDown means hibernation timed out and the guest was
	// forcibly shut down instead.
	OutcomeWasShutDown = "was-shut-down"
	// OutcomeNotRunning means the guest was already stopped before the
	// host went to sleep. The post-wake hook must not resurrect it.
	OutcomeNotRunning = "not-running"
)

// IdleTracking records when the workload was first observed idle. It is
// rewritten on every poll while the idle streak holds and cleared when
// activity returns.
type IdleTracking struct {
	IdleSince time.Time `json:"idle_since"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WakeRecord marks the most recent wake-up. Its timestamp anchors the
// post-wake grace period and the input-idle clamp.
type WakeRecord struct {
	WokeAt       time.Time `json:"woke_at"`
	TransitionID string    `json:"transition_id"`
}

// HibernationIntent records what happened to the guest before host
// sleep. It is consumed exactly once by the post-wake hook.
type HibernationIntent struct {
	Outcome      string    `json:"outcome"`
	RecordedAt   time.Time `json:"recorded_at"`
	TransitionID string    `json:"transition_id"`
}

// SignalSnapshot is one provider reading frozen into a Snapshot.
type SignalSnapshot struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// Snapshot is the agent's last published view of the world, consumed by
// the status command and the HTTP status endpoint.
type Snapshot struct {
	CheckedAt        time.Time        `json:"checked_at"`
	Verdict          string           `json:"verdict"`
	Reasons          []string         `json:"reasons,omitempty"`
	Decision         string           `json:"decision"`
	IdleSince        time.Time        `json:"idle_since"`
	IdleForSeconds   int64            `json:"idle_for_seconds"`
	ThresholdSeconds int64            `json:"threshold_seconds"`
	GraceUntil       time.Time        `json:"grace_until"`
	Signals          []SignalSnapshot `json:"signals"`
}
