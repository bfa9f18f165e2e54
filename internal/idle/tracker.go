// Package idle decides when the workload has been unoccupied long
// enough to put the host to sleep. The Tracker is a state machine over
// per-cycle verdicts, persisted through the state store so an idle
// streak survives daemon restarts. It deliberately distrusts its own
// records: tracking from before the last wake, records left to age
// while the daemon was down, and timestamps from a clock that moved
// backwards are all discarded rather than acted on.
package idle

import (
	"fmt"
	"time"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/logging"
	"doze/internal/signal"
	"doze/internal/statestore"
)

// Decision is the outcome of one tracker cycle.
type Decision string

const (
	// DecisionNone means the workload is active; nothing is tracked.
	DecisionNone Decision = "none"
	// DecisionTracking means an idle streak is accumulating.
	DecisionTracking Decision = "tracking"
	// DecisionSuppressed means the threshold was reached inside the
	// post-wake grace period; tracking restarted instead of triggering.
	DecisionSuppressed Decision = "suppressed"
	// DecisionTrigger means the host should go to sleep now.
	DecisionTrigger Decision = "trigger"
)

// Step reports what one Advance call concluded.
type Step struct {
	Decision Decision
	// IdleSince is the start of the current idle streak; zero when the
	// workload is active.
	IdleSince time.Time
	// IdleFor is the idle duration at decision time.
	IdleFor time.Duration
	// GraceUntil is the end of the post-wake grace window; zero when no
	// wake has been recorded.
	GraceUntil time.Time
}

// Tracker advances the idle state machine one verdict at a time.
type Tracker struct {
	cfg    config.IdleConfig
	store  statestore.Store
	clk    clock.Clock
	logger *logging.Logger
}

// NewTracker creates a tracker backed by the given store.
func NewTracker(cfg config.IdleConfig, store statestore.Store, clk clock.Clock, logger *logging.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		store:  store,
		clk:    clk,
		logger: logger,
	}
}

// Advance feeds one aggregate verdict into the state machine and
// returns the resulting decision. Store errors abort the cycle; the
// caller logs and retries next tick.
func (t *Tracker) Advance(verdict signal.Verdict) (Step, error) {
	now := t.clk.Now()

	wake, hasWake, err := t.store.LoadWakeRecord()
	if err != nil {
		return Step{}, fmt.Errorf("load wake record: %w", err)
	}
	tracking, hasTracking, err := t.store.LoadIdleTracking()
	if err != nil {
		return Step{}, fmt.Errorf("load idle tracking: %w", err)
	}

	step := Step{Decision: DecisionNone}
	grace := time.Duration(t.cfg.GracePeriodSeconds) * time.Second
	if hasWake {
		step.GraceUntil = wake.WokeAt.Add(grace)
	}

	// Tracking that predates the last wake survived a full sleep/wake
	// cycle; its streak counted time the machine spent asleep.
	if hasTracking && hasWake && tracking.IdleSince.Before(wake.WokeAt) {
		t.logger.Info("idle.tracking.stale", "Discarding idle tracking from before the last wake", map[string]interface{}{
			"idle_since": tracking.IdleSince.Format(time.RFC3339),
			"woke_at":    wake.WokeAt.Format(time.RFC3339),
		})
		if err := t.store.ClearIdleTracking(); err != nil {
			return Step{}, fmt.Errorf("clear stale idle tracking: %w", err)
		}
		hasTracking = false
	}

	// A record that was not refreshed for several poll intervals means
	// the daemon was down. The gap is not evidence of idleness.
	if hasTracking && t.cfg.StalenessFactor > 0 {
		maxAge := time.Duration(t.cfg.StalenessFactor*t.cfg.PollIntervalSeconds) * time.Second
		if age := now.Sub(tracking.UpdatedAt); age > maxAge {
			t.logger.Info("idle.tracking.expired", "Discarding idle tracking that went unrefreshed", map[string]interface{}{
				"age_s":     int(age.Seconds()),
				"max_age_s": int(maxAge.Seconds()),
			})
			if err := t.store.ClearIdleTracking(); err != nil {
				return Step{}, fmt.Errorf("clear expired idle tracking: %w", err)
			}
			hasTracking = false
		}
	}

	// A clock that moved backwards must restart the streak, never
	// produce a negative duration.
	if hasTracking && tracking.IdleSince.After(now) {
		t.logger.Info("idle.clock.backward", "Clock moved backwards, restarting idle tracking", map[string]interface{}{
			"idle_since": tracking.IdleSince.Format(time.RFC3339),
			"now":        now.Format(time.RFC3339),
		})
		tracking.IdleSince = now
	}

	if verdict == signal.VerdictActive {
		if hasTracking {
			if err := t.store.ClearIdleTracking(); err != nil {
				return Step{}, fmt.Errorf("clear idle tracking: %w", err)
			}
			t.logger.Info("idle.tracking.cleared", "Activity returned", map[string]interface{}{
				"idle_for_s": int(now.Sub(tracking.IdleSince).Seconds()),
			})
		}
		return step, nil
	}

	if !hasTracking {
		tracking = statestore.IdleTracking{IdleSince: now, UpdatedAt: now}
		if err := t.store.SaveIdleTracking(tracking); err != nil {
			return Step{}, fmt.Errorf("save idle tracking: %w", err)
		}
		t.logger.Info("idle.tracking.started", "Workload went idle", map[string]interface{}{
			"threshold_s": t.cfg.IdleThresholdSeconds,
		})
		step.Decision = DecisionTracking
		step.IdleSince = tracking.IdleSince
		return step, nil
	}

	idleFor := now.Sub(tracking.IdleSince)
	threshold := time.Duration(t.cfg.IdleThresholdSeconds) * time.Second

	if idleFor >= threshold {
		if hasWake && now.Sub(wake.WokeAt) < grace {
			tracking = statestore.IdleTracking{IdleSince: now, UpdatedAt: now}
			if err := t.store.SaveIdleTracking(tracking); err != nil {
				return Step{}, fmt.Errorf("save idle tracking: %w", err)
			}
			t.logger.Info("idle.trigger.suppressed", "Sleep trigger suppressed inside the wake grace period", map[string]interface{}{
				"idle_for_s":   int(idleFor.Seconds()),
				"woke_at":      wake.WokeAt.Format(time.RFC3339),
				"grace_s":      t.cfg.GracePeriodSeconds,
				"since_wake_s": int(now.Sub(wake.WokeAt).Seconds()),
			})
			step.Decision = DecisionSuppressed
			step.IdleSince = now
			return step, nil
		}

		if err := t.store.ClearIdleTracking(); err != nil {
			return Step{}, fmt.Errorf("clear idle tracking: %w", err)
		}
		t.logger.Info("idle.threshold.reached", "Idle threshold reached", map[string]interface{}{
			"idle_for_s":  int(idleFor.Seconds()),
			"threshold_s": t.cfg.IdleThresholdSeconds,
		})
		step.Decision = DecisionTrigger
		step.IdleSince = tracking.IdleSince
		step.IdleFor = idleFor
		return step, nil
	}

	tracking.UpdatedAt = now
	if err := t.store.SaveIdleTracking(tracking); err != nil {
		return Step{}, fmt.Errorf("save idle tracking: %w", err)
	}
	t.logger.Debug("idle.tracking.progress", "Idle streak continues", map[string]interface{}{
		"idle_for_s":  int(idleFor.Seconds()),
		"threshold_s": t.cfg.IdleThresholdSeconds,
	})
	step.Decision = DecisionTracking
	step.IdleSince = tracking.IdleSince
	step.IdleFor = idleFor
	return step, nil
}
