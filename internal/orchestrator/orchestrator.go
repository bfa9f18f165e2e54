// Package orchestrator runs the two halves of a sleep transition:
// hibernating the guest before the host suspends and restoring it after
// resume. Both phases run in short-lived hook processes, coordinate
// with the agent only through the state store, and never block the host
// power transition; guest protection is best-effort by policy.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/guest"
	"doze/internal/hypervisor"
	"doze/internal/logging"
	"doze/internal/metrics"
	"doze/internal/statestore"
)

// Orchestrator coordinates guest hibernation and restore around a host
// sleep transition.
type Orchestrator struct {
	cfg    config.Config
	ctrl   hypervisor.Controller
	ch     guest.Channel
	store  statestore.Store
	clk    clock.Clock
	logger *logging.Logger
}

// New creates an orchestrator.
func New(cfg config.Config, ctrl hypervisor.Controller, ch guest.Channel, store statestore.Store, clk clock.Clock, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		ctrl:   ctrl,
		ch:     ch,
		store:  store,
		clk:    clk,
		logger: logger,
	}
}

// PreSleep prepares the guest for host suspend: hibernate it, wait for
// the hibernation to be confirmed, fall back to a graceful shutdown
// when it is not. An outcome is recorded on every path before
// returning, and the host suspend proceeds no matter what happened
// here. Suspending with an imperfectly protected guest beats a host
// that can never sleep.
func (o *Orchestrator) PreSleep(ctx context.Context) error {
	transitionID := uuid.NewString()
	o.logger.Info("sleep.pre.start", "Preparing guest for host suspend", map[string]interface{}{
		"transition_id": transitionID,
		"domain":        o.cfg.Workload.Name,
	})

	state, err := o.ctrl.State()
	if err != nil {
		// The domain cannot be seen at all. Record a pending intent so
		// the post-wake hook still attempts recovery.
		o.recordOutcome(transitionID, statestore.OutcomePending)
		return fmt.Errorf("query domain state: %w", err)
	}

	if state != hypervisor.StateRunning {
		o.logger.Info("sleep.pre.not_running", "Guest is not running, nothing to protect", map[string]interface{}{
			"transition_id": transitionID,
			"state":         string(state),
		})
		o.recordOutcome(transitionID, statestore.OutcomeNotRunning)
		return nil
	}

	if !o.cfg.Hibernate.Enabled {
		o.logger.Warn("sleep.pre.hibernate_disabled", "Hibernation disabled, suspending with the guest running", map[string]interface{}{
			"transition_id": transitionID,
		})
		return nil
	}

	// Crash marker. If this process dies mid-transition, the post-wake
	// hook finds the intent and can still recover the guest.
	o.recordOutcome(transitionID, statestore.OutcomePending)

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.Hibernate.ProbeTimeoutSeconds)*time.Second)
	err = o.ch.Ping(probeCtx)
	cancel()
	if err != nil {
		o.logger.Warn("sleep.pre.channel.degraded", "Guest channel unresponsive, issuing hibernate blind", map[string]interface{}{
			"transition_id": transitionID,
			"channel":       o.ch.Name(),
			"error":         err.Error(),
		})
	}

	o.issueHibernate(ctx, transitionID)

	if o.waitForStop(transitionID) {
		o.recordOutcome(transitionID, statestore.OutcomeHibernated)
		o.logger.Info("sleep.pre.hibernated", "Guest hibernation confirmed", map[string]interface{}{
			"transition_id": transitionID,
		})
		return nil
	}

	o.logger.Warn("sleep.pre.hibernate.timeout", "Guest did not stop in time, falling back to graceful shutdown", map[string]interface{}{
		"transition_id": transitionID,
		"timeout_s":     o.cfg.Hibernate.TimeoutSeconds,
	})
	o.gracefulShutdown(transitionID)
	o.recordOutcome(transitionID, statestore.OutcomeWasShutDown)
	return nil
}

// issueHibernate sends the hibernate command into the guest. Channel
// errors are expected here: hibernation tears the channel down before
// the command can report back, so no response does not mean failure.
func (o *Orchestrator) issueHibernate(ctx context.Context, transitionID string) {
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.Guest.ExecTimeoutSeconds)*time.Second)
	defer cancel()

	result, err := o.ch.Exec(execCtx, o.cfg.Hibernate.Command)
	switch {
	case err != nil:
		o.logger.Info("sleep.pre.hibernate.no_response", "Hibernate command gave no response", map[string]interface{}{
			"transition_id": transitionID,
			"error":         err.Error(),
		})
	case result.ExitCode != 0:
		o.logger.Warn("sleep.pre.hibernate.rejected", "Hibernate command exited non-zero", map[string]interface{}{
			"transition_id": transitionID,
			"exit_code":     result.ExitCode,
			"stderr":        result.Stderr,
		})
	default:
		o.logger.Info("sleep.pre.hibernate.issued", "Hibernate command accepted", map[string]interface{}{
			"transition_id": transitionID,
		})
	}
}

// waitForStop polls the domain until it reports stopped for the
// configured number of consecutive readings. A single stopped reading
// can be a reboot in flight, so one flicker must not count as done.
func (o *Orchestrator) waitForStop(transitionID string) bool {
	interval := time.Duration(o.cfg.Hibernate.PollIntervalSeconds) * time.Second
	deadline := o.clk.Now().Add(time.Duration(o.cfg.Hibernate.TimeoutSeconds) * time.Second)

	consecutive := 0
	for o.clk.Now().Before(deadline) {
		o.clk.Sleep(interval)

		state, err := o.ctrl.State()
		if err != nil {
			consecutive = 0
			o.logger.Debug("sleep.pre.poll.error", "State poll failed during hibernation wait", map[string]interface{}{
				"transition_id": transitionID,
				"error":         err.Error(),
			})
			continue
		}
		if state == hypervisor.StateStopped {
			consecutive++
			if consecutive >= o.cfg.Hibernate.StoppedConfirmations {
				return true
			}
			continue
		}
		consecutive = 0
	}
	return false
}

// gracefulShutdown requests an ACPI shutdown and waits out its own
// shorter timeout. If even that fails the domain is destroyed:
// suspending the host under a guest that still owns passthrough
// hardware risks wedging the devices on resume.
func (o *Orchestrator) gracefulShutdown(transitionID string) {
	if err := o.ctrl.Shutdown(); err != nil {
		o.logger.Error("sleep.pre.shutdown.failed", "Graceful shutdown request failed", map[string]interface{}{
			"transition_id": transitionID,
			"error":         err.Error(),
		})
	}

	interval := time.Duration(o.cfg.Hibernate.PollIntervalSeconds) * time.Second
	deadline := o.clk.Now().Add(time.Duration(o.cfg.Hibernate.ShutdownTimeoutSeconds) * time.Second)
	for o.clk.Now().Before(deadline) {
		o.clk.Sleep(interval)

		state, err := o.ctrl.State()
		if err == nil && state == hypervisor.StateStopped {
			o.logger.Info("sleep.pre.shutdown.done", "Guest shut down", map[string]interface{}{
				"transition_id": transitionID,
			})
			return
		}
	}

	o.logger.Error("sleep.pre.shutdown.timeout", "Guest still up after shutdown timeout, destroying it", map[string]interface{}{
		"transition_id": transitionID,
		"timeout_s":     o.cfg.Hibernate.ShutdownTimeoutSeconds,
	})
	if err := o.ctrl.Destroy(); err != nil {
		o.logger.Error("sleep.pre.destroy.failed", "Could not destroy the guest", map[string]interface{}{
			"transition_id": transitionID,
			"error":         err.Error(),
		})
	}
}

// PostWake restores the guest after host resume, driven by the intent
// the pre-sleep phase left behind. The intent is consumed exactly once;
// the wake record is written as the last step on every path, including
// the no-intent and error paths. A wake happened regardless of how well
// the restore went, and the grace period must engage either way.
func (o *Orchestrator) PostWake(ctx context.Context) (err error) {
	transitionID := uuid.NewString()

	intent, found, loadErr := o.store.TakeHibernationIntent()
	if found && intent.TransitionID != "" {
		transitionID = intent.TransitionID
	}

	defer func() {
		record := statestore.WakeRecord{WokeAt: o.clk.Now(), TransitionID: transitionID}
		if saveErr := o.store.SaveWakeRecord(record); saveErr != nil {
			o.logger.Error("sleep.post.wake_record.failed", "Could not write wake record", map[string]interface{}{
				"transition_id": transitionID,
				"error":         saveErr.Error(),
			})
			if err == nil {
				err = fmt.Errorf("save wake record: %w", saveErr)
			}
			return
		}
		o.logger.Info("sleep.post.wake_record", "Wake recorded", map[string]interface{}{
			"transition_id": transitionID,
			"woke_at":       record.WokeAt.Format(time.RFC3339),
		})
		metrics.WakesTotal.Inc()
	}()

	o.logger.Info("sleep.post.start", "Host resumed", map[string]interface{}{
		"transition_id": transitionID,
		"domain":        o.cfg.Workload.Name,
	})

	if loadErr != nil {
		return fmt.Errorf("take hibernation intent: %w", loadErr)
	}
	if !found {
		o.logger.Info("sleep.post.no_intent", "No hibernation intent, nothing to restore", nil)
		return nil
	}

	switch intent.Outcome {
	case statestore.OutcomeNotRunning:
		o.logger.Info("sleep.post.left_stopped", "Guest was already stopped before sleep, leaving it stopped", map[string]interface{}{
			"transition_id": transitionID,
		})
		return nil
	case statestore.OutcomeHibernated, statestore.OutcomeWasShutDown, statestore.OutcomePending:
		return o.restoreGuest(transitionID, intent.Outcome)
	default:
		o.logger.Warn("sleep.post.unknown_outcome", "Ignoring unknown hibernation outcome", map[string]interface{}{
			"transition_id": transitionID,
			"outcome":       intent.Outcome,
		})
		return nil
	}
}

func (o *Orchestrator) restoreGuest(transitionID, outcome string) error {
	state, err := o.ctrl.State()
	if err != nil {
		return fmt.Errorf("query domain state: %w", err)
	}

	if state == hypervisor.StateRunning {
		// Hibernation may not have finished before the host went down,
		// in which case the resumed guest is still writing its image
		// out. Give it a short window to stop on its own before
		// concluding it is simply up and usable.
		state = o.awaitResumeRace(transitionID)
		if state == hypervisor.StateRunning {
			o.logger.Info("sleep.post.already_running", "Guest kept running through the transition", map[string]interface{}{
				"transition_id": transitionID,
			})
			return nil
		}
	}

	if state != hypervisor.StateStopped {
		o.logger.Warn("sleep.post.unstartable", "Guest is neither stopped nor running, leaving it alone", map[string]interface{}{
			"transition_id": transitionID,
			"state":         string(state),
		})
		return nil
	}

	// Passthrough devices are not always usable the instant the kernel
	// reports resume; give the host a moment before starting.
	o.clk.Sleep(time.Duration(o.cfg.Sleep.StabilizeDelaySeconds) * time.Second)

	if err := o.ctrl.Start(); err != nil {
		// The start may have lost a race with another actor.
		if state, stateErr := o.ctrl.State(); stateErr == nil && state == hypervisor.StateRunning {
			o.logger.Info("sleep.post.start.raced", "Start failed but guest is running", map[string]interface{}{
				"transition_id": transitionID,
			})
			return nil
		}
		o.logger.Error("sleep.post.start.failed", "Could not start the guest", map[string]interface{}{
			"transition_id": transitionID,
			"error":         err.Error(),
		})
		return fmt.Errorf("start domain: %w", err)
	}

	o.logger.Info("sleep.post.started", "Guest started", map[string]interface{}{
		"transition_id": transitionID,
		"outcome":       outcome,
	})
	return nil
}

// awaitResumeRace polls an unexpectedly running guest for the
// configured window and returns the last state observed.
func (o *Orchestrator) awaitResumeRace(transitionID string) hypervisor.State {
	o.logger.Warn("sleep.post.resume_race", "Guest unexpectedly running after wake, watching briefly", map[string]interface{}{
		"transition_id": transitionID,
		"window_s":      o.cfg.Sleep.ResumeRaceWindowSeconds,
	})

	interval := time.Duration(o.cfg.Hibernate.PollIntervalSeconds) * time.Second
	deadline := o.clk.Now().Add(time.Duration(o.cfg.Sleep.ResumeRaceWindowSeconds) * time.Second)

	last := hypervisor.StateRunning
	for o.clk.Now().Before(deadline) {
		o.clk.Sleep(interval)

		state, err := o.ctrl.State()
		if err != nil {
			continue
		}
		last = state
		if state != hypervisor.StateRunning {
			break
		}
	}
	return last
}

// recordOutcome persists the hibernation intent for the post-wake hook.
func (o *Orchestrator) recordOutcome(transitionID, outcome string) {
	intent := statestore.HibernationIntent{
		Outcome:      outcome,
		RecordedAt:   o.clk.Now(),
		TransitionID: transitionID,
	}
	if err := o.store.SaveHibernationIntent(intent); err != nil {
		o.logger.Error("sleep.pre.intent.failed", "Could not record hibernation outcome", map[string]interface{}{
			"transition_id": transitionID,
			"outcome":       outcome,
			"error":         err.Error(),
		})
		return
	}
	if outcome != statestore.OutcomePending {
		metrics.HibernationOutcomesTotal.WithLabelValues(outcome).Inc()
	}
}
