// Package agent runs the doze polling loop: evaluate activity signals,
// advance idle tracking, and suspend the host once the idle threshold
// holds. It is the long-running half of doze; the sleep/wake hooks are
// short-lived processes that coordinate with it through the state store.
package agent

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/fsutil"
	"doze/internal/idle"
	"doze/internal/logging"
	"doze/internal/metrics"
	"doze/internal/power"
	"doze/internal/signal"
	"doze/internal/statestore"
	"doze/internal/wol"
)

// Agent is the doze background service.
type Agent struct {
	cfg        config.Config
	aggregator *signal.Aggregator
	tracker    *idle.Tracker
	executor   *power.Executor
	store      statestore.Store
	clk        clock.Clock
	logger     *logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// New wires an agent from components the caller already built.
func New(cfg config.Config, aggregator *signal.Aggregator, tracker *idle.Tracker, executor *power.Executor, store statestore.Store, clk clock.Clock, logger *logging.Logger) *Agent {
	ctx, cancel := context.WithCancel(context.Background())

	return &Agent{
		cfg:        cfg,
		aggregator: aggregator,
		tracker:    tracker,
		executor:   executor,
		store:      store,
		clk:        clk,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		startTime:  clk.Now(),
	}
}

// Run starts the polling loop and blocks until a termination signal
// arrives or Shutdown is called.
func (a *Agent) Run() error {
	a.logger.Info("agent.started", "Agent service started", map[string]interface{}{
		"pid":             os.Getpid(),
		"domain":          a.cfg.Workload.Name,
		"poll_interval_s": a.cfg.Idle.PollIntervalSeconds,
		"threshold_s":     a.cfg.Idle.IdleThresholdSeconds,
		"signals":         a.aggregator.Names(),
	})

	stateDir := fsutil.GetStateDir(fsutil.DefaultStateDir)
	if warnings := a.executor.Preflight(stateDir); len(warnings) > 0 {
		a.logger.Warn("agent.preflight.degraded", "Suspend preflight found problems", map[string]interface{}{
			"warnings": warnings,
		})
	}

	a.checkWakeReadiness()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer ossignal.Stop(sigChan)

	ticker := a.clk.NewTicker(time.Duration(a.cfg.Idle.PollIntervalSeconds) * time.Second)
	defer ticker.Stop()

	// Evaluate once right away so status is populated before the first
	// tick.
	a.cycle(a.ctx)

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("agent.context_cancelled", "Agent context cancelled", nil)
			return a.ctx.Err()

		case s := <-sigChan:
			a.logger.Info("agent.signal_received", "Received signal", map[string]interface{}{
				"signal": s.String(),
			})
			switch s {
			case syscall.SIGHUP:
				// Configuration is immutable for the process lifetime;
				// restart the unit to apply changes.
				a.logger.Info("agent.reload_ignored", "Live reload is not supported, restart to apply config changes", nil)
			case syscall.SIGTERM, syscall.SIGINT:
				return a.Shutdown()
			}

		case <-ticker.C:
			a.cycle(a.ctx)
		}
	}
}

// checkWakeReadiness verifies that the NIC can wake the host from
// suspend. A host that sleeps without Wake-on-LAN armed stays asleep
// until someone reaches the physical power button, so a disarmed
// interface is worth a loud warning even though the agent keeps going.
func (a *Agent) checkWakeReadiness() {
	detector := wol.NewDetector(a.logger)

	iface := a.cfg.WoL.Interface
	if iface == "" {
		found, err := detector.DefaultInterface()
		if err != nil {
			a.logger.Warn("agent.wol.no_interface", "Could not determine an interface for Wake-on-LAN", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		iface = found
	}

	status := detector.Detect(iface)
	if status.Enabled {
		return
	}

	if a.cfg.WoL.ArmOnStart && status.Supported {
		err := detector.Arm(iface)
		if err == nil {
			return
		}
		a.logger.Warn("agent.wol.arm_failed", "Could not arm Wake-on-LAN", map[string]interface{}{
			"interface": iface,
			"error":     err.Error(),
		})
	}

	a.logger.Warn("agent.wol.disarmed", "Wake-on-LAN is not armed, a suspended host may be unreachable", map[string]interface{}{
		"interface":    iface,
		"supported":    status.Supported,
		"current_mode": status.CurrentMode,
	})
}

// cycle runs one poll: evaluate signals, advance idle tracking, act on
// the decision, publish the status snapshot.
func (a *Agent) cycle(ctx context.Context) {
	started := a.clk.Now()
	metrics.CyclesTotal.Inc()

	evaluation := a.aggregator.Evaluate(ctx, a.sinceWake())
	metrics.VerdictsTotal.WithLabelValues(string(evaluation.Verdict)).Inc()
	for _, r := range evaluation.Readings {
		metrics.SignalReadingsTotal.WithLabelValues(r.Name, string(r.Status)).Inc()
		if r.Status != signal.StatusUnavailable {
			metrics.SignalValue.WithLabelValues(r.Name).Set(r.Value)
		}
	}

	step, err := a.tracker.Advance(evaluation.Verdict)
	if err != nil {
		a.logger.Error("agent.cycle.tracker_failed", "Idle tracking failed, skipping cycle", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.IdleForSeconds.Set(step.IdleFor.Seconds())

	a.publishSnapshot(evaluation, step)

	switch step.Decision {
	case idle.DecisionTrigger:
		metrics.TriggersTotal.Inc()
		a.logger.Info("agent.suspend.triggered", "Idle threshold reached, suspending host", map[string]interface{}{
			"idle_for_s": int64(step.IdleFor.Seconds()),
		})
		if err := a.executor.Suspend(); err != nil {
			// Tracking was already cleared; a failed suspend simply
			// restarts the idle accumulation on the next cycle.
			a.logger.Error("agent.suspend.failed", "Suspend command failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case idle.DecisionSuppressed:
		metrics.SuppressionsTotal.Inc()
	}

	metrics.CycleDuration.Observe(a.clk.Now().Sub(started).Seconds())
}

// sinceWake returns the time elapsed since the last recorded wake, or a
// negative duration when no wake is on record.
func (a *Agent) sinceWake() time.Duration {
	record, found, err := a.store.LoadWakeRecord()
	if err != nil {
		a.logger.Warn("agent.wake_record.load_failed", "Could not read wake record", map[string]interface{}{
			"error": err.Error(),
		})
		return -1
	}
	if !found {
		return -1
	}
	return a.clk.Now().Sub(record.WokeAt)
}

// publishSnapshot freezes the cycle outcome for the status command and
// the HTTP endpoint.
func (a *Agent) publishSnapshot(evaluation signal.Evaluation, step idle.Step) {
	snapshot := statestore.Snapshot{
		CheckedAt:        a.clk.Now(),
		Verdict:          string(evaluation.Verdict),
		Reasons:          evaluation.Reasons,
		Decision:         string(step.Decision),
		IdleSince:        step.IdleSince,
		IdleForSeconds:   int64(step.IdleFor.Seconds()),
		ThresholdSeconds: int64(a.cfg.Idle.IdleThresholdSeconds),
		GraceUntil:       step.GraceUntil,
		Signals:          make([]statestore.SignalSnapshot, 0, len(evaluation.Readings)),
	}
	for _, r := range evaluation.Readings {
		snapshot.Signals = append(snapshot.Signals, statestore.SignalSnapshot{
			Name:      r.Name,
			Status:    string(r.Status),
			Value:     r.Value,
			Threshold: r.Threshold,
			Detail:    r.Detail,
		})
	}

	if err := a.store.SaveSnapshot(snapshot); err != nil {
		a.logger.Warn("agent.snapshot.save_failed", "Could not publish status snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Shutdown performs a graceful shutdown of the agent.
func (a *Agent) Shutdown() error {
	a.logger.Info("agent.stopping", "Stopping agent service", nil)

	a.cancel()

	a.logger.Info("agent.stopped", "Agent service stopped", map[string]interface{}{
		"uptime_seconds": a.clk.Now().Sub(a.startTime).Seconds(),
	})
	return nil
}

// HealthCheck reports whether the agent loop is still alive.
func (a *Agent) HealthCheck() error {
	select {
	case <-a.ctx.Done():
		return fmt.Errorf("agent context is cancelled")
	default:
		return nil
	}
}
