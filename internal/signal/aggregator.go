package signal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"doze/internal/config"
	"doze/internal/logging"
)

// Verdict is the aggregate activity decision for one polling cycle.
type Verdict string

const (
	VerdictIdle   Verdict = "idle"
	VerdictActive Verdict = "active"
)

// Evaluation is the outcome of polling all signals once.
type Evaluation struct {
	// Verdict is Active when at least one available signal reported
	// activity, Idle otherwise.
	Verdict Verdict
	// Reasons names the signals that reported activity, one entry each.
	Reasons []string
	// Readings holds every provider observation in poll order.
	Readings []Reading
}

// Idle reports whether the cycle concluded the system is idle.
func (e Evaluation) Idle() bool {
	return e.Verdict == VerdictIdle
}

// Aggregator polls all configured signals concurrently and folds the
// readings into a single verdict. The fold is an AND over the available
// readings: every signal that could be read must report idle. Signals
// that cannot be read are excluded rather than guessed; when nothing at
// all can be read the verdict is idle, because an unreachable workload
// is not doing observable work.
type Aggregator struct {
	signals []Signal
	timeout time.Duration
	logger  *logging.Logger
}

// NewAggregator builds an aggregator over the given providers.
func NewAggregator(signals []Signal, cfg config.SignalsConfig, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		signals: signals,
		timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// Names lists the configured providers in poll order.
func (a *Aggregator) Names() []string {
	names := make([]string, 0, len(a.signals))
	for _, s := range a.signals {
		names = append(names, s.Name())
	}
	return names
}

// Evaluate polls every provider once and returns the folded verdict.
// sinceWake is the time elapsed since the last recorded wake; pass a
// negative duration when no wake has been recorded. It caps the
// guest-input reading, whose idle counter survives suspend and would
// otherwise report pre-sleep idle time right after resume.
func (a *Aggregator) Evaluate(ctx context.Context, sinceWake time.Duration) Evaluation {
	readings := make([]Reading, len(a.signals))

	var group errgroup.Group
	for i, sig := range a.signals {
		i, sig := i, sig
		group.Go(func() error {
			pollCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			readings[i] = sig.Poll(pollCtx)
			if readings[i].Name == "" {
				readings[i].Name = sig.Name()
			}
			return nil
		})
	}
	// Providers map their failures to Unavailable readings, so the
	// group never carries an error.
	_ = group.Wait()

	evaluation := Evaluation{Verdict: VerdictIdle, Readings: readings}
	for i := range readings {
		readings[i] = a.clampToWake(readings[i], sinceWake)

		switch readings[i].Status {
		case StatusActive:
			evaluation.Verdict = VerdictActive
			reason := readings[i].Name
			if readings[i].Detail != "" {
				reason = fmt.Sprintf("%s: %s", readings[i].Name, readings[i].Detail)
			}
			evaluation.Reasons = append(evaluation.Reasons, reason)
		case StatusUnavailable:
			a.logger.Debug("signal.unavailable", "Signal could not be read", map[string]interface{}{
				"signal": readings[i].Name,
				"detail": readings[i].Detail,
			})
		}
	}

	return evaluation
}

// clampToWake caps the guest-input idle time at the time since the last
// wake. A freshly resumed guest has not seen input yet, so its idle
// counter still carries the pre-sleep value; trusting it would re-trigger
// sleep immediately after a wake.
func (a *Aggregator) clampToWake(r Reading, sinceWake time.Duration) Reading {
	if r.Name != NameGuestInput || r.Status == StatusUnavailable || sinceWake < 0 {
		return r
	}
	wakeSeconds := sinceWake.Seconds()
	if r.Value <= wakeSeconds {
		return r
	}

	raw := r.Value
	r.Value = wakeSeconds
	r.Detail = fmt.Sprintf("input idle %.0fs capped to %.0fs since wake", raw, wakeSeconds)
	if r.Value < r.Threshold {
		r.Status = StatusActive
	} else {
		r.Status = StatusIdle
	}
	return r
}
