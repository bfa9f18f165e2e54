// Package metrics exposes Prometheus instrumentation for the polling
// loop and the sleep transitions. Collectors are package-level and
// registered on import; the agent serves them through the status API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CyclesTotal counts polling cycles run since agent start.
var CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "cycles_total",
	Help:      "Total polling cycles run.",
})

// CycleDuration tracks how long one poll-and-decide cycle takes.
var CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "doze",
	Name:      "cycle_duration_seconds",
	Help:      "Duration of one polling cycle.",
	Buckets:   prometheus.DefBuckets,
})

// VerdictsTotal counts aggregate verdicts by outcome.
var VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "verdicts_total",
	Help:      "Total aggregate verdicts by outcome.",
}, []string{"verdict"})

// SignalReadingsTotal counts individual signal readings by status.
var SignalReadingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "signal_readings_total",
	Help:      "Total signal readings by signal and status.",
}, []string{"signal", "status"})

// SignalValue reports the last observed value per signal, in the
// signal's native unit.
var SignalValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "doze",
	Name:      "signal_value",
	Help:      "Last observed value per signal (percent, seconds or count).",
}, []string{"signal"})

// IdleForSeconds reports the current idle streak length.
var IdleForSeconds = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "doze",
	Name:      "idle_for_seconds",
	Help:      "Length of the current idle streak.",
})

// TriggersTotal counts sleep triggers fired.
var TriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "triggers_total",
	Help:      "Total sleep triggers fired.",
})

// SuppressionsTotal counts triggers suppressed by the wake grace period.
var SuppressionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "suppressions_total",
	Help:      "Total sleep triggers suppressed inside the wake grace period.",
})

// HibernationOutcomesTotal counts pre-sleep outcomes by kind.
var HibernationOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "hibernation_outcomes_total",
	Help:      "Total pre-sleep hibernation outcomes.",
}, []string{"outcome"})

// WakesTotal counts completed post-wake transitions.
var WakesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "doze",
	Name:      "wakes_total",
	Help:      "Total completed post-wake transitions.",
})
