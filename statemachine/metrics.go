package statemachine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unknownTransition replaces unregistered transition names in metric labels,
// since those names come from callers and are unbounded.
const unknownTransition = "unknown"

var (
	// transitionsTotal counts transition attempts by outcome.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of transition attempts by machine, transition and outcome",
	}, []string{"machine", "transition", "outcome"})

	// transitionDuration tracks the end-to-end time of an attempt, guards and callbacks included.
	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_transition_duration_seconds",
		Help:    "Duration of transition attempts by machine, transition and outcome",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"machine", "transition", "outcome"})

	guardEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_guard_evaluations_total",
		Help: "Total number of guard evaluations by machine, transition and result (allowed or rejected)",
	}, []string{"machine", "transition", "result"})

	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_callbacks_total",
		Help: "Total number of callback invocations by machine, transition, phase (before or after) and outcome",
	}, []string{"machine", "transition", "phase", "outcome"})
)

func recordTransition(machine, transition, outcome string, elapsed time.Duration) {
	transitionsTotal.WithLabelValues(machine, transition, outcome).Inc()
	transitionDuration.WithLabelValues(machine, transition, outcome).Observe(elapsed.Seconds())
}

func recordGuard(machine, transition string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}

	guardEvaluationsTotal.WithLabelValues(machine, transition, result).Inc()
}

func recordCallback(machine, transition, phase string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeCallbackError
	}

	callbacksTotal.WithLabelValues(machine, transition, phase, outcome).Inc()
}
