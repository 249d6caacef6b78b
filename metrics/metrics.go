package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

const (
	MetricsNamespace = "th"
)

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_runs_total",
		Help:      "Count of completed test runs",
	}, []string{
		"result",
	})

	testRunDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_run_duration_seconds",
		Help:      "Duration of the last test run",
	}, []string{
		"run_id",
	})

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "state_transitions_total",
		Help:      "Count of hierarchy state transitions",
	}, []string{
		"level",
		"state",
	})

	containerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "container_operations_total",
		Help:      "Count of container lifecycle operations",
	}, []string{
		"operation",
	})

	promptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "prompts_total",
		Help:      "Count of operator prompts by response status",
	}, []string{
		"status",
	})

	connectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "socket_connections_active",
		Help:      "Currently connected websocket clients",
	}, []string{
		"role",
	})
)

// RecordError increments the error counter for a named error category.
func RecordError(errorLabel string) {
	errorsTotal.WithLabelValues(errorLabel).Inc()
}

// RecordRunCompleted records the outcome and duration of a finished run.
func RecordRunCompleted(runID string, state types.TestState, duration time.Duration) {
	testRunsTotal.WithLabelValues(string(state)).Inc()
	testRunDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// RecordStateTransition counts one hierarchy state transition.
func RecordStateTransition(level string, state types.TestState) {
	stateTransitionsTotal.WithLabelValues(level, string(state)).Inc()
}

// RecordContainerStarted counts a successful container bring-up.
func RecordContainerStarted() {
	containerOpsTotal.WithLabelValues("start").Inc()
}

// RecordContainerError counts a failed container operation.
func RecordContainerError(operation string) {
	containerOpsTotal.WithLabelValues(operation + "_error").Inc()
}

// RecordPromptResult counts one prompt round trip by response status.
func RecordPromptResult(status string) {
	promptsTotal.WithLabelValues(status).Inc()
}

// RecordConnection tracks a websocket connect (+1) or disconnect (-1).
func RecordConnection(role string, delta float64) {
	connectionsActive.WithLabelValues(role).Add(delta)
}
