package saga

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for workflow execution.
//
// Metrics exposed (namespace "sagaflow"):
//
//  1. active_instances (gauge): instances currently RUNNING or COMPENSATING.
//  2. instances_started_total (counter): started instances.
//     Labels: definition_id.
//  3. instances_finished_total (counter): instances reaching a terminal
//     status. Labels: definition_id, status.
//  4. transitions_total (counter): successful state transitions.
//     Labels: definition_id, event.
//  5. action_failures_total (counter): failed action executions.
//     Labels: definition_id, action.
//  6. compensation_steps_total (counter): compensation executor invocations.
//     Labels: definition_id, result (success/failure).
//  7. action_duration_ms (histogram): action executor runtime.
//     Labels: definition_id, action, status.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := saga.NewMetrics(registry)
//	engine := saga.New(saga.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Metrics are optional: an engine without WithMetrics records nothing.
type Metrics struct {
	activeInstances   prometheus.Gauge
	instancesStarted  *prometheus.CounterVec
	instancesFinished *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	actionFailures    *prometheus.CounterVec
	compensationSteps *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers all workflow metrics with the given
// registry (prometheus.DefaultRegisterer if nil).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		activeInstances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sagaflow",
			Name:      "active_instances",
			Help:      "Workflow instances currently in an active status (RUNNING or COMPENSATING)",
		}),
		instancesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "instances_started_total",
			Help:      "Workflow instances started",
		}, []string{"definition_id"}),
		instancesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "instances_finished_total",
			Help:      "Workflow instances that reached a terminal status",
		}, []string{"definition_id", "status"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "transitions_total",
			Help:      "Successful state transitions driven by external events",
		}, []string{"definition_id", "event"}),
		actionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "action_failures_total",
			Help:      "Action executions that returned a failure",
		}, []string{"definition_id", "action"}),
		compensationSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "compensation_steps_total",
			Help:      "Compensation executor invocations during saga rollback",
		}, []string{"definition_id", "result"}), // result: success, failure
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sagaflow",
			Name:      "action_duration_ms",
			Help:      "Action executor runtime in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}, // 1ms to 10s
		}, []string{"definition_id", "action", "status"}), // status: success, failure
	}
}

// InstanceStarted records a started instance and bumps the active gauge.
func (m *Metrics) InstanceStarted(definitionID string) {
	if m == nil {
		return
	}
	m.instancesStarted.WithLabelValues(definitionID).Inc()
	m.activeInstances.Inc()
}

// InstanceFinished records a terminal transition and drops the active gauge.
func (m *Metrics) InstanceFinished(definitionID string, status Status) {
	if m == nil {
		return
	}
	m.instancesFinished.WithLabelValues(definitionID, string(status)).Inc()
	m.activeInstances.Dec()
}

// Transition records a successful event-driven transition.
func (m *Metrics) Transition(definitionID, event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(definitionID, event).Inc()
}

// ActionFailed records a failed action execution.
func (m *Metrics) ActionFailed(definitionID, action string) {
	if m == nil {
		return
	}
	m.actionFailures.WithLabelValues(definitionID, action).Inc()
}

// CompensationStep records one compensation executor invocation.
func (m *Metrics) CompensationStep(definitionID, result string) {
	if m == nil {
		return
	}
	m.compensationSteps.WithLabelValues(definitionID, result).Inc()
}

// ActionDuration records an action executor's runtime.
func (m *Metrics) ActionDuration(definitionID, action string, d time.Duration, status string) {
	if m == nil {
		return
	}
	m.actionDuration.WithLabelValues(definitionID, action, status).Observe(float64(d.Milliseconds()))
}
