package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the tick loop. All metrics use the
// dweebuild_orchestrator_ prefix. A nil *Metrics records nothing.
type Metrics struct {
	TicksTotal     prometheus.Counter
	TasksTotal     *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TimeoutsTotal  *prometheus.CounterVec
	FollowUpsTotal *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	StallsTotal    prometheus.Counter
}

// NewMetrics creates and registers orchestrator metrics on reg.
// Returns nil if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "ticks_total",
			Help:      "Total ticks run.",
		}),

		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "tasks_total",
			Help:      "Total tasks by agent capability and outcome (success, error, timeout, cancelled).",
		}, []string{"capability", "outcome"}),

		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "task_duration_seconds",
			Help:      "Task duration in seconds by agent capability.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"capability"}),

		TimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "timeouts_total",
			Help:      "Total task timeouts by agent.",
		}, []string{"agent"}),

		FollowUpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "follow_ups_total",
			Help:      "Total follow-up tasks queued by the capability that produced them.",
		}, []string{"capability"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "queue_depth",
			Help:      "Tasks waiting in the queue after the last tick.",
		}),

		StallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dweebuild",
			Subsystem: "orchestrator",
			Name:      "stalls_total",
			Help:      "Times the queue head became unroutable.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TasksTotal,
		m.TaskDuration,
		m.TimeoutsTotal,
		m.FollowUpsTotal,
		m.QueueDepth,
		m.StallsTotal,
	)
	return m
}

func (m *Metrics) tick(queueLen int) {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
	m.QueueDepth.Set(float64(queueLen))
}

func (m *Metrics) task(capability, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(capability, outcome).Inc()
	m.TaskDuration.WithLabelValues(capability).Observe(d.Seconds())
}

func (m *Metrics) timeout(agentName string) {
	if m == nil {
		return
	}
	m.TimeoutsTotal.WithLabelValues(agentName).Inc()
}

func (m *Metrics) followUps(capability string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FollowUpsTotal.WithLabelValues(capability).Add(float64(n))
}

func (m *Metrics) stall() {
	if m == nil {
		return
	}
	m.StallsTotal.Inc()
}
