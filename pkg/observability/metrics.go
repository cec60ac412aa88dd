package observability

import (
	"context"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	NodeVisits       *prometheus.CounterVec
	SessionsEnded    *prometheus.CounterVec
	Conflicts        *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	TimersFired      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_node_visits_total",
				Help: "Total number of node executions",
			},
			[]string{"funnel_id", "node_type", "trigger"},
		),
		SessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_sessions_ended_total",
				Help: "Sessions that reached a terminal status",
			},
			[]string{"funnel_id", "status"},
		),
		Conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_stale_triggers_total",
				Help: "Triggers dropped because the session had moved on",
			},
			[]string{"funnel_id"},
		),
		DeliveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_delivery_failures_total",
				Help: "Outbound deliveries that failed after commit",
			},
			[]string{"funnel_id"},
		),
		TimersFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_timers_fired_total",
				Help: "Delayed continuations that fired",
			},
			[]string{"funnel_id"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.SessionsEnded, m.Conflicts, m.DeliveryFailures, m.TimersFired)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.FunnelID, string(e.NodeType), string(e.Trigger)).Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			m.SessionsEnded.WithLabelValues(e.FunnelID, string(e.Status)).Inc()
		},
		OnConflict: func(_ context.Context, e *domain.SessionEvent) {
			m.Conflicts.WithLabelValues(e.FunnelID).Inc()
		},
		OnDeliveryFailed: func(_ context.Context, e *domain.SessionEvent) {
			m.DeliveryFailures.WithLabelValues(e.FunnelID).Inc()
		},
		OnTimerFired: func(_ context.Context, e *domain.SessionEvent) {
			m.TimersFired.WithLabelValues(e.FunnelID).Inc()
		},
	}
}
