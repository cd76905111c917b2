package observability

import (
	"context"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "concierge"

// Metrics holds the Prometheus collectors of one engine.
type Metrics struct {
	NodeVisits  *prometheus.CounterVec
	SideEffects *prometheus.CounterVec
	Diagnostics *prometheus.CounterVec
	Advances    *prometheus.HistogramVec
	Imports     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"scenario_id", "node_kind"}),
		SideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Side effects produced by traversal",
		}, []string{"kind"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Structural problems met during traversal",
		}, []string{"code"}),
		Advances: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advance_duration_seconds",
			Help:      "Duration of session advances, including persistence",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Legacy scenario imports",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.SideEffects, m.Diagnostics, m.Advances, m.Imports)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.ScenarioID, string(e.NodeKind)).Inc()
		},
		OnSideEffect: func(ctx context.Context, e *domain.EffectEvent) {
			m.SideEffects.WithLabelValues(string(e.Effect.Kind)).Inc()
		},
		OnDiagnostic: func(ctx context.Context, e *domain.DiagnosticEvent) {
			m.Diagnostics.WithLabelValues(e.Diagnostic.Code).Inc()
		},
	}
}

// ObserveAdvance records the duration of one advance.
func (m *Metrics) ObserveAdvance(outcome string, d time.Duration) {
	m.Advances.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveImport counts one import attempt.
func (m *Metrics) ObserveImport(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Imports.WithLabelValues(result).Inc()
}
