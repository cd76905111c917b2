package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	base := domain.EventBase{ScenarioID: "sc"}
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: base, NodeKind: domain.KindQuestion})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: base, NodeKind: domain.KindQuestion})
	hooks.OnSideEffect(ctx, &domain.EffectEvent{EventBase: base, Effect: domain.SideEffect{Kind: domain.EffectEligibleToClose}})
	hooks.OnDiagnostic(ctx, &domain.DiagnosticEvent{EventBase: base, Diagnostic: domain.Diagnostic{Code: domain.CodeDanglingJump}})
	m.ObserveAdvance("moved", 3*time.Millisecond)
	m.ObserveImport(nil)
	m.ObserveImport(errors.New("bad"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("sc", "question")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SideEffects.WithLabelValues(string(domain.EffectEligibleToClose))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues(domain.CodeDanglingJump)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Advances))
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnNodeEnter:  func(context.Context, *domain.NodeEvent) { calls = append(calls, "b") },
		OnDiagnostic: func(context.Context, *domain.DiagnosticEvent) { calls = append(calls, "diag") },
	}

	h := observability.Combine(a, domain.LifecycleHooks{}, b)
	h.OnNodeEnter(context.Background(), &domain.NodeEvent{})
	h.OnDiagnostic(context.Background(), &domain.DiagnosticEvent{})

	assert.Equal(t, []string{"a", "b", "diag"}, calls)
	assert.Nil(t, h.OnNodeLeave)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := observability.LoggingHooks(logger)

	h.OnDiagnostic(context.Background(), &domain.DiagnosticEvent{Diagnostic: domain.Diagnostic{Code: domain.CodeDanglingJump, NodeID: "n1"}})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "code="+domain.CodeDanglingJump)
}
