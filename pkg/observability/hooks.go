package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/concierge/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Node events go to debug,
// side effects to info and diagnostics to warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node_id", e.NodeID, "kind", e.NodeKind)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnSideEffect: func(ctx context.Context, e *domain.EffectEvent) {
			logger.InfoContext(ctx, "side_effect", "session_id", e.SessionID, "kind", e.Effect.Kind, "node_id", e.Effect.NodeID)
		},
		OnDiagnostic: func(ctx context.Context, e *domain.DiagnosticEvent) {
			logger.WarnContext(ctx, "diagnostic",
				"session_id", e.SessionID,
				"scenario_id", e.ScenarioID,
				"code", e.Diagnostic.Code,
				"node_id", e.Diagnostic.NodeID,
				"branch_id", e.Diagnostic.BranchID,
			)
		},
	}
}

// Combine returns hooks that call every non-nil hook of each set, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnNodeEnter = chain(out.OnNodeEnter, s.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, s.OnNodeLeave)
		out.OnSideEffect = chain(out.OnSideEffect, s.OnSideEffect)
		out.OnDiagnostic = chain(out.OnDiagnostic, s.OnDiagnostic)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
