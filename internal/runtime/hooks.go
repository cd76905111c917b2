package runtime

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

func (e *Engine) base(t domain.EventType, s *domain.Session) domain.EventBase {
	return domain.EventBase{
		Timestamp:  e.now(),
		Type:       t,
		SessionID:  s.ID,
		ScenarioID: s.ScenarioID,
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, s *domain.Session, n *domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeEnter, s),
		NodeID:    n.ID,
		NodeKind:  n.Kind,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, s *domain.Session, n *domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeLeave, s),
		NodeID:    n.ID,
		NodeKind:  n.Kind,
	})
}

func (e *Engine) emitSideEffect(ctx context.Context, s *domain.Session, fx domain.SideEffect) {
	if e.hooks.OnSideEffect == nil {
		return
	}
	e.hooks.OnSideEffect(ctx, &domain.EffectEvent{
		EventBase: e.base(domain.EventSideEffect, s),
		Effect:    fx,
	})
}

func (e *Engine) emitDiagnostic(ctx context.Context, s *domain.Session, d domain.Diagnostic) {
	if e.hooks.OnDiagnostic == nil {
		return
	}
	e.hooks.OnDiagnostic(ctx, &domain.DiagnosticEvent{
		EventBase:  e.base(domain.EventDiagnostic, s),
		Diagnostic: d,
	})
}
