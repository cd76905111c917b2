package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// settle enters target and keeps auto-advancing through nodes that do not
// wait for the visitor (start, condition, action, and messages without
// options) until it rests on a node that does.
func (e *Engine) settle(ctx context.Context, p *pass, target string) error {
	id := target
	for {
		if p.entered[id] {
			return &domain.StructuralError{
				Code:   domain.CodeTraversalLoop,
				NodeID: id,
				Err:    fmt.Errorf("%w: node %q entered twice in one step", domain.ErrTraversalLoop, id),
			}
		}
		if len(p.entered) > p.g.Len() {
			return &domain.StructuralError{Code: domain.CodeTraversalLoop, NodeID: id, Err: domain.ErrTraversalLoop}
		}

		n, ok := p.g.Node(id)
		if !ok {
			return &domain.StructuralError{
				Code:   domain.CodeUnknownNode,
				NodeID: p.session.CurrentNodeID,
				Err:    fmt.Errorf("%w: %q", domain.ErrUnknownNode, id),
			}
		}

		p.entered[id] = true
		p.session.Visit(id)
		e.emitNodeEnter(ctx, p.session, n)

		if n.Settings != nil && n.Settings.IsConversionPoint {
			p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
				Kind:   domain.EffectConversion,
				NodeID: n.ID,
			})
		}

		next, rest, err := e.step(ctx, p, n)
		if err != nil {
			return err
		}
		if rest {
			return nil
		}
		e.emitNodeLeave(ctx, p.session, n)
		id = next
	}
}

// step runs the kind-specific behaviour of a freshly entered node. It returns
// the next node to enter, or rest=true when the node waits for the visitor.
func (e *Engine) step(ctx context.Context, p *pass, n *domain.Node) (next string, rest bool, err error) {
	switch n.Kind {
	case domain.KindStart:
		next, err = p.g.Next(n.ID)
		return next, false, err

	case domain.KindMessage:
		if err := e.render(ctx, p, n); err != nil {
			return "", false, err
		}
		if b := continuation(p, n); b != nil {
			next, err = e.continueThrough(p, n, b)
			return next, false, err
		}
		if len(n.Branches) > 0 {
			return "", true, nil
		}
		return e.optionalNext(p, n)

	case domain.KindQuestion:
		return "", true, e.render(ctx, p, n)

	case domain.KindCondition:
		next, err = e.evaluateCondition(ctx, p, n)
		return next, false, err

	case domain.KindAction:
		if n.Action != nil {
			if n.Action.Kind == domain.ActionTransferHuman {
				p.session.Status = domain.SessionHandedOff
			}
			p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
				Kind:   domain.EffectAction,
				NodeID: n.ID,
				Action: n.Action.Kind,
				Params: n.Action.Params,
			})
		}
		if len(n.Responses) > 0 {
			if err := e.render(ctx, p, n); err != nil {
				return "", false, err
			}
		}
		if b := continuation(p, n); b != nil {
			next, err = e.continueThrough(p, n, b)
			return next, false, err
		}
		return e.optionalNext(p, n)

	case domain.KindEnd:
		if err := e.render(ctx, p, n); err != nil {
			return "", false, err
		}
		if p.session.Status == domain.SessionActive {
			p.session.Status = domain.SessionClosed
		}
		p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
			Kind:   domain.EffectEligibleToClose,
			NodeID: n.ID,
		})
		return "", true, nil

	default:
		return "", false, &domain.StructuralError{
			Code:   domain.CodeUnknownNode,
			NodeID: n.ID,
			Err:    fmt.Errorf("%w: unknown kind %q", domain.ErrUnknownNode, n.Kind),
		}
	}
}

// optionalNext follows a default edge if there is exactly one, rests if there is none.
func (e *Engine) optionalNext(p *pass, n *domain.Node) (string, bool, error) {
	targets := p.g.Targets(n.ID, "")
	switch len(targets) {
	case 0:
		return "", true, nil
	case 1:
		return targets[0], false, nil
	default:
		_, err := p.g.Next(n.ID)
		return "", false, err
	}
}

// continuation returns the single continuation branch of a node without a
// default edge.
func continuation(p *pass, n *domain.Node) *domain.Branch {
	if len(n.Branches) != 1 || !n.Branches[0].IsContinuation() {
		return nil
	}
	if len(p.g.Targets(n.ID, "")) > 0 {
		return nil
	}
	return &n.Branches[0]
}

func (e *Engine) continueThrough(p *pass, n *domain.Node, b *domain.Branch) (string, error) {
	if b.Kind == domain.BranchRestart {
		return e.restartTarget(p, n)
	}
	return e.resolveBranchTarget(p, n, b)
}

// restartTarget clears remembered answers and returns the start node.
func (e *Engine) restartTarget(p *pass, from *domain.Node) (string, error) {
	startID, err := p.g.Start()
	if err != nil {
		return "", err
	}
	p.session.Memory = make(map[string]string)
	p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{Kind: domain.EffectRestarted, NodeID: from.ID})
	return startID, nil
}

func (e *Engine) evaluateCondition(ctx context.Context, p *pass, n *domain.Node) (string, error) {
	if len(n.Branches) != 2 {
		return "", &domain.StructuralError{
			Code:   domain.CodeAmbiguousCondition,
			NodeID: n.ID,
			Err:    fmt.Errorf("%w: has %d", domain.ErrAmbiguousCondition, len(n.Branches)),
		}
	}

	ok, err := e.evaluator(ctx, n.Condition, e.variables(p))
	if err != nil {
		return "", &domain.StructuralError{
			Code:   domain.CodeConditionFailed,
			NodeID: n.ID,
			Err:    fmt.Errorf("%w: %v", domain.ErrConditionFailed, err),
		}
	}

	b := &n.Branches[1]
	if ok {
		b = &n.Branches[0]
	}
	e.logger.Debug("condition evaluated", "node_id", n.ID, "condition", n.Condition, "result", ok)

	if b.Kind == domain.BranchRestart {
		return e.restartTarget(p, n)
	}
	return e.resolveBranchTarget(p, n, b)
}
