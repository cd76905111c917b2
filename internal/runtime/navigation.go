package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

func (e *Engine) selectBranch(ctx context.Context, p *pass, branchID string) error {
	node, err := e.currentNode(p)
	if err != nil {
		return err
	}
	b := node.Branch(branchID)
	if b == nil {
		p.res.Outcome = OutcomeRejected
		return fmt.Errorf("%w: %q on node %q", domain.ErrUnknownBranch, branchID, node.ID)
	}
	return e.followBranch(ctx, p, node, b)
}

// followBranch applies a branch selected (or matched) on node.
func (e *Engine) followBranch(ctx context.Context, p *pass, node *domain.Node, b *domain.Branch) error {
	switch b.Kind {
	case domain.BranchLink:
		p.res.Outcome = OutcomeStayed
		p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
			Kind:      domain.EffectOpenLink,
			NodeID:    node.ID,
			URL:       b.URL,
			NewWindow: b.NewWindow,
		})
		return nil

	case domain.BranchRestart:
		return e.restart(ctx, p, node)
	}

	target, err := e.resolveBranchTarget(p, node, b)
	if err != nil {
		return err
	}
	return e.moveTo(ctx, p, node, target)
}

// resolveBranchTarget finds where a navigating branch leads.
func (e *Engine) resolveBranchTarget(p *pass, node *domain.Node, b *domain.Branch) (string, error) {
	switch b.Kind {
	case domain.BranchJump:
		matches := p.g.ResolveName(b.TargetNodeName)
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
			return "", &domain.StructuralError{
				Code: domain.CodeDanglingJump, NodeID: node.ID, BranchID: b.ID,
				Err: fmt.Errorf("%w: %q", domain.ErrDanglingJump, b.TargetNodeName),
			}
		default:
			return "", &domain.StructuralError{
				Code: domain.CodeAmbiguousJump, NodeID: node.ID, BranchID: b.ID,
				Err: fmt.Errorf("%w: %q", domain.ErrAmbiguousJump, b.TargetNodeName),
			}
		}

	case domain.BranchButton, domain.BranchFreeText:
		if targets := p.g.Targets(node.ID, b.ID); len(targets) > 0 {
			return targets[0], nil
		}
		return "", &domain.StructuralError{
			Code: domain.CodeUnresolvedBranch, NodeID: node.ID, BranchID: b.ID,
			Err: domain.ErrUnresolvedBranch,
		}

	default:
		return "", &domain.StructuralError{
			Code: domain.CodeUnresolvedBranch, NodeID: node.ID, BranchID: b.ID,
			Err: fmt.Errorf("%w: %s branch cannot navigate here", domain.ErrUnresolvedBranch, b.Kind),
		}
	}
}

func (e *Engine) restart(ctx context.Context, p *pass, from *domain.Node) error {
	startID, err := e.restartTarget(p, from)
	if err != nil {
		return err
	}
	p.session.History = nil
	return e.moveTo(ctx, p, from, startID)
}

func (e *Engine) freeText(ctx context.Context, p *pass, text string) error {
	// Global triggers win over anything the current node offers.
	if target, ok := p.g.Trigger(text); ok {
		if cur, ok := p.g.Node(p.session.CurrentNodeID); ok {
			return e.moveTo(ctx, p, cur, target)
		}
		return e.settle(ctx, p, target)
	}

	node, err := e.currentNode(p)
	if err != nil {
		return err
	}

	if p.g.Scenario.EffectiveFreeInput(node) == domain.FreeInputDisabled {
		p.res.Outcome = OutcomeRejected
		return domain.ErrInputNotAccepted
	}

	remembered := false
	if node.Settings != nil && node.Settings.RememberResponse {
		p.session.Memory[node.ID] = text
		remembered = true
		p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
			Kind:   domain.EffectInputCaptured,
			NodeID: node.ID,
			Text:   text,
		})
	}

	// Typing a button label is the same as pressing it.
	for i := range node.Branches {
		b := &node.Branches[i]
		if b.Kind != domain.BranchFreeText && b.Label != "" && b.Label == text {
			return e.followBranch(ctx, p, node, b)
		}
	}

	for i := range node.Branches {
		b := &node.Branches[i]
		if b.Kind != domain.BranchFreeText {
			continue
		}
		if targets := p.g.Targets(node.ID, b.ID); len(targets) > 0 {
			return e.moveTo(ctx, p, node, targets[0])
		}
		if targets := p.g.Targets(node.ID, ""); len(targets) == 1 {
			return e.moveTo(ctx, p, node, targets[0])
		}
		return &domain.StructuralError{
			Code: domain.CodeUnresolvedBranch, NodeID: node.ID, BranchID: b.ID,
			Err: domain.ErrUnresolvedBranch,
		}
	}

	if remembered {
		if targets := p.g.Targets(node.ID, ""); len(targets) == 1 {
			return e.moveTo(ctx, p, node, targets[0])
		}
		p.res.Outcome = OutcomeCaptured
		return nil
	}

	p.res.Outcome = OutcomeUnrecognized
	p.res.SideEffects = append(p.res.SideEffects, domain.SideEffect{
		Kind:   domain.EffectReRender,
		NodeID: node.ID,
	})
	return nil
}
