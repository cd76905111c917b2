package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// Outcome summarizes what an event did to a session.
type Outcome string

const (
	// OutcomeMoved means the session settled on a (possibly new) resting node.
	OutcomeMoved Outcome = "moved"
	// OutcomeStayed means the session did not move (link opened).
	OutcomeStayed Outcome = "stayed"
	// OutcomeCaptured means free text was remembered without a transition.
	OutcomeCaptured Outcome = "captured"
	// OutcomeUnrecognized means the input matched nothing; the node is offered again.
	OutcomeUnrecognized Outcome = "unrecognized"
	// OutcomeRejected means the input was refused and the session is unchanged.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means a structural problem kept the session on its node.
	OutcomeFailed Outcome = "failed"
)

// BranchView is the visitor-facing part of a branch.
type BranchView struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Kind      domain.BranchKind `json:"kind"`
	URL       string            `json:"url,omitempty"`
	NewWindow bool              `json:"new_window,omitempty"`
}

// RenderedNode is the content a node shows, after interpolation.
type RenderedNode struct {
	NodeID    string            `json:"node_id"`
	Kind      domain.NodeKind   `json:"kind"`
	Responses []domain.Response `json:"responses,omitempty"`
	Branches  []BranchView      `json:"branches,omitempty"`
	FreeInput bool              `json:"free_input"`
}

// Result is the outcome of a single Advance call.
type Result struct {
	Session     *domain.Session     `json:"session"`
	Outcome     Outcome             `json:"outcome"`
	Rendered    []RenderedNode      `json:"rendered,omitempty"`
	SideEffects []domain.SideEffect `json:"side_effects,omitempty"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
}

// Current returns the last rendered node, if any.
func (r *Result) Current() *RenderedNode {
	if len(r.Rendered) == 0 {
		return nil
	}
	return &r.Rendered[len(r.Rendered)-1]
}

// Engine is the scenario traversal core. It is pure: it performs no I/O,
// never blocks, and never mutates the session it is given.
type Engine struct {
	evaluator    ConditionEvaluator
	interpolator Interpolator
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	now          func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for diagnostics, hook events and
// session timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new engine. Nil evaluator or interpolator select the defaults.
func NewEngine(evaluator ConditionEvaluator, interpolator Interpolator, opts ...EngineOption) *Engine {
	if evaluator == nil {
		evaluator = DefaultEvaluator
	}
	if interpolator == nil {
		interpolator = DefaultInterpolator
	}
	e := &Engine{
		evaluator:    evaluator,
		interpolator: interpolator,
		logger:       logging.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pass carries the state of one Advance call.
type pass struct {
	g       *compiler.Graph
	origin  *domain.Session
	session *domain.Session
	res     *Result
	entered map[string]bool
}

// Advance applies a visitor event to a session and returns the settled result.
// On structural errors the returned Result is still usable: its session stays
// on the current node and carries the diagnostic.
func (e *Engine) Advance(ctx context.Context, g *compiler.Graph, session *domain.Session, ev domain.Event) (*Result, error) {
	if g == nil || session == nil {
		return nil, errors.New("advance requires a graph and a session")
	}

	p := &pass{
		g:       g,
		origin:  session,
		session: session.Clone(),
		entered: make(map[string]bool),
	}
	p.res = &Result{Session: p.session, Outcome: OutcomeMoved}

	if session.Status != domain.SessionActive && ev.Kind != domain.EventStart {
		// A trigger phrase reopens the conversation from any node.
		if !isTrigger(g, ev) {
			p.res.Outcome = OutcomeRejected
			return p.res, domain.ErrSessionInactive
		}
		p.session.Status = domain.SessionActive
	}

	var err error
	switch ev.Kind {
	case domain.EventStart:
		err = e.start(ctx, p)
	case domain.EventSelectBranch:
		err = e.selectBranch(ctx, p, ev.BranchID)
	case domain.EventFreeText:
		err = e.freeText(ctx, p, ev.Text)
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	var serr *domain.StructuralError
	if errors.As(err, &serr) {
		return e.fail(ctx, p, serr), err
	}
	if err != nil {
		return p.res, err
	}

	p.session.UpdatedAt = e.now()
	for _, fx := range p.res.SideEffects {
		e.emitSideEffect(ctx, p.session, fx)
	}
	return p.res, nil
}

func isTrigger(g *compiler.Graph, ev domain.Event) bool {
	if ev.Kind != domain.EventFreeText {
		return false
	}
	_, ok := g.Trigger(ev.Text)
	return ok
}

// fail rebuilds the result around the untouched session. Dangling jumps also
// ask the host to close the conversation gracefully.
func (e *Engine) fail(ctx context.Context, p *pass, serr *domain.StructuralError) *Result {
	diag := serr.Diagnostic()
	diag.At = e.now()

	session := p.origin.Clone()
	session.Record(diag)

	res := &Result{
		Session:     session,
		Outcome:     OutcomeFailed,
		Diagnostics: []domain.Diagnostic{diag},
	}
	if errors.Is(serr, domain.ErrDanglingJump) {
		res.SideEffects = append(res.SideEffects, domain.SideEffect{
			Kind:   domain.EffectEligibleToClose,
			NodeID: serr.NodeID,
		})
	}

	e.logger.Warn("scenario structural error",
		"scenario_id", session.ScenarioID,
		"session_id", session.ID,
		"node_id", serr.NodeID,
		"branch_id", serr.BranchID,
		"code", serr.Code,
		"err", serr.Err,
	)
	e.emitDiagnostic(ctx, session, diag)
	for _, fx := range res.SideEffects {
		e.emitSideEffect(ctx, session, fx)
	}
	return res
}

func (e *Engine) start(ctx context.Context, p *pass) error {
	startID, err := p.g.Start()
	if err != nil {
		return err
	}
	if cur, ok := p.g.Node(p.session.CurrentNodeID); ok {
		e.emitNodeLeave(ctx, p.session, cur)
	}
	p.session.Memory = make(map[string]string)
	p.session.History = nil
	p.session.Status = domain.SessionActive
	return e.settle(ctx, p, startID)
}

func (e *Engine) currentNode(p *pass) (*domain.Node, error) {
	n, ok := p.g.Node(p.session.CurrentNodeID)
	if !ok {
		return nil, &domain.StructuralError{
			Code:   domain.CodeUnknownNode,
			NodeID: p.session.CurrentNodeID,
			Err:    domain.ErrUnknownNode,
		}
	}
	return n, nil
}

// moveTo leaves the current node and settles on target.
func (e *Engine) moveTo(ctx context.Context, p *pass, from *domain.Node, target string) error {
	e.emitNodeLeave(ctx, p.session, from)
	return e.settle(ctx, p, target)
}
