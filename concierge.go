package concierge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/internal/importer"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/internal/validator"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of compiled scenarios kept in memory.
const DefaultCacheSize = 128

// ErrScenarioRequired is returned when a new session is advanced without a scenario.
var ErrScenarioRequired = errors.New("scenario id is required to start a session")

// Re-exported engine types, so hosts do not import internal packages.
type (
	Result       = runtime.Result
	RenderedNode = runtime.RenderedNode
	BranchView   = runtime.BranchView
	Outcome      = runtime.Outcome

	ConditionEvaluator = runtime.ConditionEvaluator
	Interpolator       = runtime.Interpolator

	LegacyDocument = importer.Document
	ImportReport   = importer.Report
	ImportOption   = importer.Option
)

// DecodeLegacy reads a legacy flow-chart export.
func DecodeLegacy(r io.Reader) (*LegacyDocument, error) {
	return importer.Decode(r)
}

// Engine is the high-level entry point. It ties the traversal core to
// scenario storage, session storage and the side-effect emitter.
type Engine struct {
	runtime  *runtime.Engine
	repo     ports.ScenarioRepository
	store    ports.SessionStore
	sessions *session.Manager
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	emitter  ports.Emitter
	metrics  *observability.Metrics
	cache    *lru.Cache[string, *compiler.Graph]

	evaluator    runtime.ConditionEvaluator
	interpolator runtime.Interpolator
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	cacheSize    int
	importOpts   []importer.Option
	listeners    []SessionListener
}

// SessionListener is told what changed after every persisted advance.
type SessionListener func(ctx context.Context, diff *domain.SessionDiff)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithRepository sets where scenarios are stored. Default: in memory.
func WithRepository(repo ports.ScenarioRepository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

// WithSessionStore sets where sessions are stored. Default: in memory.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker coordinates session access across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithEmitter sets the sink for actions and close notifications.
func WithEmitter(emitter ports.Emitter) Option {
	return func(e *Engine) {
		e.emitter = emitter
	}
}

// WithMetrics records traversal and import metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithConditionEvaluator sets a custom evaluator for condition nodes.
func WithConditionEvaluator(eval runtime.ConditionEvaluator) Option {
	return func(e *Engine) {
		e.evaluator = eval
	}
}

// WithInterpolator sets a custom interpolator for responses.
func WithInterpolator(interp runtime.Interpolator) Option {
	return func(e *Engine) {
		e.interpolator = interp
	}
}

// WithSessionListener registers a listener for session changes.
func WithSessionListener(l SessionListener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, l)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCacheSize bounds the compiled scenario cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithImportOptions applies importer options to every legacy import.
func WithImportOptions(opts ...importer.Option) Option {
	return func(e *Engine) {
		e.importOpts = append(e.importOpts, opts...)
	}
}

// New initializes an Engine. Without options everything lives in memory.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.repo == nil {
		eng.repo = memory.NewRepository()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.emitter == nil {
		eng.emitter = ports.EmitterFunc(func(context.Context, string, map[string]any) {})
	}
	if eng.cacheSize <= 0 {
		eng.cacheSize = DefaultCacheSize
	}

	cache, err := lru.New[string, *compiler.Graph](eng.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario cache: %w", err)
	}
	eng.cache = cache

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
		if eng.lockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(eng.lockTTL))
		}
	}
	eng.sessions = session.NewManager(eng.store, sessionOpts...)

	hooks := eng.hooks
	if eng.metrics != nil {
		hooks = observability.Combine(hooks, eng.metrics.Hooks())
	}
	eng.runtime = runtime.NewEngine(eng.evaluator, eng.interpolator,
		runtime.WithLifecycleHooks(hooks),
		runtime.WithLogger(eng.logger),
	)
	return eng, nil
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Repository returns the scenario repository.
func (e *Engine) Repository() ports.ScenarioRepository {
	return e.repo
}

// GetScenario returns the full scenario with its nodes and connections.
func (e *Engine) GetScenario(ctx context.Context, id string) (*domain.Scenario, error) {
	return e.repo.Get(ctx, id)
}

// ListScenarios returns a summary of every stored scenario.
func (e *Engine) ListScenarios(ctx context.Context) ([]ports.ScenarioSummary, error) {
	return e.repo.List(ctx)
}

// Validate runs every scenario check without saving.
func (e *Engine) Validate(sc *domain.Scenario) []domain.ValidationError {
	return validator.Validate(sc)
}

// SaveScenario validates and persists a scenario. Error findings reject the
// save with domain.ErrInvalidScenario; the findings are returned either way.
// A scenario without an ID gets a new one.
func (e *Engine) SaveScenario(ctx context.Context, sc *domain.Scenario) (*domain.Scenario, []domain.ValidationError, error) {
	if sc == nil {
		return nil, nil, fmt.Errorf("%w: nil scenario", domain.ErrInvalidScenario)
	}
	sc = sc.Clone()
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}

	findings := validator.Validate(sc)
	if validator.HasErrors(findings) {
		return nil, findings, fmt.Errorf("%w: %d error(s)", domain.ErrInvalidScenario,
			len(validator.Errors(findings, domain.SeverityError)))
	}

	version, err := e.repo.Save(ctx, sc)
	if err != nil {
		return nil, findings, fmt.Errorf("failed to save scenario %q: %w", sc.ID, err)
	}
	sc.Version = version
	e.cache.Add(sc.ID, compiler.Compile(sc))

	e.logger.Info("scenario saved", "scenario_id", sc.ID, "version", version, "warnings", len(findings))
	return sc, findings, nil
}

// DeleteScenario removes a scenario and its nodes.
func (e *Engine) DeleteScenario(ctx context.Context, id string) error {
	e.cache.Remove(id)
	return e.repo.Delete(ctx, id)
}

// ImportLegacyScenario converts a legacy export and saves it as one scenario.
// Importing again under the same name updates that scenario in place and
// keeps its node IDs.
func (e *Engine) ImportLegacyScenario(ctx context.Context, name, description string, doc *LegacyDocument) (sc *domain.Scenario, report *ImportReport, err error) {
	if e.metrics != nil {
		defer func() { e.metrics.ObserveImport(err) }()
	}

	opts := append([]importer.Option{importer.WithLogger(e.logger)}, e.importOpts...)
	existing, err := e.repo.FindByName(ctx, name)
	switch {
	case err == nil:
		opts = append(opts, importer.WithScenarioID(existing.ID))
	case errors.Is(err, domain.ErrScenarioNotFound):
	default:
		return nil, nil, fmt.Errorf("failed to look up scenario %q: %w", name, err)
	}

	sc, report, err = importer.Import(name, description, doc, opts...)
	if err != nil {
		return nil, nil, err
	}
	saved, findings, err := e.SaveScenario(ctx, sc)
	if err != nil {
		for _, f := range validator.Errors(findings, domain.SeverityError) {
			report.Warnings = append(report.Warnings, importer.Warning{Code: f.Code, Message: f.Error()})
		}
		return nil, report, err
	}
	return saved, report, nil
}

// graph returns the compiled graph of a scenario. Saves and deletes made
// through this engine refresh the cache; other writers are seen on eviction.
func (e *Engine) graph(ctx context.Context, scenarioID string) (*compiler.Graph, error) {
	if g, ok := e.cache.Get(scenarioID); ok {
		return g, nil
	}
	sc, err := e.repo.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	g := compiler.Compile(sc)
	e.cache.Add(scenarioID, g)
	return g, nil
}

// Mermaid renders a scenario as a Mermaid flowchart. When sessionID names a
// stored session, its position and path are highlighted.
func (e *Engine) Mermaid(ctx context.Context, scenarioID, sessionID string) (string, error) {
	g, err := e.graph(ctx, scenarioID)
	if err != nil {
		return "", err
	}
	var overlay *graph.GraphOverlay
	if sessionID != "" {
		s, err := e.store.Load(ctx, sessionID)
		if err != nil {
			return "", err
		}
		overlay = graph.OverlayFor(s)
	}
	return graph.GenerateMermaid(g, overlay), nil
}

// Session returns a stored session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Advance applies one visitor event to a session, in strict order with any
// other event of the same session. A missing session is created on
// scenarioID. A session that has not started yet starts first: its opening
// event is treated as Start unless it is a trigger phrase.
//
// Actions are handed to the emitter without waiting. A session handed off to
// a human is discarded; the returned Result still carries it.
func (e *Engine) Advance(ctx context.Context, sessionID, scenarioID string, ev domain.Event) (*Result, error) {
	began := time.Now()
	var (
		res    *Result
		runErr error
		before *domain.Session
	)

	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, created, err := e.sessions.LoadOrNew(ctx, sessionID, scenarioID)
		if err != nil {
			return err
		}
		if s.ScenarioID == "" {
			return ErrScenarioRequired
		}
		if !created {
			before = s
		}

		g, err := e.graph(ctx, s.ScenarioID)
		if err != nil {
			return fmt.Errorf("failed to load scenario %q: %w", s.ScenarioID, err)
		}

		if s.CurrentNodeID == "" && ev.Kind != domain.EventStart {
			if _, trigger := g.Trigger(ev.Text); ev.Kind != domain.EventFreeText || !trigger {
				ev = domain.Start()
			}
		}

		res, runErr = e.runtime.Advance(ctx, g, s, ev)
		if res == nil {
			return runErr
		}
		// Rejected input leaves nothing to persist, unless the session is new.
		if res.Outcome == runtime.OutcomeRejected && !created {
			return nil
		}

		if res.Session.Status == domain.SessionHandedOff {
			if created {
				return nil
			}
			return e.store.Delete(ctx, sessionID)
		}
		return e.store.Save(ctx, res.Session)
	})

	if e.metrics != nil {
		outcome := "error"
		if res != nil {
			outcome = string(res.Outcome)
		}
		e.metrics.ObserveAdvance(outcome, time.Since(began))
	}
	if err != nil {
		return nil, err
	}

	e.dispatch(ctx, res)
	if diff := domain.Diff(before, res.Session); diff != nil {
		for _, l := range e.listeners {
			l(ctx, diff)
		}
	}
	return res, runErr
}

// dispatch hands the host-facing side effects to the emitter.
func (e *Engine) dispatch(ctx context.Context, res *Result) {
	for _, fx := range res.SideEffects {
		payload := map[string]any{
			"session_id":  res.Session.ID,
			"scenario_id": res.Session.ScenarioID,
			"node_id":     fx.NodeID,
		}
		switch fx.Kind {
		case domain.EffectAction:
			payload["params"] = fx.Params
			e.emitter.Emit(ctx, string(fx.Action), payload)
		case domain.EffectEligibleToClose, domain.EffectConversion:
			e.emitter.Emit(ctx, string(fx.Kind), payload)
		}
	}
}

// DeleteSession discards a session.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	return e.sessions.Delete(ctx, sessionID)
}
