package concierge_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/dsl"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type emitted struct {
	kind    string
	payload map[string]any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(_ context.Context, kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{kind: kind, payload: payload})
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func supportScenario() *domain.Scenario {
	b := dsl.New("support")
	b.Start("start").Go("welcome")
	b.Question("welcome").
		Named("welcome").
		Say("Hi! What do you need?").
		Button("billing", "Billing", "billing").
		Button("quiet", "Read only", "quiet").
		Button("human", "Human", "handoff")
	b.Message("billing").Say("Invoices are sent monthly.").Go("menu")
	b.Question("menu").Say("Anything else?").Jump("again", "Again", "welcome").Button("done", "Done", "bye")
	b.Question("quiet").Say("Pick an option.").FreeInput(domain.FreeInputDisabled).Jump("back", "Back", "welcome")
	b.Action("handoff", domain.ActionTransferHuman, map[string]any{"queue": "tier1"})
	b.Question("operator").Say("Connecting you to an operator.").Trigger("operator").Jump("op-back", "Back", "welcome")
	b.End("bye").Say("Bye!")
	return b.Scenario()
}

func newEngine(t *testing.T, opts ...concierge.Option) (*concierge.Engine, *domain.Scenario) {
	t.Helper()
	eng, err := concierge.New(opts...)
	require.NoError(t, err)

	sc, _, err := eng.SaveScenario(context.Background(), supportScenario())
	require.NoError(t, err)
	return eng, sc
}

func TestEngine_SaveScenarioRejectsInvalid(t *testing.T) {
	eng, err := concierge.New()
	require.NoError(t, err)
	ctx := context.Background()

	b := dsl.New("broken")
	b.Start("start").Go("q")
	b.Question("q").Say("?").Jump("j", "Back", "missing")

	saved, findings, err := eng.SaveScenario(ctx, b.Scenario())
	assert.ErrorIs(t, err, domain.ErrInvalidScenario)
	assert.Nil(t, saved)
	require.NotEmpty(t, findings)
	assert.Equal(t, domain.CodeDanglingJump, findings[0].Code)

	_, err = eng.GetScenario(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}

func TestEngine_SaveScenarioBumpsVersion(t *testing.T) {
	eng, sc := newEngine(t)
	assert.Equal(t, 1, sc.Version)

	again, _, err := eng.SaveScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)

	got, err := eng.GetScenario(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestEngine_AdvancePersistsSession(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	res, err := eng.Advance(ctx, "v1", sc.ID, domain.Start())
	require.NoError(t, err)
	assert.Equal(t, "welcome", res.Session.CurrentNodeID)
	require.NotNil(t, res.Current())
	assert.Equal(t, "Hi! What do you need?", res.Current().Responses[0].Text)

	res, err = eng.Advance(ctx, "v1", "", domain.SelectBranch("billing"))
	require.NoError(t, err)
	assert.Equal(t, "menu", res.Session.CurrentNodeID)
	require.Len(t, res.Rendered, 2, "billing message then menu question")

	stored, err := eng.Session(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "menu", stored.CurrentNodeID)
	assert.Equal(t, []string{"start", "welcome", "billing", "menu"}, stored.History)
}

func TestEngine_FirstEventStartsSession(t *testing.T) {
	eng, sc := newEngine(t)

	res, err := eng.Advance(context.Background(), "v1", sc.ID, domain.SelectBranch("billing"))
	require.NoError(t, err)
	assert.Equal(t, "welcome", res.Session.CurrentNodeID)
}

func TestEngine_NewSessionNeedsScenario(t *testing.T) {
	eng, _ := newEngine(t)

	_, err := eng.Advance(context.Background(), "v1", "", domain.Start())
	assert.ErrorIs(t, err, concierge.ErrScenarioRequired)
}

func TestEngine_TriggerWinsEverywhere(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	res, err := eng.Advance(ctx, "fresh", sc.ID, domain.FreeText("operator"))
	require.NoError(t, err)
	assert.Equal(t, "operator", res.Session.CurrentNodeID, "a new session honours trigger phrases")

	_, err = eng.Advance(ctx, "v2", sc.ID, domain.Start())
	require.NoError(t, err)
	_, err = eng.Advance(ctx, "v2", sc.ID, domain.SelectBranch("quiet"))
	require.NoError(t, err)

	res, err = eng.Advance(ctx, "v2", sc.ID, domain.FreeText("operator"))
	require.NoError(t, err, "triggers bypass the disabled free input of the current node")
	assert.Equal(t, "operator", res.Session.CurrentNodeID)
}

func TestEngine_TriggerReopensClosedSession(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	for _, ev := range []domain.Event{domain.Start(), domain.SelectBranch("billing"), domain.SelectBranch("done")} {
		_, err := eng.Advance(ctx, "v1", sc.ID, ev)
		require.NoError(t, err)
	}

	res, err := eng.Advance(ctx, "v1", sc.ID, domain.FreeText("operator"))
	require.NoError(t, err)
	assert.Equal(t, "operator", res.Session.CurrentNodeID)

	stored, err := eng.Session(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, stored.Status)
}

func TestEngine_InputNotAcceptedKeepsStoredSession(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	_, err := eng.Advance(ctx, "v1", sc.ID, domain.Start())
	require.NoError(t, err)
	_, err = eng.Advance(ctx, "v1", sc.ID, domain.SelectBranch("quiet"))
	require.NoError(t, err)
	before, err := eng.Session(ctx, "v1")
	require.NoError(t, err)

	res, err := eng.Advance(ctx, "v1", sc.ID, domain.FreeText("hi"))
	assert.ErrorIs(t, err, domain.ErrInputNotAccepted)
	require.NotNil(t, res)
	assert.Equal(t, concierge.Outcome("rejected"), res.Outcome)

	after, err := eng.Session(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEngine_HandOffEmitsOnceAndDiscardsSession(t *testing.T) {
	rec := &recorder{}
	eng, sc := newEngine(t, concierge.WithEmitter(rec))
	ctx := context.Background()

	_, err := eng.Advance(ctx, "v1", sc.ID, domain.Start())
	require.NoError(t, err)
	res, err := eng.Advance(ctx, "v1", sc.ID, domain.SelectBranch("human"))
	require.NoError(t, err)
	assert.Equal(t, domain.SessionHandedOff, res.Session.Status)

	assert.Equal(t, []string{string(domain.ActionTransferHuman)}, rec.kinds())
	payload := rec.events[0].payload
	assert.Equal(t, "v1", payload["session_id"])
	assert.Equal(t, sc.ID, payload["scenario_id"])
	assert.Equal(t, map[string]any{"queue": "tier1"}, payload["params"])

	_, err = eng.Session(ctx, "v1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_EndEmitsEligibleForClose(t *testing.T) {
	rec := &recorder{}
	eng, sc := newEngine(t, concierge.WithEmitter(rec))
	ctx := context.Background()

	for _, ev := range []domain.Event{domain.Start(), domain.SelectBranch("billing"), domain.SelectBranch("done")} {
		_, err := eng.Advance(ctx, "v1", sc.ID, ev)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{string(domain.EffectEligibleToClose)}, rec.kinds())

	stored, err := eng.Session(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionClosed, stored.Status)
}

// overlapStore fails the test if two operations on the store ever overlap.
type overlapStore struct {
	ports.SessionStore
	t        *testing.T
	inFlight atomic.Int32
}

func (s *overlapStore) enter() func() {
	if s.inFlight.Add(1) != 1 {
		s.t.Error("concurrent store access for one session")
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *overlapStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	defer s.enter()()
	return s.SessionStore.Load(ctx, id)
}

func (s *overlapStore) Save(ctx context.Context, session *domain.Session) error {
	defer s.enter()()
	return s.SessionStore.Save(ctx, session)
}

func TestEngine_AdvancesOfOneSessionAreSerialized(t *testing.T) {
	store := &overlapStore{SessionStore: memory.NewStore(), t: t}
	eng, sc := newEngine(t, concierge.WithSessionStore(store))

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := eng.Advance(context.Background(), "busy", sc.ID, domain.Start())
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestEngine_ImportLegacyScenarioReusesScenario(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	eng, err := concierge.New(concierge.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	load := func() *concierge.LegacyDocument {
		f, err := os.Open("internal/importer/testdata/legacy_export.json")
		require.NoError(t, err)
		defer f.Close()
		doc, err := concierge.DecodeLegacy(f)
		require.NoError(t, err)
		return doc
	}

	first, report, err := eng.ImportLegacyScenario(ctx, "legacy", "imported", load())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Warnings)
	assert.Equal(t, 1, first.Version)

	second, _, err := eng.ImportLegacyScenario(ctx, "legacy", "imported", load())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.Nodes, second.Nodes)

	list, err := eng.ListScenarios(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Imports.WithLabelValues("ok")))

	res, err := eng.Advance(ctx, "v1", first.ID, domain.Start())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Current().Responses)
}

func TestEngine_Mermaid(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	out, err := eng.Mermaid(ctx, sc.ID, "")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")

	_, err = eng.Advance(ctx, "v1", sc.ID, domain.Start())
	require.NoError(t, err)
	out, err = eng.Mermaid(ctx, sc.ID, "v1")
	require.NoError(t, err)
	assert.Contains(t, out, "classDef current")
}

func TestEngine_DeleteScenarioDropsCache(t *testing.T) {
	eng, sc := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.DeleteScenario(ctx, sc.ID))
	_, err := eng.Advance(ctx, "v1", sc.ID, domain.Start())
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}
