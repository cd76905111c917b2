package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/pkg/adapters/http"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/dsl"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() *domain.Scenario {
	b := dsl.New("support")
	b.Start("start").Go("welcome")
	b.Question("welcome").Say("Hi!").FreeInput(domain.FreeInputDisabled).Button("bye", "Bye", "bye")
	b.End("bye").Say("Bye!")
	return b.Scenario()
}

type fixture struct {
	handler  nethttp.Handler
	engine   *concierge.Engine
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	streams := http.NewStreamManager(nil)
	eng, err := concierge.New(
		concierge.WithMetrics(observability.NewMetrics(reg)),
		concierge.WithSessionListener(streams.Publish),
	)
	require.NoError(t, err)
	return &fixture{
		handler:  http.NewHandler(eng, http.WithStreams(streams), http.WithMetrics(reg)),
		engine:   eng,
		registry: reg,
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(method, target, r))
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/health", nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestScenarioCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "PUT", "/scenarios/support", scenario())
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"version":1`)

	w = f.do(t, "GET", "/scenarios/support", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var got domain.Scenario
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Nodes, 3)

	w = f.do(t, "GET", "/scenarios", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"node_count":3`)

	w = f.do(t, "GET", "/scenarios/support/graph", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))

	w = f.do(t, "DELETE", "/scenarios/support", nil)
	assert.Equal(t, nethttp.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/scenarios/support", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestPutScenario_InvalidReturnsFindings(t *testing.T) {
	f := newFixture(t)
	b := dsl.New("broken")
	b.Start("start").Go("q")
	b.Question("q").Say("?").Jump("j", "Back", "missing")

	w := f.do(t, "PUT", "/scenarios/broken", b.Scenario())
	require.Equal(t, nethttp.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error    string                   `json:"error"`
		Findings []domain.ValidationError `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Findings)
	assert.Equal(t, domain.CodeDanglingJump, body.Findings[0].Code)
}

func TestPutScenario_BadRequests(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "PUT", "/scenarios/other", scenario())
	assert.Equal(t, nethttp.StatusBadRequest, w.Code, "id mismatch")

	w = f.do(t, "PUT", "/scenarios/support", []byte("{"))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestPutScenario_VersionConflict(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, nethttp.StatusOK, f.do(t, "PUT", "/scenarios/support", scenario()).Code)

	stale := scenario()
	stale.Version = 7
	w := f.do(t, "PUT", "/scenarios/support", stale)
	assert.Equal(t, nethttp.StatusConflict, w.Code)
}

func TestImportScenario(t *testing.T) {
	f := newFixture(t)
	data, err := os.ReadFile("../../../internal/importer/testdata/legacy_export.json")
	require.NoError(t, err)

	w := f.do(t, "POST", "/scenarios/import?name=legacy&description=old", data)
	require.Equal(t, nethttp.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Scenario domain.Scenario        `json:"scenario"`
		Report   concierge.ImportReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "legacy", body.Scenario.Name)
	assert.NotZero(t, body.Report.Nodes)

	w = f.do(t, "POST", "/scenarios/import", data)
	assert.Equal(t, nethttp.StatusBadRequest, w.Code, "name is required")
}

func TestAdvance(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, nethttp.StatusOK, f.do(t, "PUT", "/scenarios/support", scenario()).Code)

	w := f.do(t, "POST", "/sessions/v1/advance", http.AdvanceRequest{ScenarioID: "support", Event: domain.Start()})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"current_node_id":"welcome"`)

	w = f.do(t, "POST", "/sessions/v1/advance", http.AdvanceRequest{Event: domain.FreeText("hello")})
	assert.Equal(t, nethttp.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrInputNotAccepted.Error())
	assert.Contains(t, w.Body.String(), `"outcome":"rejected"`)

	w = f.do(t, "GET", "/sessions/v1", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"current_node_id":"welcome"`)

	w = f.do(t, "DELETE", "/sessions/v1", nil)
	assert.Equal(t, nethttp.StatusNoContent, w.Code)
	assert.Equal(t, nethttp.StatusNotFound, f.do(t, "GET", "/sessions/v1", nil).Code)

	w = f.do(t, "POST", "/sessions/v2/advance", http.AdvanceRequest{Event: domain.Start()})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code, "new session without scenario")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, nethttp.StatusOK, f.do(t, "PUT", "/scenarios/support", scenario()).Code)
	f.do(t, "POST", "/sessions/v1/advance", http.AdvanceRequest{ScenarioID: "support", Event: domain.Start()})

	w := f.do(t, "GET", "/metrics", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "concierge_advance_duration_seconds")
	assert.Contains(t, w.Body.String(), "concierge_node_visits_total")
}

func TestSubscribeEvents_Session(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, nethttp.StatusOK, f.do(t, "PUT", "/scenarios/support", scenario()).Code)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := nethttp.NewRequestWithContext(ctx, "GET", srv.URL+"/sessions/v1/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewReader(resp.Body)
	line, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	_, err = f.engine.Advance(ctx, "v1", "support", domain.Start())
	require.NoError(t, err)

	for {
		line, err = lines.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	assert.Contains(t, line, `"session_id":"v1"`)
	assert.Contains(t, line, `"current_node_id":"welcome"`)
}
