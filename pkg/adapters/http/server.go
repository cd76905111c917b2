// Package http exposes the engine over HTTP: scenario CRUD for the editor,
// legacy import, session advance for the widget, and an SSE stream of
// session changes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxScenarioBody = 1 << 20
	maxImportBody   = 16 << 20
	maxEventBody    = 64 << 10
)

// Engine is the part of concierge.Engine the server needs.
type Engine interface {
	ListScenarios(ctx context.Context) ([]ports.ScenarioSummary, error)
	GetScenario(ctx context.Context, id string) (*domain.Scenario, error)
	SaveScenario(ctx context.Context, sc *domain.Scenario) (*domain.Scenario, []domain.ValidationError, error)
	DeleteScenario(ctx context.Context, id string) error
	ImportLegacyScenario(ctx context.Context, name, description string, doc *concierge.LegacyDocument) (*domain.Scenario, *concierge.ImportReport, error)
	Mermaid(ctx context.Context, scenarioID, sessionID string) (string, error)
	Advance(ctx context.Context, sessionID, scenarioID string, ev domain.Event) (*concierge.Result, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Server serves the HTTP API.
type Server struct {
	Engine   Engine
	Streams  *StreamManager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams serves GET /sessions/{id}/events from sm. Register
// sm.Publish on the engine with concierge.WithSessionListener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics serves GET /metrics from g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", s.ListScenarios)
		r.Post("/import", s.ImportScenario)
		r.Get("/{id}", s.GetScenario)
		r.Put("/{id}", s.PutScenario)
		r.Delete("/{id}", s.DeleteScenario)
		r.Get("/{id}/graph", s.GetGraph)
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Delete("/", s.DeleteSession)
		r.Post("/advance", s.Advance)
		if s.Streams != nil {
			r.Get("/events", s.SubscribeEvents)
		}
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(began),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error    string                   `json:"error"`
	Findings []domain.ValidationError `json:"findings,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	var serr *domain.StructuralError
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrSessionInactive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidScenario), errors.Is(err, domain.ErrInputNotAccepted),
		errors.Is(err, domain.ErrUnknownBranch), errors.As(err, &serr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, concierge.ErrScenarioRequired), errors.Is(err, runner.ErrInputTooLarge),
		errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("request body must hold a single JSON value")
	}
	return nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListScenarios handles GET /scenarios.
func (s *Server) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.Engine.ListScenarios(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []ports.ScenarioSummary{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GetScenario handles GET /scenarios/{id}.
func (s *Server) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.Engine.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

// saveResponse is returned by a successful save or import.
type saveResponse struct {
	Error    string                   `json:"error,omitempty"`
	Scenario *domain.Scenario         `json:"scenario,omitempty"`
	Findings []domain.ValidationError `json:"findings,omitempty"`
	Report   *concierge.ImportReport  `json:"report,omitempty"`
}

// PutScenario handles PUT /scenarios/{id}. Validation errors answer 422
// with the findings; warnings are returned with the saved scenario.
func (s *Server) PutScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var sc domain.Scenario
	if err := decode(w, r, maxScenarioBody, &sc); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid scenario body: " + err.Error()})
		return
	}
	if sc.ID != "" && sc.ID != id {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "scenario id does not match the path"})
		return
	}
	sc.ID = id

	saved, findings, err := s.Engine.SaveScenario(r.Context(), &sc)
	if errors.Is(err, domain.ErrInvalidScenario) {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Findings: findings})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saveResponse{Scenario: saved, Findings: findings})
}

// DeleteScenario handles DELETE /scenarios/{id}.
func (s *Server) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteScenario(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportScenario handles POST /scenarios/import?name=...&description=...
// The body is the legacy export itself.
func (s *Server) ImportScenario(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "name query parameter is required"})
		return
	}

	doc, err := concierge.DecodeLegacy(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	sc, report, err := s.Engine.ImportLegacyScenario(r.Context(), name, r.URL.Query().Get("description"), doc)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("import failed", "name", name, "error", err)
		}
		s.writeJSON(w, status, saveResponse{Error: err.Error(), Report: report})
		return
	}
	s.writeJSON(w, http.StatusCreated, saveResponse{Scenario: sc, Report: report})
}

// GetGraph handles GET /scenarios/{id}/graph, optionally highlighting ?session=.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	out, err := s.Engine.Mermaid(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

// AdvanceRequest is the body of POST /sessions/{id}/advance.
type AdvanceRequest struct {
	ScenarioID string       `json:"scenario_id,omitempty"`
	Event      domain.Event `json:"event"`
}

// AdvanceResponse carries the result, and the error when the event was
// refused or met a structural problem.
type AdvanceResponse struct {
	*concierge.Result
	Error string `json:"error,omitempty"`
}

// Advance handles POST /sessions/{id}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	var req AdvanceRequest
	if err := decode(w, r, maxEventBody, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid event body: " + err.Error()})
		return
	}

	if req.Event.Text != "" {
		clean, err := runner.SanitizeInput(req.Event.Text)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Event.Text = clean
	}

	res, err := s.Engine.Advance(r.Context(), chi.URLParam(r, "id"), req.ScenarioID, req.Event)
	if res == nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	resp := AdvanceResponse{Result: res}
	if err != nil {
		resp.Error = err.Error()
		var serr *domain.StructuralError
		if !errors.As(err, &serr) {
			// Structural problems keep the session usable; only refused input is an error status.
			status = statusFor(err)
		}
	}
	s.writeJSON(w, status, resp)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.Engine.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
