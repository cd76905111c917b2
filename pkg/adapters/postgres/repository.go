// Package postgres stores scenarios in PostgreSQL through pgx.
//
// A scenario is one row in "scenarios" plus one JSONB row per node and per
// connection. Saves replace every child row inside a single transaction, and
// reads aggregate the children in one statement, so a reader never sees a
// half-written graph.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

// DBPool abstracts *pgxpool.Pool so the repository can be driven by pgxmock in tests.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlSelectScenario = `
        SELECT s.id, s.name, s.description, s.version, s.free_input_default, s.created_at, s.updated_at,
               COALESCE((SELECT jsonb_agg(n.body ORDER BY n.ordinal) FROM scenario_nodes n WHERE n.scenario_id = s.id), '[]'::jsonb),
               COALESCE((SELECT jsonb_agg(c.body ORDER BY c.ordinal) FROM scenario_connections c WHERE c.scenario_id = s.id), '[]'::jsonb)
        FROM scenarios s
    `
	sqlLockVersion = `SELECT version, created_at FROM scenarios WHERE id = $1 FOR UPDATE`
	sqlUpsert      = `
        INSERT INTO scenarios (id, name, description, version, free_input_default, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            version = EXCLUDED.version,
            free_input_default = EXCLUDED.free_input_default,
            updated_at = EXCLUDED.updated_at
    `
	sqlDeleteNodes       = `DELETE FROM scenario_nodes WHERE scenario_id = $1`
	sqlDeleteConnections = `DELETE FROM scenario_connections WHERE scenario_id = $1`
	sqlDeleteScenario    = `DELETE FROM scenarios WHERE id = $1`
	sqlList              = `
        SELECT s.id, s.name, s.version, (SELECT count(*) FROM scenario_nodes n WHERE n.scenario_id = s.id)
        FROM scenarios s
        ORDER BY s.name
    `
)

// Repository implements ports.ScenarioRepository on PostgreSQL.
type Repository struct {
	pool   DBPool
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the repository logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// New creates a repository over an existing pool.
func New(pool DBPool, opts ...Option) *Repository {
	r := &Repository{
		pool:   pool,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect opens a pgx pool, verifies the connection and applies the schema.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Repository, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	r := New(pool, opts...)
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return r, pool, nil
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Get returns the scenario with the given ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	sc, err := r.selectOne(ctx, sqlSelectScenario+` WHERE s.id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, id)
	}
	return sc, err
}

// FindByName returns the scenario with the given name.
func (r *Repository) FindByName(ctx context.Context, name string) (*domain.Scenario, error) {
	sc, err := r.selectOne(ctx, sqlSelectScenario+` WHERE s.name = $1`, name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, name)
	}
	return sc, err
}

func (r *Repository) selectOne(ctx context.Context, query string, arg string) (*domain.Scenario, error) {
	var (
		sc                 domain.Scenario
		freeInput          string
		nodes, connections []byte
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&sc.ID, &sc.Name, &sc.Description, &sc.Version, &freeInput, &sc.CreatedAt, &sc.UpdatedAt,
		&nodes, &connections,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query scenario: %w", err)
	}
	sc.FreeInputDefault = domain.FreeInputMode(freeInput)
	if err := json.Unmarshal(nodes, &sc.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes of %s: %w", sc.ID, err)
	}
	if err := json.Unmarshal(connections, &sc.Connections); err != nil {
		return nil, fmt.Errorf("failed to decode connections of %s: %w", sc.ID, err)
	}
	if len(sc.Connections) == 0 {
		sc.Connections = nil
	}
	return &sc, nil
}

// Save replaces the scenario and all of its nodes in one transaction.
func (r *Repository) Save(ctx context.Context, sc *domain.Scenario) (version int, err error) {
	if sc.ID == "" {
		return 0, errors.New("scenario id cannot be empty")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error("failed to rollback scenario save", "scenario_id", sc.ID, "err", rbErr)
		}
	}()

	now := r.now().UTC()
	createdAt := now
	version = 1

	var stored int
	var storedCreated time.Time
	switch err = tx.QueryRow(ctx, sqlLockVersion, sc.ID).Scan(&stored, &storedCreated); {
	case err == nil:
		if sc.Version != 0 && sc.Version != stored {
			return 0, fmt.Errorf("%w: have %d, got %d", domain.ErrVersionConflict, stored, sc.Version)
		}
		version, createdAt = stored+1, storedCreated
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	default:
		return 0, fmt.Errorf("failed to lock scenario: %w", err)
	}

	if _, err = tx.Exec(ctx, sqlUpsert, sc.ID, sc.Name, sc.Description, version, string(sc.FreeInputDefault), createdAt, now); err != nil {
		return 0, fmt.Errorf("failed to upsert scenario: %w", err)
	}
	if _, err = tx.Exec(ctx, sqlDeleteNodes, sc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err = tx.Exec(ctx, sqlDeleteConnections, sc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear connections: %w", err)
	}
	if err = r.copyNodes(ctx, tx, sc); err != nil {
		return 0, err
	}
	if err = r.copyConnections(ctx, tx, sc); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	r.logger.Debug("scenario saved", "scenario_id", sc.ID, "version", version, "nodes", len(sc.Nodes))
	return version, nil
}

func (r *Repository) copyNodes(ctx context.Context, tx pgx.Tx, sc *domain.Scenario) error {
	if len(sc.Nodes) == 0 {
		return nil
	}
	rows := make([][]any, len(sc.Nodes))
	for i, n := range sc.Nodes {
		body, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode node %s: %w", n.ID, err)
		}
		rows[i] = []any{sc.ID, n.ID, i, body}
	}
	count, err := tx.CopyFrom(ctx,
		pgx.Identifier{"scenario_nodes"},
		[]string{"scenario_id", "id", "ordinal", "body"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy nodes: %w", err)
	}
	if int(count) != len(rows) {
		return fmt.Errorf("mismatch in copied nodes count: expected %d, got %d", len(rows), count)
	}
	return nil
}

func (r *Repository) copyConnections(ctx context.Context, tx pgx.Tx, sc *domain.Scenario) error {
	if len(sc.Connections) == 0 {
		return nil
	}
	rows := make([][]any, len(sc.Connections))
	for i, c := range sc.Connections {
		body, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode connection %s: %w", c.ID, err)
		}
		rows[i] = []any{sc.ID, i, body}
	}
	count, err := tx.CopyFrom(ctx,
		pgx.Identifier{"scenario_connections"},
		[]string{"scenario_id", "ordinal", "body"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy connections: %w", err)
	}
	if int(count) != len(rows) {
		return fmt.Errorf("mismatch in copied connections count: expected %d, got %d", len(rows), count)
	}
	return nil
}

// Delete removes the scenario; nodes and connections cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, sqlDeleteScenario, id); err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return nil
}

// List returns summaries ordered by name.
func (r *Repository) List(ctx context.Context) ([]ports.ScenarioSummary, error) {
	rows, err := r.pool.Query(ctx, sqlList)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	out := []ports.ScenarioSummary{}
	for rows.Next() {
		var s ports.ScenarioSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Version, &s.NodeCount); err != nil {
			return nil, fmt.Errorf("failed to scan scenario summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return out, nil
}
