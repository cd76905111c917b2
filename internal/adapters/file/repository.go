package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Repository implements ports.ScenarioRepository with one YAML file per scenario.
// Saves go through an atomic rename, so a reader sees either the old file or the new one.
type Repository struct {
	BasePath string

	parser compiler.Parser
	mu     sync.Mutex // serializes version bumps
}

// NewRepository creates a file repository rooted at basePath.
// If basePath is empty, it defaults to ".concierge/scenarios".
func NewRepository(basePath string) *Repository {
	if basePath == "" {
		basePath = filepath.Join(".concierge", "scenarios")
	}
	return &Repository{BasePath: basePath}
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.BasePath, id+".yaml")
}

// Get reads the scenario file.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	if id == "" {
		return nil, errEmptyID
	}
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, id)
		}
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := r.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", id, err)
	}
	return sc, nil
}

// FindByName scans every scenario file for a matching name.
func (r *Repository) FindByName(ctx context.Context, name string) (*domain.Scenario, error) {
	ids, err := listIDs(r.BasePath, ".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	for _, id := range ids {
		sc, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, name)
}

// Save writes the whole scenario in one file replacement and bumps its version.
func (r *Repository) Save(ctx context.Context, sc *domain.Scenario) (int, error) {
	if sc.ID == "" {
		return 0, errEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := sc.Clone()
	now := time.Now().UTC()
	out.Version = 1
	out.CreatedAt = now

	prev, err := r.Get(ctx, sc.ID)
	switch {
	case err == nil:
		if sc.Version != 0 && sc.Version != prev.Version {
			return 0, fmt.Errorf("%w: have %d, got %d", domain.ErrVersionConflict, prev.Version, sc.Version)
		}
		out.Version = prev.Version + 1
		out.CreatedAt = prev.CreatedAt
	case !isNotFound(err):
		return 0, err
	}
	out.UpdatedAt = now

	data, err := yaml.Marshal(out)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := writeAtomic(r.path(sc.ID), data); err != nil {
		return 0, fmt.Errorf("failed to save scenario %s: %w", sc.ID, err)
	}
	return out.Version, nil
}

// Delete removes the scenario file.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	err := os.Remove(r.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete scenario file: %w", err)
	}
	return nil
}

// List returns summaries of every scenario file, sorted by name.
func (r *Repository) List(ctx context.Context) ([]ports.ScenarioSummary, error) {
	ids, err := listIDs(r.BasePath, ".yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	out := make([]ports.ScenarioSummary, 0, len(ids))
	for _, id := range ids {
		sc, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ports.ScenarioSummary{ID: sc.ID, Name: sc.Name, Version: sc.Version, NodeCount: len(sc.Nodes)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrScenarioNotFound)
}
