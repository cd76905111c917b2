package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// Repository implements ports.ScenarioRepository in memory.
// A save swaps the whole scenario under the lock, so readers never observe a partial graph.
type Repository struct {
	data map[string]*domain.Scenario
	mu   sync.RWMutex
}

// NewRepository creates an in-memory repository seeded with the given scenarios.
func NewRepository(seed ...*domain.Scenario) *Repository {
	r := &Repository{data: make(map[string]*domain.Scenario)}
	for _, sc := range seed {
		_, _ = r.Save(context.Background(), sc)
	}
	return r
}

// Get returns a copy of the scenario.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sc, ok := r.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, id)
	}
	return sc.Clone(), nil
}

// FindByName returns a copy of the scenario with the given name.
func (r *Repository) FindByName(ctx context.Context, name string) (*domain.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sc := range r.data {
		if sc.Name == name {
			return sc.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, name)
}

// Save stores a copy of the scenario and bumps its version.
// A non-zero Version must match the stored one.
func (r *Repository) Save(ctx context.Context, sc *domain.Scenario) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := sc.Clone()
	now := time.Now()
	copied.Version = 1
	copied.CreatedAt = now
	if prev, ok := r.data[sc.ID]; ok {
		if sc.Version != 0 && sc.Version != prev.Version {
			return 0, fmt.Errorf("%w: have %d, got %d", domain.ErrVersionConflict, prev.Version, sc.Version)
		}
		copied.Version = prev.Version + 1
		copied.CreatedAt = prev.CreatedAt
	}
	copied.UpdatedAt = now
	r.data[sc.ID] = copied
	return copied.Version, nil
}

// Delete removes a scenario.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

// List returns scenario summaries sorted by name.
func (r *Repository) List(ctx context.Context) ([]ports.ScenarioSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.ScenarioSummary, 0, len(r.data))
	for _, sc := range r.data {
		out = append(out, ports.ScenarioSummary{
			ID:        sc.ID,
			Name:      sc.Name,
			Version:   sc.Version,
			NodeCount: len(sc.Nodes),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
