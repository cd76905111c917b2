package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// ScenarioSummary is the listing view of a stored scenario.
type ScenarioSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	NodeCount int    `json:"node_count"`
}

// ScenarioRepository persists scenarios together with their nodes and connections.
type ScenarioRepository interface {
	// Get returns the scenario with the given ID, or domain.ErrScenarioNotFound.
	Get(ctx context.Context, id string) (*domain.Scenario, error)

	// FindByName returns the scenario with the given name, or domain.ErrScenarioNotFound.
	FindByName(ctx context.Context, name string) (*domain.Scenario, error)

	// Save replaces the stored scenario atomically: readers observe either the
	// previous graph or the new one, never a mix. It bumps and returns the version.
	Save(ctx context.Context, scenario *domain.Scenario) (int, error)

	// Delete removes the scenario and all its nodes.
	Delete(ctx context.Context, id string) error

	// List returns a summary of every stored scenario.
	List(ctx context.Context) ([]ScenarioSummary, error)
}
