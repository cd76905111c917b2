package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryRepository_Contract(t *testing.T) {
	ports.RunScenarioRepositoryContract(t, memory.NewRepository())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	s := domain.NewSession("s1", "sc")
	s.Memory["q"] = "a"
	require.NoError(t, store.Save(ctx, s))
	s.Memory["q"] = "mutated"

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.Memory["q"])
}

func TestMemoryRepository_VersionConflict(t *testing.T) {
	repo := memory.NewRepository(&domain.Scenario{ID: "sc", Name: "n"})
	ctx := context.Background()

	sc, err := repo.Get(ctx, "sc")
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Version)

	v, err := repo.Save(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// sc still carries version 1
	_, err = repo.Save(ctx, sc)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}
