package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "scenario-1")
		session.Visit("start")
		session.Visit("q1")
		session.Memory["q1"] = "my order is late"
		session.Record(domain.Diagnostic{Code: domain.CodeDanglingJump, NodeID: "q1", Message: "x"})

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "q1", loaded.CurrentNodeID)
		assert.Equal(t, "scenario-1", loaded.ScenarioID)
		assert.Equal(t, "my order is late", loaded.Memory["q1"])
		assert.Equal(t, []string{"start", "q1"}, loaded.History)
		assert.Equal(t, domain.SessionActive, loaded.Status)
		require.Len(t, loaded.Diagnostics, 1)
		assert.Equal(t, domain.CodeDanglingJump, loaded.Diagnostics[0].Code)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		session := domain.NewSession(sessionID, "scenario-1")
		session.Visit("end")
		session.Status = domain.SessionClosed
		require.NoError(t, store.Save(ctx, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "end", loaded.CurrentNodeID)
		assert.Equal(t, domain.SessionClosed, loaded.Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID, "scenario-1"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, "scenario-1"))
		_ = store.Save(ctx, domain.NewSession(id2, "scenario-1"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunScenarioRepositoryContract runs a suite of tests to verify that a ScenarioRepository
// implementation adheres to the defined interface contract.
func RunScenarioRepositoryContract(t *testing.T, repo ScenarioRepository) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405")

	newScenario := func(id, name string) *domain.Scenario {
		return &domain.Scenario{
			ID:   id,
			Name: name,
			Nodes: []domain.Node{
				{ID: id + "-start", Kind: domain.KindStart},
				{
					ID:        id + "-welcome",
					Kind:      domain.KindQuestion,
					ParentID:  id + "-start",
					Responses: []domain.Response{{Type: domain.ResponseText, Text: "Hi!"}},
					Branches:  []domain.Branch{{ID: "b1", Label: "Bye", Kind: domain.BranchJump, TargetNodeName: "bye"}},
				},
				{
					ID:       id + "-bye",
					Kind:     domain.KindEnd,
					Settings: &domain.NodeSettings{NodeName: "bye"},
				},
			},
			Connections: []domain.Connection{{ID: "c1", Source: id + "-start", Target: id + "-welcome"}},
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		id := "contract-scenario-" + suffix
		version, err := repo.Save(ctx, newScenario(id, "support-"+suffix))
		require.NoError(t, err)
		assert.Equal(t, 1, version)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "support-"+suffix, got.Name)
		assert.Equal(t, 1, got.Version)
		require.Len(t, got.Nodes, 3)
		welcome := got.Node(id + "-welcome")
		require.NotNil(t, welcome)
		assert.Equal(t, "Hi!", welcome.Responses[0].Text)
		assert.Equal(t, "bye", welcome.Branches[0].TargetNodeName)
		assert.Equal(t, "bye", got.Node(id+"-bye").Name())
		require.Len(t, got.Connections, 1)
	})

	t.Run("Save Replaces And Bumps Version", func(t *testing.T) {
		id := "contract-scenario-" + suffix
		sc := newScenario(id, "support-"+suffix)
		sc.Nodes = sc.Nodes[:2]
		sc.Connections = nil

		version, err := repo.Save(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, 2, version)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Nodes, 2, "nodes removed from the scenario must be gone")
		assert.Empty(t, got.Connections)
	})

	t.Run("FindByName", func(t *testing.T) {
		got, err := repo.FindByName(ctx, "support-"+suffix)
		require.NoError(t, err)
		assert.Equal(t, "contract-scenario-"+suffix, got.ID)

		_, err = repo.FindByName(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
	})

	t.Run("List", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		var found bool
		for _, s := range list {
			if s.ID == "contract-scenario-"+suffix {
				found = true
				assert.Equal(t, 2, s.NodeCount)
			}
		}
		assert.True(t, found, "saved scenario should be listed")
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := "contract-scenario-" + suffix
		require.NoError(t, repo.Delete(ctx, id))
		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
	})
}
