package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{Path: filepath.Join(t.TempDir(), "agents.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string) *store.AgentRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.AgentRecord{
		ID: id,
		Config: &config.AgentConfig{
			AgentName: "researcher",
			Nodes:     []config.NodeConfig{{ID: "n", Type: "reasoning", Temperature: 0.5}},
			Edges:     []config.EdgeConfig{{Source: config.Start, Target: "n"}, {Source: "n", Target: config.End}},
		},
		State:     graph.State{"last_response": "hello"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSqliteStore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := testRecord("agent-1")
	require.NoError(t, s.Save(ctx, rec))

	loaded, err := s.Load(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.Config, loaded.Config)
	assert.Equal(t, "hello", loaded.State["last_response"])

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "agent-1", list[0].ID)

	require.NoError(t, s.Delete(ctx, "agent-1"))
	_, err = s.Load(ctx, "agent-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "agent-1"), store.ErrNotFound)
}

func TestSqliteStoreUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := testRecord("agent-1")
	require.NoError(t, s.Save(ctx, rec))

	rec.State = graph.State{"last_response": "updated"}
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.Save(ctx, rec))

	loaded, err := s.Load(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", loaded.State["last_response"])

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSqliteStoreNilState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := testRecord("agent-1")
	rec.State = nil
	require.NoError(t, s.Save(ctx, rec))

	loaded, err := s.Load(ctx, "agent-1")
	require.NoError(t, err)
	assert.Nil(t, loaded.State)
}
