package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	at := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	turns := []domain.Turn{
		domain.NewTurn(domain.RoleSystem, "Bạn là trợ lý AI", at),
		domain.NewTurn(domain.RoleUser, "xin chào", at.Add(time.Second)),
		domain.NewTurn(domain.RoleAssistant, "chào bạn", at.Add(2*time.Second)),
	}
	require.NoError(t, store.Save(ctx, turns))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range turns {
		assert.Equal(t, turns[i].Role, got[i].Role)
		assert.Equal(t, turns[i].Content, got[i].Content)
		assert.True(t, turns[i].Timestamp.Equal(got[i].Timestamp), "turn %d timestamp", i)
	}
}

func TestSQLiteStoreSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.Save(ctx, []domain.Turn{
		domain.NewTurn(domain.RoleUser, "old", now),
		domain.NewTurn(domain.RoleAssistant, "old reply", now),
	}))
	require.NoError(t, store.Save(ctx, []domain.Turn{
		domain.NewTurn(domain.RoleUser, "new", now),
	}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Content)
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, []domain.Turn{domain.NewTurn(domain.RoleUser, "hi", time.Time{})}))
	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStoreRejectsUnknownRole(t *testing.T) {
	store := newTestStore(t)

	err := store.Save(context.Background(), []domain.Turn{{Role: "tool", Content: "x"}})
	assert.Error(t, err)
}

func TestSQLiteStoreZeroTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Timestamp.IsZero())
}
