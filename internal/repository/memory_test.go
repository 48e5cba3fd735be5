package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

func TestMemoryStoreInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := models.NewThreat()
	second := models.NewThreat()
	require.NoError(t, store.AddThreat(ctx, first))
	require.NoError(t, store.AddThreat(ctx, second))

	threats, err := store.ListThreats(ctx)
	require.NoError(t, err)
	require.Len(t, threats, 2)
	assert.Equal(t, first.ID, threats[0].ID)
	assert.Equal(t, second.ID, threats[1].ID)
}

func TestMemoryStoreUpsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	threat := models.NewThreat()
	threat.Description = "original"
	require.NoError(t, store.AddThreat(ctx, threat))

	// Re-adding the same identity replaces in place, preserving order.
	score := 0.8
	threat.MLScore = &score
	threat.Description = "scored"
	require.NoError(t, store.AddThreat(ctx, threat))

	threats, err := store.ListThreats(ctx)
	require.NoError(t, err)
	require.Len(t, threats, 1)
	assert.Equal(t, "scored", threats[0].Description)
	require.NotNil(t, threats[0].MLScore)
	assert.Equal(t, 0.8, *threats[0].MLScore)
}

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	threat := models.NewThreat()
	require.NoError(t, store.AddThreat(ctx, threat))

	got, err := store.GetThreat(ctx, threat.ID)
	require.NoError(t, err)
	assert.Equal(t, threat.ID, got.ID)

	_, err = store.GetThreat(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreMarkResolved(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	threat := models.NewThreat()
	require.NoError(t, store.AddThreat(ctx, threat))

	at := time.Now().UTC()
	require.NoError(t, store.MarkResolved(ctx, threat.ID, at))

	got, err := store.GetThreat(ctx, threat.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(at))

	assert.ErrorIs(t, store.MarkResolved(ctx, uuid.New(), at), ErrNotFound)
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	threat := models.NewThreat()
	threat.Description = "stored"
	require.NoError(t, store.AddThreat(ctx, threat))

	// Mutating the caller's record after the write must not leak into the
	// store, and mutating a listed snapshot must not either.
	threat.Description = "mutated after write"

	threats, err := store.ListThreats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stored", threats[0].Description)

	threats[0].Description = "mutated snapshot"
	again, err := store.ListThreats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stored", again[0].Description)
}

func TestMemoryStoreActions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	action := models.NewAction(uuid.New())
	action.ActionType = models.ActionIsolatePod
	require.NoError(t, store.AddAction(ctx, action))

	got, err := store.GetAction(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionIsolatePod, got.ActionType)

	actions, err := store.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)

	_, err = store.GetAction(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
