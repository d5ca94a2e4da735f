package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

func TestMemoryStore_FindOpenRoomOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, ok, err := s.FindOpenRoom(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	newer, err := s.Create(ctx, now)
	require.NoError(t, err)
	older, err := s.Create(ctx, now.Add(-time.Minute))
	require.NoError(t, err)

	id, ok, err := s.FindOpenRoom(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, older, id)

	require.NoError(t, s.MarkStarted(ctx, older))
	id, _, _ = s.FindOpenRoom(ctx)
	assert.Equal(t, newer, id)
}

func TestMemoryStore_CancelStaleKeepsLiveRooms(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	stale, _ := s.Create(ctx, now.Add(-time.Hour))
	live, _ := s.Create(ctx, now.Add(-time.Hour))
	fresh, _ := s.Create(ctx, now)

	n, err := s.CancelStale(ctx, now.Add(-time.Minute), []string{live})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	g, _ := s.Get(ctx, stale)
	assert.Equal(t, models.StatusCancelled, g.Status)
	g, _ = s.Get(ctx, live)
	assert.Equal(t, models.StatusWaiting, g.Status)
	g, _ = s.Get(ctx, fresh)
	assert.Equal(t, models.StatusWaiting, g.Status)
}

func TestMemoryStore_PersistFinalAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	first, _ := s.Create(ctx, now.Add(-2*time.Minute))
	second, _ := s.Create(ctx, now.Add(-time.Minute))

	winner := "alice"
	require.NoError(t, s.PersistFinal(ctx, models.Game{
		ID:        first,
		Status:    models.StatusFinished,
		CreatedAt: now.Add(-2 * time.Minute),
		Winner:    &winner,
	}))

	games, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, second, games[0].ID)
	assert.Equal(t, models.StatusFinished, games[1].Status)

	games, _ = s.List(ctx, 1)
	assert.Len(t, games, 1)

	missing, err := s.Get(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
