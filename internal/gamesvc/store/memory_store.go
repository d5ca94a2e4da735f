package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

// MemoryStore keeps games in process memory. It backs the service when no
// Postgres url is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]models.Game
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]models.Game)}
}

func (s *MemoryStore) FindOpenRoom(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open *models.Game
	for _, g := range s.games {
		if g.Status != models.StatusWaiting {
			continue
		}
		if open == nil || g.CreatedAt.Before(open.CreatedAt) {
			g := g
			open = &g
		}
	}
	if open == nil {
		return "", false, nil
	}
	return open.ID, true, nil
}

func (s *MemoryStore) Create(ctx context.Context, createdAt time.Time) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[id] = models.Game{
		ID:           id,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
		DrawnNumbers: []int{},
		PlayerCards:  []models.PlayerCard{},
	}
	return id, nil
}

func (s *MemoryStore) MarkStarted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok && g.Status == models.StatusWaiting {
		g.Status = models.StatusPlaying
		s.games[id] = g
	}
	return nil
}

func (s *MemoryStore) PersistFinal(ctx context.Context, game models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
	return nil
}

func (s *MemoryStore) CancelStale(ctx context.Context, olderThan time.Time, keep []string) (int64, error) {
	skip := make(map[string]bool, len(keep))
	for _, id := range keep {
		skip[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, g := range s.games {
		if g.Status == models.StatusWaiting && g.CreatedAt.Before(olderThan) && !skip[id] {
			g.Status = models.StatusCancelled
			s.games[id] = g
			n++
		}
	}
	return n, nil
}

// List returns up to limit games, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}
