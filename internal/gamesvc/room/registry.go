package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

// Registry maps room ids to their coordinators. It is the only shared
// table of live rooms.
type Registry struct {
	cfg  Config
	deps Deps

	mu       sync.RWMutex
	rooms    map[string]*Coordinator
	onRemove []func(id string)
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:   cfg,
		deps:  deps,
		rooms: make(map[string]*Coordinator),
	}
}

func (r *Registry) Get(id string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rooms[id]
	return c, ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// JoinOpenRoom seats userID in a room. A player already holding a card in a
// live room gets that room back; otherwise the oldest waiting room is used, and
// a new one is created when there is none.
func (r *Registry) JoinOpenRoom(ctx context.Context, userID string) (*Coordinator, models.PlayerCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.rooms {
		if pc, ok := c.Card(userID); ok && !c.Status().Terminal() {
			return c, pc, nil
		}
	}

	r.cancelStaleLocked(ctx)

	c := r.openRoomLocked(ctx)
	for attempt := 0; attempt < 2; attempt++ {
		if c == nil {
			var err error
			if c, err = r.createLocked(ctx); err != nil {
				return nil, models.PlayerCard{}, err
			}
		}

		pc, _, err := c.Join(userID)
		if err == nil {
			return c, pc, nil
		}
		if !errors.Is(err, ErrNotJoinable) && !errors.Is(err, ErrRoomClosed) {
			return nil, models.PlayerCard{}, err
		}
		// the room started or closed between lookup and join
		c = nil
	}
	return nil, models.PlayerCard{}, fmt.Errorf("join room for %s: %w", userID, ErrNotJoinable)
}

// Disband stops room id and removes it.
func (r *Registry) Disband(ctx context.Context, id string) error {
	c, ok := r.Get(id)
	if !ok {
		return ErrRoomNotFound
	}
	if err := c.Disband(ctx); err != nil {
		return err
	}
	r.remove(id)
	return nil
}

// Shutdown disbands every live room.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	rooms := make([]*Coordinator, 0, len(r.rooms))
	for _, c := range r.rooms {
		rooms = append(rooms, c)
	}
	r.mu.RUnlock()

	for _, c := range rooms {
		if err := c.Disband(ctx); err != nil {
			log.Warnf("disband room %s: %v", c.ID(), err)
		}
		select {
		case <-c.Done():
		case <-ctx.Done():
		}
		r.remove(c.ID())
	}
}

// OnRemove registers fn to run after a room leaves the registry.
// Register hooks before the first join.
func (r *Registry) OnRemove(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	_, ok := r.rooms[id]
	delete(r.rooms, id)
	hooks := r.onRemove
	r.mu.Unlock()

	if !ok {
		return
	}
	log.Infof("room %s released", id)
	for _, fn := range hooks {
		fn(id)
	}
}

func (r *Registry) cancelStaleLocked(ctx context.Context) {
	if r.cfg.StaleAfter <= 0 {
		return
	}
	keep := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		keep = append(keep, id)
	}
	n, err := r.deps.Repository.CancelStale(ctx, time.Now().Add(-r.cfg.StaleAfter), keep)
	if err != nil {
		log.Warnf("cancel stale rooms: %v", err)
		return
	}
	if n > 0 {
		log.Infof("cancelled %d stale waiting rooms", n)
	}
}

func (r *Registry) openRoomLocked(ctx context.Context) *Coordinator {
	id, ok, err := r.deps.Repository.FindOpenRoom(ctx)
	if err != nil {
		log.Warnf("find open room: %v", err)
	}
	if ok {
		if c, live := r.rooms[id]; live && c.Status() == models.StatusWaiting {
			return c
		}
	}

	var oldest *Coordinator
	for _, c := range r.rooms {
		if c.Status() != models.StatusWaiting {
			continue
		}
		if oldest == nil || c.CreatedAt().Before(oldest.CreatedAt()) {
			oldest = c
		}
	}
	return oldest
}

func (r *Registry) createLocked(ctx context.Context) (*Coordinator, error) {
	now := time.Now()
	id, err := r.deps.Repository.Create(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	deps := r.deps
	deps.OnClose = r.remove
	deps.Rand = nil // each room seeds its own source
	c := NewCoordinator(id, now, r.cfg, deps)
	r.rooms[id] = c

	log.Infof("room %s created", id)
	return c, nil
}
