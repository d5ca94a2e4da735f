package room

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/store"
)

type sent struct {
	roomID string
	userID string // empty for broadcasts
	msg    *comm.WSMessage
}

// recorder is a Broadcaster that keeps every message in delivery order.
type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Broadcast(roomID string, msg *comm.WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{roomID: roomID, msg: msg})
}

func (r *recorder) SendTo(roomID, userID string, msg *comm.WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{roomID: roomID, userID: userID, msg: msg})
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.msgs...)
}

func (r *recorder) types() []string {
	var out []string
	for _, s := range r.all() {
		out = append(out, s.msg.Type)
	}
	return out
}

func (r *recorder) ofType(t string) []sent {
	var out []sent
	for _, s := range r.all() {
		if s.msg.Type == t {
			out = append(out, s)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		MinPlayers:   2,
		WaitTimeout:  time.Hour,
		DrawInterval: time.Hour,
		Stake:        decimal.NewFromInt(10),
		IOTimeout:    time.Second,
	}
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *recorder, *store.MemoryStore) {
	t.Helper()
	rec := &recorder{}
	repo := store.NewMemoryStore()
	c := NewCoordinator("room-1", time.Now(), cfg, Deps{
		Broadcaster: rec,
		Repository:  repo,
		Rand:        rand.New(rand.NewPCG(1, 2)),
	})
	t.Cleanup(func() {
		c.mu.Lock()
		if !c.closed {
			c.closeLocked()
		}
		c.mu.Unlock()
	})
	return c, rec, repo
}

// draw records numbers as if the draw loop had called them.
func draw(t *testing.T, c *Coordinator, nums ...int) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range nums {
		if !c.state.RecordDrawnNumber(n) {
			t.Fatalf("could not draw %d", n)
		}
	}
}

// firstRow returns the five numbers of the top row of userID's card.
func firstRow(t *testing.T, c *Coordinator, userID string) []int {
	t.Helper()
	pc, ok := c.Card(userID)
	if !ok {
		t.Fatalf("no card for %s", userID)
	}
	return pc.CardNumbers[0]
}
