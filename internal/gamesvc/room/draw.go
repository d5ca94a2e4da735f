package room

import (
	"context"
	"time"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

// drawLoop is the Running state of the number caller. It draws one number per
// tick and returns (Idle) when cancelled, when the room leaves Playing, or when
// the pool is empty. done is closed on return.
func (c *Coordinator) drawLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("draw loop stopped after panic: %v", r)
		}
	}()

	ticker := time.NewTicker(c.cfg.DrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.drawNext(ctx) {
				return
			}
		}
	}
}

// drawNext performs one draw under the room lock and reports whether the loop
// should keep running.
func (c *Coordinator) drawNext(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.closed || c.state.Status() != models.StatusPlaying {
		return false
	}

	pool := c.state.Undrawn()
	if len(pool) == 0 {
		c.log.Warn("number pool exhausted, draw loop idle")
		return false
	}

	n := pool[c.rng.IntN(len(pool))]
	c.state.RecordDrawnNumber(n)
	c.log.Debugf("drew %d (%d drawn)", n, len(c.state.drawn))

	c.broadcastLocked(comm.TypeNumberDrawn, comm.NumberDrawn{Number: n})
	c.saveLocked()

	if len(pool) == 1 {
		c.log.Warn("number pool exhausted without a winner, draw loop idle")
		return false
	}
	return true
}
