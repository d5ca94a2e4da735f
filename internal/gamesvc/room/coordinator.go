package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/bingo"
	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

// Broadcaster pushes messages to the members of a room.
type Broadcaster interface {
	Broadcast(roomID string, msg *comm.WSMessage)
	SendTo(roomID, userID string, msg *comm.WSMessage)
}

// Repository persists room lifecycle milestones.
type Repository interface {
	FindOpenRoom(ctx context.Context) (string, bool, error)
	Create(ctx context.Context, createdAt time.Time) (string, error)
	MarkStarted(ctx context.Context, id string) error
	PersistFinal(ctx context.Context, game models.Game) error
	CancelStale(ctx context.Context, olderThan time.Time, keep []string) (int64, error)
}

// SnapshotCache keeps the latest snapshot of live rooms.
type SnapshotCache interface {
	SaveRoom(ctx context.Context, game models.Game) error
}

type Config struct {
	MinPlayers   int
	WaitTimeout  time.Duration // 0 starts as soon as MinPlayers have joined
	DrawInterval time.Duration
	StaleAfter   time.Duration
	Stake        decimal.Decimal
	IOTimeout    time.Duration
}

type Deps struct {
	Broadcaster Broadcaster
	Repository  Repository
	Cache       SnapshotCache   // optional
	Rand        *rand.Rand      // optional
	OnClose     func(id string) // optional, runs after the final broadcasts
}

// Coordinator owns one room. Every read-then-write of the room state happens
// under mu, including the draw loop ticks.
type Coordinator struct {
	id   string
	cfg  Config
	deps Deps
	log  *log.Entry

	mu         sync.Mutex
	state      *State
	rng        *rand.Rand
	online     map[string]bool
	closed     bool
	waitTimer  *time.Timer
	drawCancel context.CancelFunc
	drawDone   chan struct{}

	out *outbox
}

func NewCoordinator(id string, createdAt time.Time, cfg Config, deps Deps) *Coordinator {
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	c := &Coordinator{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		log:    log.WithField("room", id),
		state:  NewState(id, createdAt),
		rng:    rng,
		online: make(map[string]bool),
		out:    newOutbox(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.WaitTimeout > 0 {
		c.waitTimer = time.AfterFunc(time.Until(createdAt.Add(cfg.WaitTimeout)), c.onWaitTimeout)
	}
	c.saveLocked()
	return c
}

func (c *Coordinator) ID() string { return c.id }

func (c *Coordinator) CreatedAt() time.Time { return c.state.CreatedAt }

func (c *Coordinator) Status() models.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status()
}

// Done is closed once the room is closed and its last events were delivered.
func (c *Coordinator) Done() <-chan struct{} { return c.out.done }

// DrawLoopRunning reports whether the draw loop is in its Running state.
func (c *Coordinator) DrawLoopRunning() bool {
	c.mu.Lock()
	done := c.drawDone
	c.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Snapshot returns the serialized room.
func (c *Coordinator) Snapshot() models.Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Card returns userID's card.
func (c *Coordinator) Card(userID string) (models.PlayerCard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.state.Card(userID)
	if !ok {
		return models.PlayerCard{}, false
	}
	return cardView(pc), true
}

// Join gives userID a card, or returns the one they already hold.
// New players are only accepted while the room is waiting.
func (c *Coordinator) Join(userID string) (models.PlayerCard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pc, ok := c.state.Card(userID); ok {
		return cardView(pc), false, nil
	}
	if c.closed {
		return models.PlayerCard{}, false, ErrRoomClosed
	}
	if c.state.Status() != models.StatusWaiting {
		return models.PlayerCard{}, false, ErrNotJoinable
	}

	pc, _ := c.state.AddPlayer(userID, bingo.GenerateCard(c.rng), time.Now())
	c.log.Infof("player %s joined (%d/%d)", userID, c.state.PlayerCount(), c.cfg.MinPlayers)

	c.broadcastLocked(comm.TypePlayerJoined, comm.PlayerJoined{Player: userID})
	c.saveLocked()

	if c.cfg.WaitTimeout <= 0 && c.state.PlayerCount() >= c.cfg.MinPlayers {
		c.startLocked()
	}
	return cardView(pc), true, nil
}

// Connect registers userID as online and sends them the current game state.
// The socket must already be attached to the broadcaster.
func (c *Coordinator) Connect(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrRoomClosed
	}
	pc, ok := c.state.Card(userID)
	if !ok {
		return ErrCardNotFound
	}
	c.online[userID] = true

	msg := c.messageLocked(comm.TypeGameState, c.gameStateLocked(pc))
	bc := c.deps.Broadcaster
	c.out.push(func() { bc.SendTo(c.id, userID, msg) })
	return nil
}

// Disconnect marks userID offline. Their card stays so they can reconnect.
func (c *Coordinator) Disconnect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online[userID] {
		delete(c.online, userID)
		c.log.Infof("player %s disconnected", userID)
	}
}

// SelectNumber marks n on userID's card and broadcasts the outcome.
func (c *Coordinator) SelectNumber(userID string, n int) bool {
	c.mu.Lock()
	success, late := c.selectLocked(userID, n)
	c.mu.Unlock()
	if late != nil {
		late()
	}
	return success
}

func (c *Coordinator) selectLocked(userID string, n int) (bool, func()) {
	pc, ok := c.state.Card(userID)
	if !ok {
		c.log.Debugf("select_number from %s ignored: %v", userID, ErrCardNotFound)
		return false, nil
	}

	success := !c.closed &&
		c.state.Status() == models.StatusPlaying &&
		!pc.IsDisqualified &&
		c.state.MarkNumber(userID, n)

	late := c.replyLocked(comm.TypeNumberSelected, comm.NumberSelected{
		Player:  userID,
		Number:  n,
		Success: success,
	})
	if success {
		c.saveLocked()
	}
	return success, late
}

// ClaimBingo checks userID's server-side marks. A valid claim finishes the room
// and halts the draw loop before the lock is released; an invalid one
// disqualifies the player and the game goes on.
func (c *Coordinator) ClaimBingo(userID string) bool {
	c.mu.Lock()
	won, late := c.claimLocked(userID)
	c.mu.Unlock()
	if late != nil {
		late()
	}
	return won
}

func (c *Coordinator) claimLocked(userID string) (bool, func()) {
	pc, ok := c.state.Card(userID)
	if !ok {
		c.log.Debugf("claim_bingo from %s ignored: %v", userID, ErrCardNotFound)
		return false, nil
	}

	if c.closed || c.state.Status() != models.StatusPlaying || pc.IsDisqualified {
		c.log.Infof("late or repeated claim from %s rejected (status %s)", userID, c.state.Status())
		return false, c.replyLocked(comm.TypeBingoClaimed, comm.BingoClaimed{Player: userID, Success: false})
	}

	pattern, won := bingo.Evaluate(pc.Card, pc.selectedSet())
	if !won {
		c.state.Disqualify(userID)
		c.log.Infof("invalid claim from %s, player disqualified", userID)
		c.broadcastLocked(comm.TypeBingoClaimed, comm.BingoClaimed{Player: userID, Success: false})
		c.saveLocked()
		return false, nil
	}

	if err := c.state.TransitionStatus(models.StatusFinished, userID); err != nil {
		c.log.Errorf("finish room: %v", err)
		return false, nil
	}
	c.stopDrawLocked()
	c.log.Infof("player %s won with %s after %d draws", userID, pattern, len(c.state.drawn))

	c.broadcastLocked(comm.TypeBingoClaimed, comm.BingoClaimed{
		Player:  userID,
		Success: true,
		Pattern: string(pattern),
	})
	c.closeLocked()
	return true, nil
}

// Disband stops the draw loop and releases the room. A waiting room is cancelled.
// It waits for the draw loop to exit or ctx to end.
func (c *Coordinator) Disband(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.state.Status() == models.StatusWaiting {
		if err := c.state.TransitionStatus(models.StatusCancelled, ""); err != nil {
			c.log.Errorf("cancel room: %v", err)
		}
		c.broadcastLocked(comm.TypeGameCancelled, comm.GameCancelled{Message: "room disbanded"})
	}
	c.stopDrawLocked()
	done := c.drawDone
	c.closeLocked()
	c.mu.Unlock()

	c.log.Info("room disbanded")
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) onWaitTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state.Status() != models.StatusWaiting {
		return
	}
	if c.state.PlayerCount() >= c.cfg.MinPlayers {
		c.startLocked()
		return
	}

	if err := c.state.TransitionStatus(models.StatusCancelled, ""); err != nil {
		c.log.Errorf("cancel room: %v", err)
		return
	}
	c.log.Infof("not enough players after %s (%d/%d), room cancelled",
		c.cfg.WaitTimeout, c.state.PlayerCount(), c.cfg.MinPlayers)
	c.broadcastLocked(comm.TypeGameCancelled, comm.GameCancelled{
		Message: fmt.Sprintf("not enough players joined within %s", c.cfg.WaitTimeout),
	})
	c.closeLocked()
}

func (c *Coordinator) startLocked() {
	if err := c.state.TransitionStatus(models.StatusPlaying, ""); err != nil {
		c.log.Errorf("start room: %v", err)
		return
	}
	if c.waitTimer != nil {
		c.waitTimer.Stop()
	}

	n := c.state.PlayerCount()
	c.log.Infof("game starting with %d players", n)
	c.broadcastLocked(comm.TypeGameStarting, comm.GameStarting{
		Message: fmt.Sprintf("game starting with %d players", n),
	})

	repo, id, timeout := c.deps.Repository, c.id, c.cfg.IOTimeout
	c.out.push(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := repo.MarkStarted(ctx, id); err != nil {
			c.log.Errorf("mark room started: %v", err)
		}
	})
	c.saveLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.drawCancel = cancel
	c.drawDone = done
	go c.drawLoop(ctx, done)
}

func (c *Coordinator) stopDrawLocked() {
	if c.drawCancel != nil {
		c.drawCancel()
	}
}

// closeLocked marks the room closed, persists its final snapshot and closes the
// outbox with OnClose as its last job. Done fires once OnClose has run.
func (c *Coordinator) closeLocked() {
	c.closed = true
	if c.waitTimer != nil {
		c.waitTimer.Stop()
	}
	c.stopDrawLocked()

	final := c.snapshotLocked()
	repo, timeout := c.deps.Repository, c.cfg.IOTimeout
	c.out.push(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := repo.PersistFinal(ctx, final); err != nil {
			c.log.Errorf("persist final room: %v", err)
		}
	})
	c.saveLocked()

	var final func()
	if onClose := c.deps.OnClose; onClose != nil {
		id := c.id
		final = func() { onClose(id) }
	}
	c.out.close(final)
}

func (c *Coordinator) messageLocked(t string, payload interface{}) *comm.WSMessage {
	msg := comm.MustNewMessage(t, payload)
	msg.RoomId = c.id
	return msg
}

func (c *Coordinator) broadcastLocked(t string, payload interface{}) {
	msg := c.messageLocked(t, payload)
	bc := c.deps.Broadcaster
	c.out.push(func() { bc.Broadcast(c.id, msg) })
}

// replyLocked broadcasts the outcome of a player action. Once the outbox has
// shut down it returns a func that delivers the message after Done; the caller
// runs it after releasing mu.
func (c *Coordinator) replyLocked(t string, payload interface{}) func() {
	msg := c.messageLocked(t, payload)
	bc, id, done := c.deps.Broadcaster, c.id, c.out.done
	send := func() { bc.Broadcast(id, msg) }
	if c.out.push(send) {
		return nil
	}
	return func() {
		<-done
		send()
	}
}

func (c *Coordinator) saveLocked() {
	cache := c.deps.Cache
	if cache == nil {
		return
	}
	snap := c.snapshotLocked()
	timeout := c.cfg.IOTimeout
	c.out.push(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := cache.SaveRoom(ctx, snap); err != nil {
			c.log.Warnf("cache room snapshot: %v", err)
		}
	})
}

func (c *Coordinator) snapshotLocked() models.Game {
	g := c.state.Snapshot()
	g.Stake = c.cfg.Stake
	g.TotPrize = c.cfg.Stake.Mul(decimal.NewFromInt(int64(c.state.PlayerCount())))
	return g
}

func (c *Coordinator) gameStateLocked(pc *PlayerCard) comm.GameState {
	gs := comm.GameState{
		RoomId:          c.id,
		Status:          string(c.state.Status()),
		DrawnNumbers:    c.state.Drawn(),
		Players:         make([]comm.PlayerStatus, 0, c.state.PlayerCount()),
		SelectedNumbers: append([]int(nil), pc.Selected...),
	}
	if gs.DrawnNumbers == nil {
		gs.DrawnNumbers = []int{}
	}
	if n, ok := c.state.CurrentNumber(); ok {
		gs.CurrentNumber = &n
	}
	if w := c.state.Winner(); w != "" {
		gs.Winner = &w
	}
	card := pc.Card
	gs.Card = &card
	for _, id := range c.state.Players() {
		p, _ := c.state.Card(id)
		gs.Players = append(gs.Players, comm.PlayerStatus{
			Id:             id,
			IsDisqualified: p.IsDisqualified,
			Online:         c.online[id],
		})
	}
	return gs
}

func cardView(pc *PlayerCard) models.PlayerCard {
	rows := make([][]int, bingo.Size)
	for r := range rows {
		rows[r] = append([]int(nil), pc.Card[r][:]...)
	}
	return models.PlayerCard{
		User:            pc.UserID,
		CardNumbers:     rows,
		SelectedNumbers: append([]int{}, pc.Selected...),
		IsWinner:        pc.IsWinner,
		IsDisqualified:  pc.IsDisqualified,
		CreatedAt:       pc.CreatedAt,
	}
}
