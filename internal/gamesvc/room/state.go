package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-room/internal/bingo"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrCardNotFound      = errors.New("player card not found")
	ErrRoomClosed        = errors.New("room is closed")
	ErrNotJoinable       = errors.New("room is not accepting players")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PlayerCard is one player's card and marks inside a room.
type PlayerCard struct {
	UserID         string
	Card           bingo.Card
	Selected       []int
	IsWinner       bool
	IsDisqualified bool
	CreatedAt      time.Time

	selected map[int]bool
}

func (pc *PlayerCard) selectedSet() map[int]bool {
	return pc.selected
}

// State is the authoritative record of one game. It is not safe for
// concurrent use; the owning Coordinator serializes every call.
type State struct {
	ID        string
	CreatedAt time.Time

	status   models.Status
	drawn    []int
	drawnSet map[int]bool
	winner   string
	cards    map[string]*PlayerCard
	order    []string
}

func NewState(id string, createdAt time.Time) *State {
	return &State{
		ID:        id,
		CreatedAt: createdAt,
		status:    models.StatusWaiting,
		drawnSet:  make(map[int]bool),
		cards:     make(map[string]*PlayerCard),
	}
}

func (s *State) Status() models.Status { return s.status }

func (s *State) Winner() string { return s.winner }

func (s *State) PlayerCount() int { return len(s.order) }

// Players returns user ids in join order.
func (s *State) Players() []string {
	return append([]string(nil), s.order...)
}

// Drawn returns a copy of the drawn numbers in draw order.
func (s *State) Drawn() []int {
	return append([]int(nil), s.drawn...)
}

// CurrentNumber returns the last drawn number.
func (s *State) CurrentNumber() (int, bool) {
	if len(s.drawn) == 0 {
		return 0, false
	}
	return s.drawn[len(s.drawn)-1], true
}

func (s *State) IsDrawn(n int) bool { return s.drawnSet[n] }

func (s *State) Card(userID string) (*PlayerCard, bool) {
	pc, ok := s.cards[userID]
	return pc, ok
}

// AddPlayer gives userID a card. An existing card is returned unchanged with created=false.
func (s *State) AddPlayer(userID string, card bingo.Card, now time.Time) (pc *PlayerCard, created bool) {
	if pc, ok := s.cards[userID]; ok {
		return pc, false
	}
	pc = &PlayerCard{
		UserID:    userID,
		Card:      card,
		CreatedAt: now,
		selected:  make(map[int]bool),
	}
	s.cards[userID] = pc
	s.order = append(s.order, userID)
	return pc, true
}

// MarkNumber adds n to the player's selection. It returns false when the player
// has no card, n has not been drawn yet, or n is already selected.
func (s *State) MarkNumber(userID string, n int) bool {
	pc, ok := s.cards[userID]
	if !ok || n == bingo.Free || !s.drawnSet[n] || pc.selected[n] {
		return false
	}
	pc.selected[n] = true
	pc.Selected = append(pc.Selected, n)
	return true
}

// RecordDrawnNumber appends n to the drawn sequence. Numbers outside [1,75],
// repeats, and draws outside Playing are refused.
func (s *State) RecordDrawnNumber(n int) bool {
	if s.status != models.StatusPlaying || n < 1 || n > bingo.MaxNumber || s.drawnSet[n] {
		return false
	}
	s.drawnSet[n] = true
	s.drawn = append(s.drawn, n)
	return true
}

// Undrawn returns the numbers in [1,75] not drawn yet, ascending.
func (s *State) Undrawn() []int {
	pool := make([]int, 0, bingo.MaxNumber-len(s.drawn))
	for n := 1; n <= bingo.MaxNumber; n++ {
		if !s.drawnSet[n] {
			pool = append(pool, n)
		}
	}
	return pool
}

// TransitionStatus moves the room to next. Finished needs the winner's user id,
// which must own a card; that card is flagged as the winner.
func (s *State) TransitionStatus(next models.Status, winnerID string) error {
	if !s.status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, next)
	}
	if next == models.StatusFinished {
		pc, ok := s.cards[winnerID]
		if !ok {
			return fmt.Errorf("%w: winner %q", ErrCardNotFound, winnerID)
		}
		pc.IsWinner = true
		s.winner = winnerID
	}
	s.status = next
	return nil
}

// Disqualify flags the player's card. It returns false if there is no card.
func (s *State) Disqualify(userID string) bool {
	pc, ok := s.cards[userID]
	if !ok {
		return false
	}
	pc.IsDisqualified = true
	return true
}

// Snapshot copies the state into its serialized shape.
func (s *State) Snapshot() models.Game {
	g := models.Game{
		ID:           s.ID,
		Status:       s.status,
		CreatedAt:    s.CreatedAt,
		DrawnNumbers: s.Drawn(),
		PlayerCards:  make([]models.PlayerCard, 0, len(s.order)),
	}
	if n, ok := s.CurrentNumber(); ok {
		g.CurrentNumber = &n
	}
	if s.winner != "" {
		w := s.winner
		g.Winner = &w
	}
	for _, id := range s.order {
		pc := s.cards[id]
		rows := make([][]int, bingo.Size)
		for r := range rows {
			rows[r] = append([]int(nil), pc.Card[r][:]...)
		}
		g.PlayerCards = append(g.PlayerCards, models.PlayerCard{
			User:            pc.UserID,
			CardNumbers:     rows,
			SelectedNumbers: append([]int{}, pc.Selected...),
			IsWinner:        pc.IsWinner,
			IsDisqualified:  pc.IsDisqualified,
			CreatedAt:       pc.CreatedAt,
		})
	}
	if g.DrawnNumbers == nil {
		g.DrawnNumbers = []int{}
	}
	return g
}
