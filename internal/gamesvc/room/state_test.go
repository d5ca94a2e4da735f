package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bingo-room/internal/bingo"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

func TestState_AddPlayerIsIdempotent(t *testing.T) {
	s := NewState("r", time.Now())
	card := bingo.GenerateCard(nil)

	pc, created := s.AddPlayer("alice", card, time.Now())
	assert.True(t, created)

	again, created := s.AddPlayer("alice", bingo.GenerateCard(nil), time.Now())
	assert.False(t, created)
	assert.Same(t, pc, again)
	assert.Equal(t, card, again.Card)

	s.AddPlayer("bob", bingo.GenerateCard(nil), time.Now())
	assert.Equal(t, []string{"alice", "bob"}, s.Players())
	assert.Equal(t, 2, s.PlayerCount())
}

func TestState_RecordDrawnNumber(t *testing.T) {
	s := NewState("r", time.Now())
	assert.False(t, s.RecordDrawnNumber(5), "draws are refused before the game starts")

	require.NoError(t, s.TransitionStatus(models.StatusPlaying, ""))
	assert.True(t, s.RecordDrawnNumber(5))
	assert.False(t, s.RecordDrawnNumber(5))
	assert.False(t, s.RecordDrawnNumber(0))
	assert.False(t, s.RecordDrawnNumber(76))
	assert.True(t, s.RecordDrawnNumber(75))

	n, ok := s.CurrentNumber()
	assert.True(t, ok)
	assert.Equal(t, 75, n)
	assert.Equal(t, []int{5, 75}, s.Drawn())
	assert.Len(t, s.Undrawn(), bingo.MaxNumber-2)
	assert.NotContains(t, s.Undrawn(), 5)
}

func TestState_MarkNumber(t *testing.T) {
	s := NewState("r", time.Now())
	card := bingo.GenerateCard(nil)
	s.AddPlayer("alice", card, time.Now())
	require.NoError(t, s.TransitionStatus(models.StatusPlaying, ""))

	n := card[0][0]
	assert.False(t, s.MarkNumber("alice", n), "not drawn yet")

	s.RecordDrawnNumber(n)
	assert.True(t, s.MarkNumber("alice", n))
	assert.False(t, s.MarkNumber("alice", n), "already selected")
	assert.False(t, s.MarkNumber("alice", bingo.Free))
	assert.False(t, s.MarkNumber("bob", n))

	pc, _ := s.Card("alice")
	assert.Equal(t, []int{n}, pc.Selected)
}

func TestState_MarkNumberOffCard(t *testing.T) {
	s := NewState("r", time.Now())
	card := bingo.GenerateCard(nil)
	s.AddPlayer("alice", card, time.Now())
	require.NoError(t, s.TransitionStatus(models.StatusPlaying, ""))

	var off int
	for n := 1; n <= bingo.MaxNumber; n++ {
		if !card.Contains(n) {
			off = n
			break
		}
	}
	s.RecordDrawnNumber(off)
	// marking an off-card number is allowed; it can never complete a pattern
	assert.True(t, s.MarkNumber("alice", off))
}

func TestState_TransitionStatus(t *testing.T) {
	s := NewState("r", time.Now())
	s.AddPlayer("alice", bingo.GenerateCard(nil), time.Now())

	err := s.TransitionStatus(models.StatusFinished, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.TransitionStatus(models.StatusPlaying, ""))

	err = s.TransitionStatus(models.StatusFinished, "bob")
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.Equal(t, models.StatusPlaying, s.Status())

	require.NoError(t, s.TransitionStatus(models.StatusFinished, "alice"))
	assert.Equal(t, "alice", s.Winner())
	pc, _ := s.Card("alice")
	assert.True(t, pc.IsWinner)

	err = s.TransitionStatus(models.StatusPlaying, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestState_Snapshot(t *testing.T) {
	created := time.Now()
	s := NewState("r", created)

	g := s.Snapshot()
	assert.Equal(t, "r", g.ID)
	assert.Equal(t, models.StatusWaiting, g.Status)
	assert.NotNil(t, g.DrawnNumbers)
	assert.Nil(t, g.CurrentNumber)
	assert.Nil(t, g.Winner)

	card := bingo.GenerateCard(nil)
	s.AddPlayer("alice", card, created)
	require.NoError(t, s.TransitionStatus(models.StatusPlaying, ""))
	s.RecordDrawnNumber(card[0][0])
	s.MarkNumber("alice", card[0][0])
	s.Disqualify("alice")

	g = s.Snapshot()
	require.Len(t, g.PlayerCards, 1)
	pc := g.PlayerCards[0]
	assert.Equal(t, "alice", pc.User)
	assert.Equal(t, card[2][2], pc.CardNumbers[2][2])
	assert.Equal(t, []int{card[0][0]}, pc.SelectedNumbers)
	assert.True(t, pc.IsDisqualified)
	assert.Equal(t, card[0][0], *g.CurrentNumber)

	// the snapshot is a copy
	pc.CardNumbers[0][0] = -1
	live, _ := s.Card("alice")
	assert.NotEqual(t, -1, live.Card[0][0])
}
