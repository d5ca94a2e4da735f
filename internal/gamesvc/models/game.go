package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether s may move to next.
// Allowed: waiting -> playing -> finished, waiting -> cancelled.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusPlaying || next == StatusCancelled
	case StatusPlaying:
		return next == StatusFinished
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Game is the serialized shape of one room, used by REST, the cache and the repositories.
type Game struct {
	ID            string          `json:"id" bson:"_id"`
	Status        Status          `json:"status" bson:"status"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	Winner        *string         `json:"winner" bson:"winner,omitempty"`
	DrawnNumbers  []int           `json:"drawn_numbers" bson:"drawn_numbers"`
	CurrentNumber *int            `json:"current_number" bson:"current_number,omitempty"`
	Stake         decimal.Decimal `json:"stake" bson:"-"`
	TotPrize      decimal.Decimal `json:"tot_prize" bson:"-"`
	PlayerCards   []PlayerCard    `json:"player_cards" bson:"player_cards"`
}
