package models

import "time"

// PlayerCard is the serialized shape of one player's card in a room.
type PlayerCard struct {
	User            string    `json:"user" bson:"user"`
	CardNumbers     [][]int   `json:"card_numbers" bson:"card_numbers"`
	SelectedNumbers []int     `json:"selected_numbers" bson:"selected_numbers"`
	IsWinner        bool      `json:"is_winner" bson:"is_winner"`
	IsDisqualified  bool      `json:"is_disqualified" bson:"is_disqualified"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}
