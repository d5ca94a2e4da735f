package comm

import (
	"encoding/json"

	"github.com/avvvet/bingo-room/internal/bingo"
)

// inbound message types
const (
	TypeSelectNumber = "select_number"
	TypeClaimBingo   = "claim_bingo"
)

// outbound message types
const (
	TypeGameState      = "game_state"
	TypePlayerJoined   = "player_joined"
	TypeGameStarting   = "game_starting"
	TypeNumberDrawn    = "number_drawn"
	TypeNumberSelected = "number_selected"
	TypeBingoClaimed   = "bingo_claimed"
	TypeGameCancelled  = "game_cancelled"
	TypeError          = "error"
)

// control message types on the NATS control subject
const (
	TypeDisbandRoom = "disband-room"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "select_number", "number_drawn"
	Data     json.RawMessage `json:"data,omitempty"`
	SocketId string          `json:"socketid,omitempty"`
	RoomId   string          `json:"roomid,omitempty"`
}

// NewMessage marshals payload into a WSMessage of type t.
func NewMessage(t string, payload interface{}) (*WSMessage, error) {
	msg := &WSMessage{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Data = data
	return msg, nil
}

// MustNewMessage is NewMessage for payloads that always marshal.
func MustNewMessage(t string, payload interface{}) *WSMessage {
	msg, err := NewMessage(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

type SelectNumber struct {
	Number int `json:"number"`
}

type PlayerStatus struct {
	Id             string `json:"id"`
	IsDisqualified bool   `json:"isDisqualified"`
	Online         bool   `json:"online"`
}

// GameState is sent to a single player when their socket attaches to a room.
type GameState struct {
	RoomId          string         `json:"roomId"`
	Status          string         `json:"status"`
	CurrentNumber   *int           `json:"currentNumber"`
	DrawnNumbers    []int          `json:"drawnNumbers"`
	Winner          *string        `json:"winner"`
	Players         []PlayerStatus `json:"players"`
	Card            *bingo.Card    `json:"card,omitempty"`
	SelectedNumbers []int          `json:"selectedNumbers,omitempty"`
}

type PlayerJoined struct {
	Player string `json:"player"`
}

type GameStarting struct {
	Message string `json:"message"`
}

type NumberDrawn struct {
	Number int `json:"number"`
}

type NumberSelected struct {
	Player  string `json:"player"`
	Number  int    `json:"number"`
	Success bool   `json:"success"`
}

type BingoClaimed struct {
	Player  string `json:"player"`
	Success bool   `json:"success"`
	Pattern string `json:"pattern,omitempty"`
}

type GameCancelled struct {
	Message string `json:"message"`
}

type ErrorData struct {
	Error string `json:"error"`
}

type DisbandRoom struct {
	RoomId string `json:"room_id"`
}
