package room

import "github.com/avvvet/bingo-room/internal/comm"

// Fanout delivers every message to each of its broadcasters in order.
type Fanout []Broadcaster

func (f Fanout) Broadcast(roomID string, msg *comm.WSMessage) {
	for _, b := range f {
		b.Broadcast(roomID, msg)
	}
}

func (f Fanout) SendTo(roomID, userID string, msg *comm.WSMessage) {
	for _, b := range f {
		b.SendTo(roomID, userID, msg)
	}
}
