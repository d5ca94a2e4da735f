package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
)

// Rooms looks up live room coordinators.
type Rooms interface {
	Get(id string) (*room.Coordinator, bool)
}

// Ws tracks sockets per room and fans room events out to them. It implements
// room.Broadcaster.
type Ws struct {
	rooms Rooms

	mu      sync.RWMutex
	sockets map[string]*Client            // socketId -> client
	members map[string]map[string]*Client // roomId -> socketId -> client
}

func NewWs(rooms Rooms) *Ws {
	return &Ws{
		rooms:   rooms,
		sockets: make(map[string]*Client),
		members: make(map[string]map[string]*Client),
	}
}

// Register attaches conn to roomId for userId and starts its write pump.
func (s *Ws) Register(conn *websocket.Conn, roomId, userId string) *Client {
	c := newClient(uuid.New().String(), roomId, userId, conn)

	s.mu.Lock()
	s.sockets[c.SocketId] = c
	if s.members[roomId] == nil {
		s.members[roomId] = make(map[string]*Client)
	}
	s.members[roomId][c.SocketId] = c
	s.mu.Unlock()

	go c.writePump()
	log.Infof("socket %s attached to room %s for user %s", c.SocketId, roomId, userId)
	return c
}

// Unregister detaches c and reports whether the user has no other socket in
// that room. c may already have been dropped as a slow socket or by CloseRoom.
func (s *Ws) Unregister(c *Client) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sockets[c.SocketId]; ok {
		s.removeLocked(c)
	}
	for _, other := range s.members[c.RoomId] {
		if other.UserId == c.UserId {
			return false
		}
	}
	return true
}

func (s *Ws) removeLocked(c *Client) {
	delete(s.sockets, c.SocketId)
	if m := s.members[c.RoomId]; m != nil {
		delete(m, c.SocketId)
		if len(m) == 0 {
			delete(s.members, c.RoomId)
		}
	}
	c.close()
}

// RoomSockets returns the number of sockets attached to roomId.
func (s *Ws) RoomSockets(roomId string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[roomId])
}

func (s *Ws) Broadcast(roomId string, msg *comm.WSMessage) {
	s.deliver(roomId, "", msg)
}

func (s *Ws) SendTo(roomId, userId string, msg *comm.WSMessage) {
	s.deliver(roomId, userId, msg)
}

// deliver queues msg on every matching socket. Sockets whose buffer is full
// are dropped.
func (s *Ws) deliver(roomId, userId string, msg *comm.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal %s for room %s: %v", msg.Type, roomId, err)
		return
	}

	var slow []*Client
	s.mu.RLock()
	for _, c := range s.members[roomId] {
		if userId != "" && c.UserId != userId {
			continue
		}
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	s.mu.Lock()
	for _, c := range slow {
		if _, ok := s.sockets[c.SocketId]; ok {
			log.Warnf("socket %s is too slow, dropping it", c.SocketId)
			s.removeLocked(c)
		}
	}
	s.mu.Unlock()
}

// SocketMessage routes an inbound action from socketId to its room.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	s.mu.RLock()
	c, ok := s.sockets[socketId]
	s.mu.RUnlock()
	if !ok {
		return
	}

	coord, ok := s.rooms.Get(c.RoomId)
	if !ok {
		s.SendError(c, "room is no longer active")
		return
	}

	switch message.Type {
	case comm.TypeSelectNumber:
		var payload comm.SelectNumber
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			s.SendError(c, "invalid select_number payload")
			return
		}
		coord.SelectNumber(c.UserId, payload.Number)
	case comm.TypeClaimBingo:
		coord.ClaimBingo(c.UserId)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(c, "unknown message type "+message.Type)
	}
}

// SendError sends an error event to a single socket.
func (s *Ws) SendError(c *Client, text string) {
	msg := comm.MustNewMessage(comm.TypeError, comm.ErrorData{Error: text})
	msg.RoomId = c.RoomId
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sockets[c.SocketId]; ok {
		c.enqueue(data)
	}
}

// CloseRoom detaches every socket of roomId.
func (s *Ws) CloseRoom(roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.members[roomId] {
		s.removeLocked(c)
	}
}
