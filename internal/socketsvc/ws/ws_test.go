package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
)

type noRooms struct{}

func (noRooms) Get(string) (*room.Coordinator, bool) { return nil, false }

// attach registers a fresh server-side socket and returns the client end.
func attach(t *testing.T, s *Ws, roomId, userId string) (*Client, *websocket.Conn) {
	t.Helper()
	registered := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		registered <- s.Register(conn, roomId, userId)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return <-registered, conn
}

func read(t *testing.T, conn *websocket.Conn) *comm.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg := &comm.WSMessage{}
	require.NoError(t, conn.ReadJSON(msg))
	return msg
}

func TestWs_BroadcastAndSendTo(t *testing.T) {
	s := NewWs(noRooms{})
	_, alice := attach(t, s, "r1", "alice")
	_, bob := attach(t, s, "r1", "bob")
	_, other := attach(t, s, "r2", "carol")

	s.Broadcast("r1", comm.MustNewMessage(comm.TypeNumberDrawn, comm.NumberDrawn{Number: 7}))
	assert.Equal(t, comm.TypeNumberDrawn, read(t, alice).Type)
	assert.Equal(t, comm.TypeNumberDrawn, read(t, bob).Type)

	s.SendTo("r1", "bob", comm.MustNewMessage(comm.TypeGameState, comm.GameState{RoomId: "r1"}))
	assert.Equal(t, comm.TypeGameState, read(t, bob).Type)

	// carol is in another room and alice was not addressed
	s.SendTo("r2", "carol", comm.MustNewMessage(comm.TypeGameCancelled, comm.GameCancelled{}))
	assert.Equal(t, comm.TypeGameCancelled, read(t, other).Type)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err)
}

func TestWs_UnregisterReportsLastSocket(t *testing.T) {
	s := NewWs(noRooms{})
	first, _ := attach(t, s, "r1", "alice")
	second, _ := attach(t, s, "r1", "alice")
	assert.Equal(t, 2, s.RoomSockets("r1"))

	assert.False(t, s.Unregister(first))
	assert.True(t, s.Unregister(second))
	assert.Equal(t, 0, s.RoomSockets("r1"))
}

func TestWs_UnregisterAfterSlowSocketDrop(t *testing.T) {
	s := NewWs(noRooms{})

	// no write pump, so nothing drains the buffer
	c := newClient("slow", "r1", "alice", nil)
	s.mu.Lock()
	s.sockets[c.SocketId] = c
	s.members["r1"] = map[string]*Client{c.SocketId: c}
	s.mu.Unlock()
	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.enqueue([]byte(`{}`)))
	}

	s.Broadcast("r1", comm.MustNewMessage(comm.TypeNumberDrawn, comm.NumberDrawn{Number: 1}))
	assert.Equal(t, 0, s.RoomSockets("r1"))

	// the read loop still learns that alice has no socket left
	assert.True(t, s.Unregister(c))
}

func TestWs_CloseRoomClosesSockets(t *testing.T) {
	s := NewWs(noRooms{})
	_, conn := attach(t, s, "r1", "alice")

	s.Broadcast("r1", comm.MustNewMessage(comm.TypeBingoClaimed, comm.BingoClaimed{Player: "alice", Success: true}))
	s.CloseRoom("r1")

	// queued messages are delivered before the close frame
	assert.Equal(t, comm.TypeBingoClaimed, read(t, conn).Type)
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, s.RoomSockets("r1"))
}

func TestWs_MessageForInactiveRoom(t *testing.T) {
	s := NewWs(noRooms{})
	c, conn := attach(t, s, "gone", "alice")

	s.SocketMessage(c.SocketId, &comm.WSMessage{Type: comm.TypeClaimBingo})
	assert.Equal(t, comm.TypeError, read(t, conn).Type)
}
