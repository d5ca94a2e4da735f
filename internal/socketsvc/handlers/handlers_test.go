package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/bingo-room/internal/auth"
	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
	"github.com/avvvet/bingo-room/internal/gamesvc/store"
	"github.com/avvvet/bingo-room/internal/socketsvc/ws"
)

type testServer struct {
	srv   *httptest.Server
	users *auth.JWTDirectory
	rooms *room.Registry
	hub   *ws.Ws
}

func newTestServer(t *testing.T, cfg room.Config) *testServer {
	t.Helper()
	users := auth.NewJWTDirectory("test-secret")

	var hub *ws.Ws
	fanout := broadcasterFunc{
		broadcast: func(roomId string, msg *comm.WSMessage) { hub.Broadcast(roomId, msg) },
		sendTo:    func(roomId, userId string, msg *comm.WSMessage) { hub.SendTo(roomId, userId, msg) },
	}
	rooms := room.NewRegistry(cfg, room.Deps{Broadcaster: fanout, Repository: store.NewMemoryStore()})
	hub = ws.NewWs(rooms)

	r := chi.NewRouter()
	r.Get("/v1/ws/{roomID}", NewHandler(hub, rooms, users).HandleWebSocket)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		rooms.Shutdown(ctx)
		srv.Close()
	})
	return &testServer{srv: srv, users: users, rooms: rooms, hub: hub}
}

type broadcasterFunc struct {
	broadcast func(roomId string, msg *comm.WSMessage)
	sendTo    func(roomId, userId string, msg *comm.WSMessage)
}

func (b broadcasterFunc) Broadcast(roomId string, msg *comm.WSMessage) { b.broadcast(roomId, msg) }

func (b broadcasterFunc) SendTo(roomId, userId string, msg *comm.WSMessage) {
	b.sendTo(roomId, userId, msg)
}

func (ts *testServer) dial(t *testing.T, roomId, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/v1/ws/" + roomId + "?jwt=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (ts *testServer) token(t *testing.T, userId string) string {
	t.Helper()
	tok, err := ts.users.Issue(userId, time.Hour)
	require.NoError(t, err)
	return tok
}

func readMessage(t *testing.T, conn *websocket.Conn) *comm.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg := &comm.WSMessage{}
	require.NoError(t, conn.ReadJSON(msg))
	return msg
}

// readType reads until a message of type t arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) *comm.WSMessage {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	return ce.Code
}

func waitingConfig() room.Config {
	return room.Config{
		MinPlayers:   2,
		WaitTimeout:  time.Hour,
		DrawInterval: time.Hour,
		Stake:        decimal.NewFromInt(10),
	}
}

func TestHandleWebSocket_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t, waitingConfig())
	coord, _, err := ts.rooms.JoinOpenRoom(context.Background(), "alice")
	require.NoError(t, err)

	conn := ts.dial(t, coord.ID(), "garbage")
	assert.Equal(t, CloseUnauthorized, closeCode(t, conn))
}

func TestHandleWebSocket_UnknownRoom(t *testing.T) {
	ts := newTestServer(t, waitingConfig())

	conn := ts.dial(t, "no-such-room", ts.token(t, "alice"))
	assert.Equal(t, CloseRoomNotFound, closeCode(t, conn))
}

func TestHandleWebSocket_OutsiderCannotEnterRunningGame(t *testing.T) {
	cfg := waitingConfig()
	cfg.WaitTimeout = 0
	ts := newTestServer(t, cfg)
	ctx := context.Background()

	coord, _, err := ts.rooms.JoinOpenRoom(ctx, "alice")
	require.NoError(t, err)
	_, _, err = ts.rooms.JoinOpenRoom(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, models.StatusPlaying, coord.Status())

	conn := ts.dial(t, coord.ID(), ts.token(t, "mallory"))
	assert.Equal(t, CloseNotAPlayer, closeCode(t, conn))
}

func TestHandleWebSocket_SessionFlow(t *testing.T) {
	ts := newTestServer(t, waitingConfig())
	coord, card, err := ts.rooms.JoinOpenRoom(context.Background(), "alice")
	require.NoError(t, err)

	alice := ts.dial(t, coord.ID(), ts.token(t, "alice"))

	msg := readType(t, alice, comm.TypeGameState)
	var gs comm.GameState
	require.NoError(t, json.Unmarshal(msg.Data, &gs))
	assert.Equal(t, coord.ID(), gs.RoomId)
	assert.Equal(t, "waiting", gs.Status)
	require.NotNil(t, gs.Card)
	assert.Equal(t, card.CardNumbers[0][0], gs.Card[0][0])

	// bob joins over the socket and alice hears about it
	bob := ts.dial(t, coord.ID(), ts.token(t, "bob"))
	readType(t, bob, comm.TypeGameState)

	msg = readType(t, alice, comm.TypePlayerJoined)
	var pj comm.PlayerJoined
	require.NoError(t, json.Unmarshal(msg.Data, &pj))
	assert.Equal(t, "bob", pj.Player)

	// selecting before the game starts fails and is broadcast
	require.NoError(t, alice.WriteJSON(comm.MustNewMessage(comm.TypeSelectNumber, comm.SelectNumber{Number: 5})))
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg = readType(t, conn, comm.TypeNumberSelected)
		var ns comm.NumberSelected
		require.NoError(t, json.Unmarshal(msg.Data, &ns))
		assert.False(t, ns.Success)
		assert.Equal(t, "alice", ns.Player)
	}

	// malformed input gets an error event on that socket only
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	readType(t, alice, comm.TypeError)

	require.NoError(t, alice.WriteJSON(&comm.WSMessage{Type: "dance"}))
	msg = readType(t, alice, comm.TypeError)
	var ed comm.ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &ed))
	assert.Contains(t, ed.Error, "dance")
}

func TestHandleWebSocket_DisconnectKeepsCard(t *testing.T) {
	ts := newTestServer(t, waitingConfig())
	coord, card, err := ts.rooms.JoinOpenRoom(context.Background(), "alice")
	require.NoError(t, err)

	conn := ts.dial(t, coord.ID(), ts.token(t, "alice"))
	readType(t, conn, comm.TypeGameState)
	assert.Equal(t, 1, ts.hub.RoomSockets(coord.ID()))

	conn.Close()
	assert.Eventually(t, func() bool {
		return ts.hub.RoomSockets(coord.ID()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	again, ok := coord.Card("alice")
	require.True(t, ok)
	assert.Equal(t, card.CardNumbers, again.CardNumbers)

	// reconnecting restores the same card
	conn = ts.dial(t, coord.ID(), ts.token(t, "alice"))
	msg := readType(t, conn, comm.TypeGameState)
	var gs comm.GameState
	require.NoError(t, json.Unmarshal(msg.Data, &gs))
	assert.Equal(t, card.CardNumbers[4][4], gs.Card[4][4])
}
