package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/comm"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
	"github.com/avvvet/bingo-room/internal/socketsvc/ws"
)

// application close codes
const (
	CloseUnauthorized = 4001
	CloseNotAPlayer   = 4003
	CloseRoomNotFound = 4004
)

// UserDirectory resolves an auth token to a user id.
type UserDirectory interface {
	Resolve(token string) (string, error)
}

type Handler struct {
	upgrader websocket.Upgrader
	ws       *ws.Ws
	rooms    *room.Registry
	users    UserDirectory
}

func NewHandler(s *ws.Ws, rooms *room.Registry, users UserDirectory) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws:    s,
		rooms: rooms,
		users: users,
	}
	return h
}

// HandleWebSocket attaches a player socket to room {roomID}. The token comes
// from the jwt query parameter or the Authorization header.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	token := r.URL.Query().Get("jwt")
	if token == "" {
		token = jwtauth.TokenFromHeader(r)
	}
	userId, err := h.users.Resolve(token)
	if err != nil {
		log.Infof("websocket auth failed from %s: %v", r.RemoteAddr, err)
		closeWith(conn, CloseUnauthorized, "unauthorized")
		return
	}

	roomId := chi.URLParam(r, "roomID")
	coord, ok := h.rooms.Get(roomId)
	if !ok {
		closeWith(conn, CloseRoomNotFound, "room not found")
		return
	}

	if _, _, err := coord.Join(userId); err != nil {
		switch {
		case errors.Is(err, room.ErrNotJoinable):
			closeWith(conn, CloseNotAPlayer, "game already started")
		default:
			closeWith(conn, CloseRoomNotFound, "room closed")
		}
		return
	}

	client := h.ws.Register(conn, roomId, userId)
	if err := coord.Connect(userId); err != nil {
		log.Warnf("connect %s to room %s: %v", userId, roomId, err)
		h.ws.Unregister(client)
		return
	}

	go h.handleConnection(conn, client, coord)
}

func (h *Handler) handleConnection(conn *websocket.Conn, client *ws.Client, coord *room.Coordinator) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", client.SocketId)
		if h.ws.Unregister(client) {
			coord.Disconnect(client.UserId)
		}
		conn.Close()
	}()

	conn.SetReadLimit(ws.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", client.SocketId, err)
			} else {
				log.Infof("WebSocket connection closed for socket: %s", client.SocketId)
			}
			return
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			log.Debugf("Failed to unmarshal message from socket %s: %v", client.SocketId, err)
			h.ws.SendError(client, "invalid message format")
			continue
		}

		log.Debugf("Received message from socket %s: type=%s", client.SocketId, message.Type)
		h.ws.SocketMessage(client.SocketId, message)
	}
}

const pongWait = 60 * time.Second

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debugf("write close frame: %v", err)
	}
	conn.Close()
}
