package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/auth"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
	"github.com/avvvet/bingo-room/internal/gamesvc/room"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GameReader lists persisted games.
type GameReader interface {
	List(ctx context.Context, limit int) ([]models.Game, error)
	Get(ctx context.Context, id string) (*models.Game, error)
}

// RoomCache reads live room snapshots written by any instance.
type RoomCache interface {
	LoadRoom(ctx context.Context, id string) (*models.Game, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	rooms     *room.Registry
	games     GameReader
	cache     RoomCache // optional
	port      string
}

func NewHandler(tokenAuth *jwtauth.JWTAuth, rooms *room.Registry, games GameReader, cache RoomCache, port string) *Handler {
	return &Handler{
		tokenAuth: tokenAuth,
		rooms:     rooms,
		games:     games,
		cache:     cache,
		port:      port,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// JoinGameResponse tells a player which room to open a socket to.
type JoinGameResponse struct {
	RoomId string            `json:"room_id"`
	Status models.Status     `json:"status"`
	Card   models.PlayerCard `json:"card"`
	WsPath string            `json:"ws_path"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + h.port,
		Code:    http.StatusOK,
		Data:    map[string]int{"live_rooms": h.rooms.Len()},
	})
}

// JoinGame seats the authenticated user in the oldest waiting room.
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	userId, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	coord, card, err := h.rooms.JoinOpenRoom(r.Context(), userId)
	if err != nil {
		log.Errorf("join game for %s: %v", userId, err)
		h.CreateResponse(w, Response{Message: "could not join a game", Code: http.StatusServiceUnavailable, Error: err.Error()})
		return
	}

	h.CreateResponse(w, Response{
		Message: "joined game",
		Code:    http.StatusOK,
		Data: JoinGameResponse{
			RoomId: coord.ID(),
			Status: coord.Status(),
			Card:   card,
			WsPath: "/v1/ws/" + coord.ID(),
		},
	})
}

func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.CreateResponse(w, Response{Message: "invalid limit", Code: http.StatusBadRequest, Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	games, err := h.games.List(r.Context(), limit)
	if err != nil {
		log.Errorf("list games: %v", err)
		h.CreateResponse(w, Response{Message: "could not list games", Code: http.StatusInternalServerError, Error: err.Error()})
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	h.CreateResponse(w, Response{Message: "games", Code: http.StatusOK, Data: games})
}

// GetGame looks a room up in the live registry, then the snapshot cache, then
// the repository.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if coord, ok := h.rooms.Get(id); ok {
		h.CreateResponse(w, Response{Message: "game", Code: http.StatusOK, Data: coord.Snapshot()})
		return
	}

	if h.cache != nil {
		game, err := h.cache.LoadRoom(r.Context(), id)
		if err != nil {
			log.Warnf("load cached room %s: %v", id, err)
		}
		if game != nil {
			h.CreateResponse(w, Response{Message: "game", Code: http.StatusOK, Data: game})
			return
		}
	}

	game, err := h.games.Get(r.Context(), id)
	if err != nil {
		log.Errorf("get game %s: %v", id, err)
		h.CreateResponse(w, Response{Message: "could not load game", Code: http.StatusInternalServerError, Error: err.Error()})
		return
	}
	if game == nil {
		h.CreateResponse(w, Response{Message: "game not found", Code: http.StatusNotFound, Error: room.ErrRoomNotFound.Error()})
		return
	}
	h.CreateResponse(w, Response{Message: "game", Code: http.StatusOK, Data: game})
}
