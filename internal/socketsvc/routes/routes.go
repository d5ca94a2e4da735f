package routes

import (
	"github.com/go-chi/chi"

	"github.com/avvvet/bingo-room/internal/gamesvc/room"
	"github.com/avvvet/bingo-room/internal/socketsvc/handlers"
	"github.com/avvvet/bingo-room/internal/socketsvc/ws"
)

// SetRoutes mounts the player socket endpoint. Authentication happens after
// the upgrade so failures can be reported with a close code.
func SetRoutes(r chi.Router, s *ws.Ws, rooms *room.Registry, users handlers.UserDirectory) {
	h := handlers.NewHandler(s, rooms, users)
	r.Get("/ws/{roomID}", h.HandleWebSocket)
}
