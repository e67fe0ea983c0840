package ws

import (
	"log/slog"
	"net/http"

	sl "tripchat/internal/lib/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The real-time channel accepts any origin; only the REST API is
	// origin-restricted.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket connections and registers them
// with the hub, which starts the read/write pumps.
func Handler(log *slog.Logger, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", sl.Err(err))
			return
		}

		client := NewClient(conn, hub, log, r.RemoteAddr)
		hub.Register(client)
	}
}
