package handlers

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is handled by the CORS layer; the socket itself is
	// open so the mobile clients can connect directly.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes; the hub dispatcher and the upgrade handshake
// must never interleave frames on the same socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Subscribe upgrades the request and registers the socket for the session's
// progress events. Client frames are read only to detect liveness; their
// content is ignored.
func (a *App) Subscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	conn := &wsConn{conn: sock}
	a.Hub.Subscribe(sessionID, conn)
	a.Log.Info().Str("session_id", sessionID).Msg("websocket connected")

	defer func() {
		a.Hub.Unsubscribe(sessionID, conn)
		sock.Close()
		a.Log.Info().Str("session_id", sessionID).Msg("websocket disconnected")
	}()

	for {
		if _, _, err := sock.ReadMessage(); err != nil {
			return
		}
	}
}
