package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/justestif/wellness-tracker/internal/tracker"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// The default origin check rejects cross-site pages, which is what the
// cookie fallback of the bearer middleware needs.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Realtime streams change notifications for the signed-in user as JSON
// messages (GET /api/v1/realtime?tracker=mood&tracker=sleep). Without a
// tracker filter every change of the user is sent.
func (h *Handlers) Realtime(w http.ResponseWriter, r *http.Request) {
	var tables []string
	for _, name := range r.URL.Query()["tracker"] {
		kind, err := tracker.ParseKind(name)
		if err != nil {
			h.writeTrackerError(w, r, err)
			return
		}
		tables = append(tables, kind.Table())
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	user := currentUser(r)
	sub := h.hub.Subscribe(ctx, user, tables...)
	defer sub.Close()
	h.logger.Debug("realtime subscriber connected", "user", user, "tables", tables)

	// Reader: the client sends nothing but control frames, so any read error
	// means the connection is gone.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
