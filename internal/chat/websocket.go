package chat

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/Casting/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 32
)

// WebsocketHandler streams a user's new messages as JSON text frames.
// Clients only read; anything they send is discarded.
type WebsocketHandler struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewWebsocketHandler accepts upgrades from allowedOrigins. An empty list or
// "*" allows every origin.
func NewWebsocketHandler(svc *Service, allowedOrigins []string) *WebsocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebsocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve upgrades the request and blocks until the connection closes.
func (h *WebsocketHandler) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.svc.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	send := make(chan *store.Message, sendBuffer)
	unsubscribe := h.svc.hub.Subscribe(userID, func(m *store.Message) {
		select {
		case send <- m:
		default:
			h.svc.logger.Warn("websocket client too slow, dropping message", "user_id", userID, "message_id", m.ID)
		}
	})
	defer unsubscribe()

	h.svc.metrics.WebsocketConnected()
	defer h.svc.metrics.WebsocketDisconnected()
	h.svc.logger.Info("websocket client connected", "user_id", userID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.svc.logger.Warn("websocket connection closed unexpectedly", "user_id", userID, "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.svc.logger.Info("websocket client disconnected", "user_id", userID)
			return
		case <-r.Context().Done():
			return
		case m := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				h.svc.logger.Warn("websocket write failed", "user_id", userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
