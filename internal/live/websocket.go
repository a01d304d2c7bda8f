package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/satty/internal/domain"
	"github.com/ashureev/satty/internal/identity"
	"github.com/ashureev/satty/internal/session"
)

const (
	keepaliveInterval = 30 * time.Second
	writeTimeout      = 5 * time.Second
)

// Event is the message sent to a tab whenever its device's session changes.
type Event struct {
	Type          string `json:"type"`
	Authenticated bool   `json:"authenticated"`
	Principal     string `json:"principal,omitempty"`
	Short         string `json:"short,omitempty"`
}

// NewEvent builds the session event for s.
func NewEvent(s domain.Session) Event {
	ev := Event{Type: "session", Authenticated: s.Authenticated}
	if s.Authenticated {
		ev.Principal = s.Principal().String()
		ev.Short = s.Principal().Short()
	}
	return ev
}

// Handler upgrades /ws/session requests and streams session events.
type Handler struct {
	store         *session.Store
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a live session handler.
func NewHandler(store *session.Store, hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		store:         store,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	deviceID := identity.DeviceIDFromContext(r.Context())
	if deviceID == "" {
		http.Error(w, "unknown device", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		tabID = uuid.NewString()
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "device_id", deviceID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "device_id", deviceID)
		}
	}()

	h.hub.Register(deviceID, tabID, ws)
	defer h.hub.Unregister(deviceID, tabID, ws)
	slog.Debug("Live stream opened", "device_id", deviceID, "tab_id", tabID, "tabs", h.hub.Count(deviceID))

	updates, cancelSub := h.store.Subscribe(deviceID)
	defer cancelSub()

	// The client never sends; CloseRead handles control frames and ends ctx
	// when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	if err := writeEvent(ctx, ws, NewEvent(h.store.Get(deviceID))); err != nil {
		slog.Debug("Failed to send initial session event", "error", err, "device_id", deviceID)
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case s := <-updates:
			if err := writeEvent(ctx, ws, NewEvent(s)); err != nil {
				slog.Debug("Failed to send session event", "error", err, "device_id", deviceID)
				return
			}
		case <-keepalive.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("Live keepalive failed", "error", err, "device_id", deviceID)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
