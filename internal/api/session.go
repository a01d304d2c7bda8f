package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/satty/internal/domain"
	"github.com/ashureev/satty/internal/session"
)

// Backend is the slice of the actor the API exposes.
type Backend interface {
	ListQuests(ctx context.Context) ([]domain.Quest, error)
	GetQuest(ctx context.Context, id string) (*domain.Quest, error)
	GetProfile(ctx context.Context) (*domain.UserProfile, error)
	Leaderboard(ctx context.Context) ([]domain.Winner, error)
}

// SessionView is the JSON rendition of the consumer view of a session.
type SessionView struct {
	Authenticated bool       `json:"authenticated"`
	Principal     string     `json:"principal,omitempty"`
	Short         string     `json:"short,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// SessionHandler serves session and backend-proxy endpoints.
type SessionHandler struct {
	callTimeout time.Duration
}

// NewSessionHandler creates a session handler. callTimeout bounds each backend call.
func NewSessionHandler(callTimeout time.Duration) *SessionHandler {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &SessionHandler{callTimeout: callTimeout}
}

// RegisterRoutes registers the session API routes on the /api router.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.Session)
	r.Get("/quests", h.ListQuests)
	r.Get("/quests/{id}", h.GetQuest)
	r.Get("/profile", h.Profile)
	r.Get("/leaderboard", h.Leaderboard)
}

// Session returns the current session of the device.
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	handle := session.Use(r.Context())
	if handle == nil {
		Error(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	s := handle.Session()
	view := SessionView{Authenticated: s.Authenticated}
	if s.Authenticated {
		view.Principal = s.Principal().String()
		view.Short = s.Principal().Short()
		if !s.Identity.ExpiresAt.IsZero() {
			exp := s.Identity.ExpiresAt
			view.ExpiresAt = &exp
		}
	}
	JSON(w, http.StatusOK, view)
}

// backend resolves the actor of an authenticated session or writes the error response.
func (h *SessionHandler) backend(w http.ResponseWriter, r *http.Request) (Backend, bool) {
	handle := session.Use(r.Context())
	if handle == nil || !handle.Authenticated() {
		Error(w, http.StatusUnauthorized, "login required")
		return nil, false
	}
	b, ok := handle.Actor().(Backend)
	if !ok {
		slog.Error("Session actor does not expose backend calls", "device_id", handle.DeviceID())
		Error(w, http.StatusInternalServerError, "backend unavailable")
		return nil, false
	}
	return b, true
}

func (h *SessionHandler) backendError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		Error(w, http.StatusGatewayTimeout, "backend timed out")
		return
	}
	slog.Warn("Backend call failed", "op", op, "error", err, "path", r.URL.Path)
	Error(w, http.StatusBadGateway, "backend call failed")
}

// ListQuests proxies the quest list.
func (h *SessionHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	quests, err := b.ListQuests(ctx)
	if err != nil {
		h.backendError(w, r, "list_quests", err)
		return
	}
	if quests == nil {
		quests = []domain.Quest{}
	}
	JSON(w, http.StatusOK, map[string]any{"quests": quests})
}

// GetQuest proxies a single quest.
func (h *SessionHandler) GetQuest(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	quest, err := b.GetQuest(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.backendError(w, r, "get_quest", err)
		return
	}
	if quest == nil {
		Error(w, http.StatusNotFound, "quest not found")
		return
	}
	JSON(w, http.StatusOK, quest)
}

// Profile proxies the caller's profile.
func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	profile, err := b.GetProfile(ctx)
	if err != nil {
		h.backendError(w, r, "get_profile", err)
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "profile not found")
		return
	}
	JSON(w, http.StatusOK, profile)
}

// Leaderboard proxies the winners list.
func (h *SessionHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	winners, err := b.Leaderboard(ctx)
	if err != nil {
		h.backendError(w, r, "leaderboard", err)
		return
	}
	if winners == nil {
		winners = []domain.Winner{}
	}
	JSON(w, http.StatusOK, map[string]any{"winners": winners})
}
