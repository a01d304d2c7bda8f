package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount registers the JSON API under /api. Unknown paths and methods answer
// with JSON errors rather than the router's plain-text defaults.
func Mount(r chi.Router, health *HealthHandler, sessions *SessionHandler, middlewares ...func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middlewares...)
		r.NotFound(NotFound)
		r.MethodNotAllowed(MethodNotAllowed)

		if health != nil {
			health.RegisterHealth(r)
		}
		if sessions != nil {
			sessions.RegisterRoutes(r)
		}
	})
}

// NotFound answers unknown API paths.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known API paths called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
