// Package web renders the routed page shell and drives the login redirect
// flow.
package web

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/satty/internal/session"
)

// headerView reads the consumer view of the request's session.
func headerView(r *http.Request) HeaderView {
	hv := HeaderView{Path: r.URL.Path}
	if h := session.Use(r.Context()); h != nil && h.Authenticated() {
		hv.Authenticated = true
		hv.Short = h.Principal().Short()
	}
	return hv
}

func render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	page := Layout(title, headerView(r), body)
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(page, templ.WithStatus(status), templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		slog.Error("Failed to render page", "path", r.URL.Path, "error", err)
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}

// RegisterPages registers the page routes and the not-found page.
func RegisterPages(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, "", HomePage())
	})
	r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, "Leaderboard", LeaderboardPage())
	})
	r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, "Profile", ProfilePage())
	})
	r.Get("/quest/{id}", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, "Quest", QuestDetailPage(chi.URLParam(r, "id")))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusNotFound, "Not found", NotFoundPage())
	})
}
