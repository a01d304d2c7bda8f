package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body, 1, "error body carries only the message")
	return body["error"]
}

func TestJSONWritesStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, SessionView{Authenticated: true, Principal: "2vxsx-fae", Short: "2vxsx"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"authenticated":true,"principal":"2vxsx-fae","short":"2vxsx"}`, w.Body.String())
}

func TestJSONEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	// The status line is already out; only the body reports the failure.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "failed to encode response")
}

func TestErrorShape(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadGateway, "backend call failed")

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "backend call failed", decodeError(t, w))
}

func TestQuestsRequireLogin(t *testing.T) {
	w := get(newRouter(t, &fakeBackend{}, false), "/api/quests")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "login required", decodeError(t, w))
}

func TestUnknownAPIPathIsJSON(t *testing.T) {
	h := newRouter(t, &fakeBackend{}, true)

	for _, path := range []string{"/api/nope", "/api/quests/1/extra"} {
		w := get(h, path)
		require.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "not found", decodeError(t, w), path)
	}
}

func TestWrongMethodIsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, &fakeBackend{}, true).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/session", nil))

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method not allowed", decodeError(t, w))
}

func TestMountAppliesMiddleware(t *testing.T) {
	r := chi.NewRouter()
	var seen []string
	Mount(r, nil, nil, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{"/api/missing"}, seen)
}
