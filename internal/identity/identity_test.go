package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/satty/internal/domain"
)

type fakeRepo struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
	touched int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{devices: make(map[string]*domain.Device)}
}

func (f *fakeRepo) GetDevice(_ context.Context, id string) (*domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.devices[id]
	if d == nil {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (f *fakeRepo) UpsertDevice(_ context.Context, d *domain.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *d
	f.devices[d.DeviceID] = &copy
	return nil
}

func (f *fakeRepo) TouchDevice(_ context.Context, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched++
	return nil
}

func (f *fakeRepo) GetDelegation(context.Context, string) (*domain.Delegation, error) {
	return nil, nil
}
func (f *fakeRepo) SaveDelegation(context.Context, *domain.Delegation) error { return nil }
func (f *fakeRepo) DeleteDelegation(context.Context, string) error           { return nil }
func (f *fakeRepo) DeleteExpiredDelegations(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func TestMiddlewareAssignsDeviceID(t *testing.T) {
	repo := newFakeRepo()
	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = DeviceIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !IsValidDeviceID(seen) {
		t.Fatalf("expected generated device id, got %q", seen)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != seen {
		t.Fatalf("expected device cookie %q, got %+v", seen, cookies)
	}
	if _, ok := repo.devices[seen]; !ok {
		t.Fatal("expected device row to be created")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newFakeRepo()
	id := "dev_0123456789abcdef0123456789abcdef"
	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = DeviceIDFromContext(r.Context())
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: id})
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if seen != id {
		t.Fatalf("expected %q, got %q", id, seen)
	}
	if repo.touched != 1 {
		t.Fatalf("expected second request to touch device once, got %d", repo.touched)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	repo := newFakeRepo()
	var seen string
	h := Middleware(repo, false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = DeviceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "dev_../../etc"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen == "dev_../../etc" || !IsValidDeviceID(seen) {
		t.Fatalf("expected forged cookie to be replaced, got %q", seen)
	}
	if !rr.Result().Cookies()[0].Secure {
		t.Fatal("expected secure cookie outside development")
	}
}

func TestDeviceIDFromContextEmpty(t *testing.T) {
	if got := DeviceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty device id, got %q", got)
	}
}
