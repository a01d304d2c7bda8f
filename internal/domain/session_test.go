package domain

import (
	"testing"
	"time"
)

type nopActor struct{}

func (nopActor) Close() error { return nil }

func TestAuthenticatedSessionRequiresIdentityAndActor(t *testing.T) {
	id := &Identity{Principal: "abcde-fghij"}

	if s := AuthenticatedSession(id, nil); s.Authenticated {
		t.Fatal("expected unauthenticated session without actor")
	}
	if s := AuthenticatedSession(nil, nopActor{}); s.Authenticated {
		t.Fatal("expected unauthenticated session without identity")
	}

	s := AuthenticatedSession(id, nopActor{})
	if !s.Authenticated || s.Identity != id || s.Actor == nil {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.Principal() != "abcde-fghij" {
		t.Fatalf("expected principal abcde-fghij, got %q", s.Principal())
	}
}

func TestPrincipalShort(t *testing.T) {
	cases := map[Principal]string{
		"":            "",
		"abc":         "abc...",
		"rrkah-fqaaa": "rrkah...",
	}
	for in, want := range cases {
		if got := in.Short(); got != want {
			t.Errorf("Short(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentityExpired(t *testing.T) {
	now := time.Now()
	var nilID *Identity
	if !nilID.Expired(now) {
		t.Fatal("nil identity should be expired")
	}
	if (&Identity{}).Expired(now) {
		t.Fatal("identity without expiry should not expire")
	}
	if !(&Identity{ExpiresAt: now}).Expired(now) {
		t.Fatal("identity expiring now should be expired")
	}
	if (&Identity{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("future expiry should be valid")
	}
}
