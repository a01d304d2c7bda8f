// Package domain contains core domain types for the Satty quest application.
package domain

import "io"

// Actor is a handle to the backend service bound to one authenticated identity.
// The session layer only constructs and releases actors; callers type-assert or
// use the concrete actor package for backend calls.
type Actor interface {
	io.Closer
}

// Session is the authentication state of one device.
//
// Authenticated is true iff both Identity and Actor are set. Build sessions with
// AuthenticatedSession or EmptySession to keep that invariant.
type Session struct {
	Authenticated bool
	Identity      *Identity
	Actor         Actor
}

// EmptySession returns the unauthenticated session.
func EmptySession() Session {
	return Session{}
}

// AuthenticatedSession returns a session bound to identity and actor.
// It returns the empty session if either is missing.
func AuthenticatedSession(identity *Identity, actor Actor) Session {
	if identity == nil || actor == nil {
		return EmptySession()
	}
	return Session{
		Authenticated: true,
		Identity:      identity,
		Actor:         actor,
	}
}

// Principal returns the session principal, or the empty principal when
// unauthenticated.
func (s Session) Principal() Principal {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Principal
}
