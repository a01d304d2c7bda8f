package domain

import (
	"time"
)

// Principal is the textual identifier of an authenticated identity.
type Principal string

// String returns the principal text.
func (p Principal) String() string {
	return string(p)
}

// Short returns the first five characters followed by an ellipsis, the form
// shown in the page header.
func (p Principal) Short() string {
	if p == "" {
		return ""
	}
	r := []rune(string(p))
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r) + "..."
}

// Identity is a delegated identity issued by the identity provider.
type Identity struct {
	Principal  Principal `json:"principal"`
	Delegation string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the delegation is no longer valid at now.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil {
		return true
	}
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Device is a browser known to the server through its device cookie.
type Device struct {
	DeviceID   string    `json:"device_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Delegation is the persisted identity for a device, the state the identity
// client keeps between visits.
type Delegation struct {
	DeviceID  string
	Principal Principal
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity converts the persisted delegation back into an identity.
func (d *Delegation) Identity() *Identity {
	if d == nil {
		return nil
	}
	return &Identity{
		Principal:  d.Principal,
		Delegation: d.Token,
		ExpiresAt:  d.ExpiresAt,
	}
}
