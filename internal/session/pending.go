package session

import (
	"context"
	"sync"
	"time"
)

// PendingLogin is the deferred result of an interactive login. It resolves
// once: nil when the provider reported success and the session was published,
// or an error when the provider rejected, the attempt was superseded, or it
// was cancelled.
type PendingLogin struct {
	ID          string
	ReturnTo    string
	RedirectURL string
	CreatedAt   time.Time

	done chan struct{}
	once sync.Once
	err  error
}

func newPendingLogin(id, returnTo, redirectURL string, now time.Time) *PendingLogin {
	return &PendingLogin{
		ID:          id,
		ReturnTo:    returnTo,
		RedirectURL: redirectURL,
		CreatedAt:   now,
		done:        make(chan struct{}),
	}
}

// Done is closed when the login resolves.
func (p *PendingLogin) Done() <-chan struct{} {
	return p.done
}

// Err returns the resolution error. It is nil until Done is closed, and nil
// afterwards when the login succeeded.
func (p *PendingLogin) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the login resolves or ctx ends.
func (p *PendingLogin) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PendingLogin) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
