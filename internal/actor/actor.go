package actor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/satty/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const backendService = "/satty.backend.v1.Backend/"

// ErrClosed is returned by calls on a closed actor.
var ErrClosed = errors.New("actor closed")

// Actor is a backend handle bound to one agent. Messages travel as generic
// structpb values so the backend schema stays opaque to this service.
type Actor struct {
	conn       *grpc.ClientConn
	canisterID string
	agent      *Agent
	logger     *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// CanisterID returns the backend the actor is bound to.
func (a *Actor) CanisterID() string {
	return a.canisterID
}

// Principal returns the principal the actor calls as.
func (a *Actor) Principal() domain.Principal {
	return a.agent.Principal()
}

// Close releases the backend connection.
func (a *Actor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		if a.conn != nil {
			err = a.conn.Close()
		}
	})
	return err
}

// Health reports whether the backend answers.
func (a *Actor) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := a.call(ctx, "Health", nil, &out); err != nil {
		return err
	}
	if out.Status != "" && out.Status != "ok" {
		return fmt.Errorf("backend unhealthy: %s", out.Status)
	}
	return nil
}

// ListQuests returns all quests.
func (a *Actor) ListQuests(ctx context.Context) ([]domain.Quest, error) {
	var out struct {
		Quests []wireQuest `json:"quests"`
	}
	if err := a.call(ctx, "ListQuests", nil, &out); err != nil {
		return nil, err
	}
	if out.Quests == nil {
		return nil, nil
	}
	quests := make([]domain.Quest, 0, len(out.Quests))
	for _, q := range out.Quests {
		quests = append(quests, q.domain())
	}
	return quests, nil
}

// GetQuest returns one quest by id.
func (a *Actor) GetQuest(ctx context.Context, id string) (*domain.Quest, error) {
	var out struct {
		Quest *wireQuest `json:"quest"`
	}
	if err := a.call(ctx, "GetQuest", map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Quest == nil {
		return nil, nil
	}
	q := out.Quest.domain()
	return &q, nil
}

// GetProfile returns the caller's profile.
func (a *Actor) GetProfile(ctx context.Context) (*domain.UserProfile, error) {
	var out struct {
		Profile *wireProfile `json:"profile"`
	}
	if err := a.call(ctx, "GetProfile", nil, &out); err != nil {
		return nil, err
	}
	if out.Profile == nil {
		return nil, nil
	}
	p := out.Profile.domain()
	return &p, nil
}

// Leaderboard returns the payout records ordered by the backend.
func (a *Actor) Leaderboard(ctx context.Context) ([]domain.Winner, error) {
	var out struct {
		Winners []wireWinner `json:"winners"`
	}
	if err := a.call(ctx, "Leaderboard", nil, &out); err != nil {
		return nil, err
	}
	if out.Winners == nil {
		return nil, nil
	}
	winners := make([]domain.Winner, 0, len(out.Winners))
	for _, w := range out.Winners {
		winners = append(winners, w.domain())
	}
	return winners, nil
}

func (a *Actor) call(ctx context.Context, method string, args map[string]any, out any) error {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if args == nil {
		args = map[string]any{}
	}
	req, err := structpb.NewStruct(args)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	ctx = metadata.AppendToOutgoingContext(ctx, canisterHeader, a.canisterID)
	resp := &structpb.Struct{}
	if err := a.conn.Invoke(ctx, backendService+method, req, resp); err != nil {
		a.logger.Debug("Backend call failed", "method", method, "principal", a.Principal(), "error", err)
		return fmt.Errorf("backend %s: %w", method, err)
	}

	// Numbers in resp are float64 already; 64-bit fields arrive as strings
	// and decode through wireInt.
	raw, err := json.Marshal(resp.AsMap())
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
