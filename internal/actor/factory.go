package actor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/satty/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Factory creates actors bound to the configured backend.
type Factory struct {
	addr       string
	canisterID string
	opts       []grpc.DialOption
	logger     *slog.Logger
}

// NewFactory creates an actor factory for the backend at addr. Extra dial
// options are appended to the defaults.
func NewFactory(addr, canisterID string, logger *slog.Logger, opts ...grpc.DialOption) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		addr:       addr,
		canisterID: canisterID,
		opts:       opts,
		logger:     logger,
	}
}

// DefaultDialOptions returns the dial options every actor connection uses.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Create builds an actor bound to canisterID and agent. No network I/O happens
// until the first call.
func (f *Factory) Create(canisterID string, agent *Agent) (*Actor, error) {
	opts := append(DefaultDialOptions(), grpc.WithPerRPCCredentials(agent))
	opts = append(opts, f.opts...)

	conn, err := grpc.NewClient(f.addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("create backend client for %s: %w", f.addr, err)
	}

	f.logger.Debug("Backend actor created", "canister_id", canisterID, "principal", agent.Principal())
	return &Actor{
		conn:       conn,
		canisterID: canisterID,
		agent:      agent,
		logger:     f.logger,
	}, nil
}

// NewActor builds an agent scoped to identity and an actor bound to it and to
// the factory's canister.
func (f *Factory) NewActor(identity *domain.Identity) (domain.Actor, error) {
	agent, err := NewAgent(identity)
	if err != nil {
		return nil, err
	}
	return f.Create(f.canisterID, agent)
}
