// Package actor builds backend actors: gRPC clients to the quest backend bound
// to one authenticated identity.
package actor

import (
	"context"
	"errors"

	"github.com/ashureev/satty/internal/domain"
	"google.golang.org/grpc/credentials"
)

const (
	principalHeader = "x-satty-principal"
	canisterHeader  = "x-satty-canister"
)

// Agent is a network agent scoped to one identity. It attaches the identity's
// delegation to every call.
type Agent struct {
	identity *domain.Identity
}

// NewAgent creates an agent for identity.
func NewAgent(identity *domain.Identity) (*Agent, error) {
	if identity == nil || identity.Principal == "" {
		return nil, errors.New("agent requires an identity with a principal")
	}
	return &Agent{identity: identity}, nil
}

// Principal returns the principal the agent acts for.
func (a *Agent) Principal() domain.Principal {
	return a.identity.Principal
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (a *Agent) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := map[string]string{
		principalHeader: a.identity.Principal.String(),
	}
	if a.identity.Delegation != "" {
		md["authorization"] = "Bearer " + a.identity.Delegation
	}
	return md, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (a *Agent) RequireTransportSecurity() bool {
	return false
}

var _ credentials.PerRPCCredentials = (*Agent)(nil)
