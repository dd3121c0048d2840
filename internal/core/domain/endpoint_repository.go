package domain

import (
	"context"

	"github.com/google/uuid"
)

// EndpointRepository is the storage contract for wallet and external
// endpoints. Position and account counters are allocated strictly serially
// inside the caller's transaction, so that one-time keys are never reused
// under concurrency.
type EndpointRepository interface {
	AddEndpoint(ctx context.Context, endpoint *Endpoint) error
	// GetEndpoint returns the endpoint with the given id, or
	// ErrEndpointNotFound.
	GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error)
	// GetEndpointsByOwner lists the endpoints registered for an owner.
	GetEndpointsByOwner(ctx context.Context, owner string) ([]Endpoint, error)
	// NextPosition increments and returns the endpoint's position counter.
	NextPosition(ctx context.Context, id uuid.UUID) (uint32, error)
	// NextAccount increments and returns the wallet-wide HD account
	// counter used when creating wallet endpoints.
	NextAccount(ctx context.Context) (uint32, error)
}
