package domain

import (
	"context"

	"github.com/google/uuid"
)

// ClaimRepository is the storage contract for claims.
type ClaimRepository interface {
	AddClaim(ctx context.Context, claim *Claim) error
	// GetClaim returns the claim with the given id, or ErrClaimNotFound.
	GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error)
	// UpdateClaim applies updateFn to the stored claim.
	UpdateClaim(
		ctx context.Context, id uuid.UUID,
		updateFn func(*Claim) (*Claim, error),
	) error
}
