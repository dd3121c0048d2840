package domain

import "github.com/google/uuid"

// Claim pairs a production slice with a consumption slice of the same
// quantity. It becomes Claimed only after both underlying registry
// transactions commit, and Rejected if the registry rejects either of them.
type Claim struct {
	ID                 uuid.UUID
	ProductionSliceID  uuid.UUID
	ConsumptionSliceID uuid.UUID
	Quantity           uint64
	State              int
}

// NewClaim returns a claim in the Created state with a new id.
func NewClaim(productionSliceID, consumptionSliceID uuid.UUID, quantity uint64) *Claim {
	return &Claim{
		ID:                 uuid.New(),
		ProductionSliceID:  productionSliceID,
		ConsumptionSliceID: consumptionSliceID,
		Quantity:           quantity,
		State:              ClaimStateCreated,
	}
}

// Confirm brings the claim to the Claimed state.
func (c *Claim) Confirm() (bool, error) {
	if c.State == ClaimStateClaimed {
		return true, nil
	}
	if c.State != ClaimStateCreated {
		return false, ErrClaimNotCreated
	}

	c.State = ClaimStateClaimed
	return true, nil
}

// Reject brings the claim to the Rejected state. It is part of the
// compensation path and both underlying slices must be returned to
// Available by the caller.
func (c *Claim) Reject() (bool, error) {
	if c.State == ClaimStateRejected {
		return true, nil
	}
	if c.State != ClaimStateCreated {
		return false, ErrClaimNotCreated
	}

	c.State = ClaimStateRejected
	return true, nil
}

// IsClaimed returns whether the claim reached the Claimed state.
func (c *Claim) IsClaimed() bool {
	return c.State == ClaimStateClaimed
}

// IsRejected returns whether the claim was rejected.
func (c *Claim) IsRejected() bool {
	return c.State == ClaimStateRejected
}
