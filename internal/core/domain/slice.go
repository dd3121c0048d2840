package domain

import (
	"time"

	"github.com/google/uuid"
)

// Slice is a quantity fragment of a certificate owned by exactly one
// endpoint. Slices are append-only and UTXO-like: ownership never moves by
// mutating a slice, it moves by inserting a new slice at the receiving
// endpoint and bringing the source to a spent state.
//
// The quantity must always equal the message committed inside the slice's
// commitment, which is derivable from (Quantity, RandomR).
type Slice struct {
	ID            uuid.UUID
	Owner         string
	EndpointID    uuid.UUID
	Position      uint32
	Registry      string
	CertificateID string
	Quantity      uint64
	RandomR       []byte
	// Commitment is set only on received slices: it is the commitment the
	// depositor claims for (Quantity, RandomR), checked before the slice
	// is promoted to Available.
	Commitment []byte
	State      int
	LockedBy   *uuid.UUID
	CreatedAt  int64
}

// NewSlice returns an available wallet slice with a new id.
func NewSlice(
	owner string, endpointID uuid.UUID, position uint32,
	registry, certificateID string, quantity uint64, randomR []byte,
) *Slice {
	return &Slice{
		ID:            uuid.New(),
		Owner:         owner,
		EndpointID:    endpointID,
		Position:      position,
		Registry:      registry,
		CertificateID: certificateID,
		Quantity:      quantity,
		RandomR:       randomR,
		State:         SliceStateAvailable,
		CreatedAt:     time.Now().UnixNano(),
	}
}

// NewReceivedSlice returns a slice deposited by a counterparty, pending
// verification of the claimed commitment against its opening.
func NewReceivedSlice(
	owner string, endpointID uuid.UUID, position uint32,
	registry, certificateID string, quantity uint64, randomR, commitment []byte,
) *Slice {
	s := NewSlice(owner, endpointID, position, registry, certificateID, quantity, randomR)
	s.Commitment = commitment
	s.State = SliceStateReceivedPending
	return s
}

// Reserve locks the slice for the given routing plan. Reserving an already
// reserved slice is a no-op only for the same plan.
func (s *Slice) Reserve(planID uuid.UUID) (bool, error) {
	if s.State == SliceStateReserved {
		if s.LockedBy != nil && *s.LockedBy == planID {
			return true, nil
		}
		return false, ErrSliceReservedByOther
	}
	if s.State != SliceStateAvailable {
		return false, ErrSliceNotAvailable
	}

	s.State = SliceStateReserved
	s.LockedBy = &planID
	return true, nil
}

// Register brings a reserved slice to the Registering state once its
// ownership transition has been signed.
func (s *Slice) Register(planID uuid.UUID) (bool, error) {
	if s.State == SliceStateRegistering {
		return true, nil
	}
	if s.State != SliceStateReserved {
		return false, ErrSliceNotReserved
	}
	if s.LockedBy == nil || *s.LockedBy != planID {
		return false, ErrSliceReservedByOther
	}

	s.State = SliceStateRegistering
	return true, nil
}

// Release returns a reserved or registering slice to Available and drops
// the lock. It is the compensation transition and must always succeed for
// non-terminal states.
func (s *Slice) Release() (bool, error) {
	if s.State == SliceStateAvailable {
		return true, nil
	}
	if s.State != SliceStateReserved && s.State != SliceStateRegistering {
		return false, ErrSliceNotReserved
	}

	s.State = SliceStateAvailable
	s.LockedBy = nil
	return true, nil
}

// MarkSliced brings a registering slice to the terminal Sliced state after
// the registry committed its split transaction.
func (s *Slice) MarkSliced() (bool, error) {
	if s.State == SliceStateSliced {
		return true, nil
	}
	if s.State != SliceStateRegistering {
		return false, ErrSliceNotRegistering
	}

	s.State = SliceStateSliced
	s.LockedBy = nil
	return true, nil
}

// MarkClaimed brings a registering slice to the terminal Claimed state.
func (s *Slice) MarkClaimed() (bool, error) {
	if s.State == SliceStateClaimed {
		return true, nil
	}
	if s.State != SliceStateRegistering {
		return false, ErrSliceNotRegistering
	}

	s.State = SliceStateClaimed
	s.LockedBy = nil
	return true, nil
}

// MarkTransferred brings a registering slice to the terminal Transferred
// state.
func (s *Slice) MarkTransferred() (bool, error) {
	if s.State == SliceStateTransferred {
		return true, nil
	}
	if s.State != SliceStateRegistering {
		return false, ErrSliceNotRegistering
	}

	s.State = SliceStateTransferred
	s.LockedBy = nil
	return true, nil
}

// Verify promotes a received slice to Available once its commitment has
// been checked.
func (s *Slice) Verify() (bool, error) {
	if s.State == SliceStateAvailable {
		return true, nil
	}
	if s.State != SliceStateReceivedPending {
		return false, ErrSliceNotPendingVerification
	}

	s.State = SliceStateAvailable
	return true, nil
}

// IsAvailable returns whether the slice can be reserved.
func (s *Slice) IsAvailable() bool {
	return s.State == SliceStateAvailable
}

// IsSettling returns whether the slice is awaiting registry confirmation.
func (s *Slice) IsSettling() bool {
	return s.State == SliceStateRegistering
}

// IsSpent returns whether the slice reached a terminal spent state.
func (s *Slice) IsSpent() bool {
	return s.State == SliceStateSliced ||
		s.State == SliceStateClaimed ||
		s.State == SliceStateTransferred
}
