package domain

import (
	"context"

	"github.com/google/uuid"
)

// SliceRepository is the storage contract for slices of every lifecycle
// variant. All methods operate inside the caller's transaction.
type SliceRepository interface {
	// AddSlices inserts the given slices. Inserting a slice at an already
	// taken (endpoint, position) pair fails with ErrPositionAlreadyTaken.
	AddSlices(ctx context.Context, slices []Slice) error
	// GetSlice returns the slice with the given id, or ErrSliceNotFound.
	GetSlice(ctx context.Context, id uuid.UUID) (*Slice, error)
	// GetSlicesForCertificate returns the owner's slices for a certificate
	// filtered by state, ordered by creation time then position so that
	// multi-slice matching is reproducible.
	GetSlicesForCertificate(
		ctx context.Context, owner, registry, certificateID string, states []int,
	) ([]Slice, error)
	// UpdateSlice applies updateFn to the stored slice.
	UpdateSlice(
		ctx context.Context, id uuid.UUID,
		updateFn func(*Slice) (*Slice, error),
	) error
	// RemoveSlices deletes slices that never reached the registry. Used
	// only by compensation to drop part slices of a rejected split.
	RemoveSlices(ctx context.Context, ids []uuid.UUID) error
}
