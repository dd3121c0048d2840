package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type sliceRepository struct {
	lock      *sync.RWMutex
	slices    map[uuid.UUID]*domain.Slice
	positions map[string]uuid.UUID
}

func newSliceRepository() *sliceRepository {
	return &sliceRepository{
		lock:      &sync.RWMutex{},
		slices:    make(map[uuid.UUID]*domain.Slice),
		positions: make(map[string]uuid.UUID),
	}
}

func positionKey(endpointID uuid.UUID, position uint32) string {
	return fmt.Sprintf("%s/%d", endpointID, position)
}

func (r *sliceRepository) AddSlices(_ context.Context, slices []domain.Slice) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for i := range slices {
		key := positionKey(slices[i].EndpointID, slices[i].Position)
		if _, ok := r.positions[key]; ok {
			return domain.ErrPositionAlreadyTaken
		}
	}
	for i := range slices {
		s := slices[i]
		r.slices[s.ID] = &s
		r.positions[positionKey(s.EndpointID, s.Position)] = s.ID
	}
	return nil
}

func (r *sliceRepository) GetSlice(_ context.Context, id uuid.UUID) (*domain.Slice, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	slice, ok := r.slices[id]
	if !ok {
		return nil, domain.ErrSliceNotFound
	}
	s := *slice
	return &s, nil
}

func (r *sliceRepository) GetSlicesForCertificate(
	_ context.Context, owner, registry, certificateID string, states []int,
) ([]domain.Slice, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	wanted := make(map[int]struct{}, len(states))
	for _, state := range states {
		wanted[state] = struct{}{}
	}

	slices := make([]domain.Slice, 0)
	for _, slice := range r.slices {
		if slice.Owner != owner || slice.Registry != registry ||
			slice.CertificateID != certificateID {
			continue
		}
		if _, ok := wanted[slice.State]; !ok {
			continue
		}
		slices = append(slices, *slice)
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].CreatedAt != slices[j].CreatedAt {
			return slices[i].CreatedAt < slices[j].CreatedAt
		}
		return slices[i].Position < slices[j].Position
	})
	return slices, nil
}

func (r *sliceRepository) UpdateSlice(
	_ context.Context, id uuid.UUID,
	updateFn func(*domain.Slice) (*domain.Slice, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	slice, ok := r.slices[id]
	if !ok {
		return domain.ErrSliceNotFound
	}

	s := *slice
	updated, err := updateFn(&s)
	if err != nil {
		return err
	}
	r.slices[id] = updated
	return nil
}

func (r *sliceRepository) RemoveSlices(_ context.Context, ids []uuid.UUID) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, id := range ids {
		slice, ok := r.slices[id]
		if !ok {
			continue
		}
		delete(r.positions, positionKey(slice.EndpointID, slice.Position))
		delete(r.slices, id)
	}
	return nil
}
