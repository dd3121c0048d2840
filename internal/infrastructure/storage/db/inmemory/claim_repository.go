package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type claimRepository struct {
	lock   *sync.RWMutex
	claims map[uuid.UUID]*domain.Claim
}

func newClaimRepository() *claimRepository {
	return &claimRepository{
		lock:   &sync.RWMutex{},
		claims: make(map[uuid.UUID]*domain.Claim),
	}
}

func (r *claimRepository) AddClaim(_ context.Context, claim *domain.Claim) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	c := *claim
	r.claims[claim.ID] = &c
	return nil
}

func (r *claimRepository) GetClaim(_ context.Context, id uuid.UUID) (*domain.Claim, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	c := *claim
	return &c, nil
}

func (r *claimRepository) UpdateClaim(
	_ context.Context, id uuid.UUID,
	updateFn func(*domain.Claim) (*domain.Claim, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return domain.ErrClaimNotFound
	}

	c := *claim
	updated, err := updateFn(&c)
	if err != nil {
		return err
	}
	r.claims[id] = updated
	return nil
}
