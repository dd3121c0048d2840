package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type endpointRepository struct {
	lock        *sync.RWMutex
	endpoints   map[uuid.UUID]*domain.Endpoint
	nextAccount uint32
}

func newEndpointRepository() *endpointRepository {
	return &endpointRepository{
		lock:      &sync.RWMutex{},
		endpoints: make(map[uuid.UUID]*domain.Endpoint),
	}
}

func (r *endpointRepository) AddEndpoint(_ context.Context, endpoint *domain.Endpoint) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	e := *endpoint
	r.endpoints[endpoint.ID] = &e
	return nil
}

func (r *endpointRepository) GetEndpoint(
	_ context.Context, id uuid.UUID,
) (*domain.Endpoint, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	endpoint, ok := r.endpoints[id]
	if !ok {
		return nil, domain.ErrEndpointNotFound
	}
	e := *endpoint
	return &e, nil
}

func (r *endpointRepository) GetEndpointsByOwner(
	_ context.Context, owner string,
) ([]domain.Endpoint, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	endpoints := make([]domain.Endpoint, 0)
	for _, endpoint := range r.endpoints {
		if endpoint.Owner == owner {
			endpoints = append(endpoints, *endpoint)
		}
	}
	return endpoints, nil
}

func (r *endpointRepository) NextPosition(_ context.Context, id uuid.UUID) (uint32, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	endpoint, ok := r.endpoints[id]
	if !ok {
		return 0, domain.ErrEndpointNotFound
	}

	position := endpoint.NextPosition
	endpoint.NextPosition++
	return position, nil
}

func (r *endpointRepository) NextAccount(_ context.Context) (uint32, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	account := r.nextAccount
	r.nextAccount++
	return account, nil
}
