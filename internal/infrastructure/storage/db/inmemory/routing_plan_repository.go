package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type routingPlanRepository struct {
	lock  *sync.RWMutex
	plans map[uuid.UUID]*domain.RoutingPlan
}

func newRoutingPlanRepository() *routingPlanRepository {
	return &routingPlanRepository{
		lock:  &sync.RWMutex{},
		plans: make(map[uuid.UUID]*domain.RoutingPlan),
	}
}

func (r *routingPlanRepository) AddRoutingPlan(
	_ context.Context, plan *domain.RoutingPlan,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p := *plan
	r.plans[plan.ID] = &p
	return nil
}

func (r *routingPlanRepository) GetRoutingPlan(
	_ context.Context, id uuid.UUID,
) (*domain.RoutingPlan, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	plan, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrRoutingPlanNotFound
	}
	p := *plan
	return &p, nil
}

func (r *routingPlanRepository) UpdateRoutingPlan(
	_ context.Context, id uuid.UUID,
	updateFn func(*domain.RoutingPlan) (*domain.RoutingPlan, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	plan, ok := r.plans[id]
	if !ok {
		return domain.ErrRoutingPlanNotFound
	}

	p := *plan
	updated, err := updateFn(&p)
	if err != nil {
		return err
	}
	r.plans[id] = updated
	return nil
}
