package dbbadger

import (
	"context"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type routingPlanRepositoryImpl struct {
	db *DbManager
}

func newRoutingPlanRepositoryImpl(db *DbManager) domain.RoutingPlanRepository {
	return routingPlanRepositoryImpl{db: db}
}

func (r routingPlanRepositoryImpl) AddRoutingPlan(
	ctx context.Context, plan *domain.RoutingPlan,
) error {
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxInsert(tx, plan.ID, plan)
	}
	return r.db.store.Insert(plan.ID, plan)
}

func (r routingPlanRepositoryImpl) GetRoutingPlan(
	ctx context.Context, id uuid.UUID,
) (*domain.RoutingPlan, error) {
	var plan domain.RoutingPlan
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxGet(tx, id, &plan)
	} else {
		err = r.db.store.Get(id, &plan)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrRoutingPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r routingPlanRepositoryImpl) UpdateRoutingPlan(
	ctx context.Context, id uuid.UUID,
	updateFn func(*domain.RoutingPlan) (*domain.RoutingPlan, error),
) error {
	currentPlan, err := r.GetRoutingPlan(ctx, id)
	if err != nil {
		return err
	}

	updatedPlan, err := updateFn(currentPlan)
	if err != nil {
		return err
	}

	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxUpdate(tx, id, *updatedPlan)
	}
	return r.db.store.Update(id, *updatedPlan)
}
