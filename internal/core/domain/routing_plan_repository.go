package domain

import (
	"context"

	"github.com/google/uuid"
)

// RoutingPlanRepository is the storage contract for routing plans.
type RoutingPlanRepository interface {
	AddRoutingPlan(ctx context.Context, plan *RoutingPlan) error
	// GetRoutingPlan returns the plan with the given id, or
	// ErrRoutingPlanNotFound.
	GetRoutingPlan(ctx context.Context, id uuid.UUID) (*RoutingPlan, error)
	// UpdateRoutingPlan applies updateFn to the stored plan.
	UpdateRoutingPlan(
		ctx context.Context, id uuid.UUID,
		updateFn func(*RoutingPlan) (*RoutingPlan, error),
	) error
}
