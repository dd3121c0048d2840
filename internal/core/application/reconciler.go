package application

import (
	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

// PlannedSlice references a slice inside a reconciled operation list. For
// slices that a split operation will mint, the id is allocated up front and
// Existing is false until the split step persists the row.
type PlannedSlice struct {
	ID            uuid.UUID
	Quantity      uint64
	Registry      string
	CertificateID string
	Existing      bool
}

// Operation is the closed set of steps the reconciler can plan. The
// orchestrator switches exhaustively over the concrete types when expanding
// them into durable routing plan steps.
type Operation interface {
	isOperation()
}

// SplitPart is one output of a planned split, tagged with the role deciding
// its state once the split is finalized.
type SplitPart struct {
	Slice PlannedSlice
	Role  int
}

// SplitOperation splits a source slice into smaller parts whose quantities
// sum up to the source quantity.
type SplitOperation struct {
	Source PlannedSlice
	Parts  []SplitPart
}

// ClaimOperation retires a production slice against a consumption slice of
// the same quantity.
type ClaimOperation struct {
	Production  PlannedSlice
	Consumption PlannedSlice
}

// TransferOperation moves a slice to the receiving endpoint.
type TransferOperation struct {
	Slice PlannedSlice
}

// ReleaseOperation returns a reserved slice that ended up unused back to
// Available. Local only.
type ReleaseOperation struct {
	Slice PlannedSlice
}

func (SplitOperation) isOperation()    {}
func (ClaimOperation) isOperation()    {}
func (TransferOperation) isOperation() {}
func (ReleaseOperation) isOperation()  {}

func fromSlice(s *domain.Slice) PlannedSlice {
	return PlannedSlice{
		ID:            s.ID,
		Quantity:      s.Quantity,
		Registry:      s.Registry,
		CertificateID: s.CertificateID,
		Existing:      true,
	}
}

func derivedFrom(parent PlannedSlice, quantity uint64) PlannedSlice {
	return PlannedSlice{
		ID:            uuid.New(),
		Quantity:      quantity,
		Registry:      parent.Registry,
		CertificateID: parent.CertificateID,
	}
}

// PlanClaim matches the reserved production slices against the reserved
// consumption slices greedily, in the order the reservation returned them,
// and emits the minimal operation list claiming exactly the requested
// quantity. Oversized slices are split so that matched pieces always pair up
// exactly; whatever is left over is split off as a remainder or released.
func PlanClaim(
	quantity uint64, production, consumption []domain.Slice,
) ([]Operation, error) {
	if quantity == 0 {
		return nil, ErrNullQuantity
	}

	ops := make([]Operation, 0, len(production)+len(consumption))
	remaining := quantity
	prodIdx := 0

	// current is the production piece the next claim will consume, either a
	// reserved slice or the leftover of a production split.
	var current *PlannedSlice

	for i := range consumption {
		cons := fromSlice(&consumption[i])
		if remaining == 0 {
			ops = append(ops, ReleaseOperation{Slice: cons})
			continue
		}

		if cons.Quantity > remaining {
			matched := derivedFrom(cons, remaining)
			leftover := derivedFrom(cons, cons.Quantity-remaining)
			ops = append(ops, SplitOperation{
				Source: cons,
				Parts: []SplitPart{
					{Slice: matched, Role: domain.PartRoleClaim},
					{Slice: leftover, Role: domain.PartRoleRemainder},
				},
			})
			cons = matched
		}

		for cons.Quantity > 0 {
			if current == nil {
				if prodIdx >= len(production) {
					return nil, ErrIncompletePlan
				}
				next := fromSlice(&production[prodIdx])
				prodIdx++
				current = &next
			}

			switch {
			case current.Quantity > cons.Quantity:
				matched := derivedFrom(*current, cons.Quantity)
				leftover := derivedFrom(*current, current.Quantity-cons.Quantity)
				ops = append(ops,
					SplitOperation{
						Source: *current,
						Parts: []SplitPart{
							{Slice: matched, Role: domain.PartRoleClaim},
							{Slice: leftover, Role: domain.PartRoleClaim},
						},
					},
					ClaimOperation{Production: matched, Consumption: cons},
				)
				remaining -= cons.Quantity
				current = &leftover
				cons.Quantity = 0

			case current.Quantity < cons.Quantity:
				matched := derivedFrom(cons, current.Quantity)
				leftover := derivedFrom(cons, cons.Quantity-current.Quantity)
				ops = append(ops,
					SplitOperation{
						Source: cons,
						Parts: []SplitPart{
							{Slice: matched, Role: domain.PartRoleClaim},
							{Slice: leftover, Role: domain.PartRoleClaim},
						},
					},
					ClaimOperation{Production: *current, Consumption: matched},
				)
				remaining -= current.Quantity
				current = nil
				cons = leftover

			default:
				ops = append(ops, ClaimOperation{Production: *current, Consumption: cons})
				remaining -= cons.Quantity
				current = nil
				cons.Quantity = 0
			}
		}
	}

	if remaining != 0 {
		return nil, ErrIncompletePlan
	}

	if current != nil {
		ops = append(ops, ReleaseOperation{Slice: *current})
	}
	for ; prodIdx < len(production); prodIdx++ {
		ops = append(ops, ReleaseOperation{Slice: fromSlice(&production[prodIdx])})
	}

	return ops, nil
}

// PlanTransfer selects the reserved slices covering the requested quantity,
// splitting the last one when it overshoots, and emits the transfer
// operations moving exactly the requested quantity.
func PlanTransfer(quantity uint64, sources []domain.Slice) ([]Operation, error) {
	if quantity == 0 {
		return nil, ErrNullQuantity
	}

	ops := make([]Operation, 0, len(sources))
	remaining := quantity

	for i := range sources {
		src := fromSlice(&sources[i])
		if remaining == 0 {
			ops = append(ops, ReleaseOperation{Slice: src})
			continue
		}

		if src.Quantity <= remaining {
			ops = append(ops, TransferOperation{Slice: src})
			remaining -= src.Quantity
			continue
		}

		moved := derivedFrom(src, remaining)
		kept := derivedFrom(src, src.Quantity-remaining)
		ops = append(ops,
			SplitOperation{
				Source: src,
				Parts: []SplitPart{
					{Slice: moved, Role: domain.PartRoleTransfer},
					{Slice: kept, Role: domain.PartRoleRemainder},
				},
			},
			TransferOperation{Slice: moved},
		)
		remaining = 0
	}

	if remaining != 0 {
		return nil, ErrIncompletePlan
	}

	return ops, nil
}
