package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

// ReserveQuantity locks enough of the owner's available slices of the given
// certificate to cover the requested quantity and returns them in
// reservation order.
//
// The two failure modes matter to callers: when the available quantity plus
// the quantity still settling with the registry cannot cover the request,
// the shortage is permanent and the command must be rejected with
// ErrInsufficientQuantity. When only the settling quantity would make up the
// difference, the shortage is temporary and ErrQuantityNotYetAvailable asks
// the caller to redeliver once the registry commits.
func ReserveQuantity(
	ctx context.Context, repo domain.SliceRepository, planID uuid.UUID,
	owner, registryName, certificateID string, quantity uint64,
) ([]domain.Slice, error) {
	if quantity == 0 {
		return nil, ErrNullQuantity
	}

	slices, err := repo.GetSlicesForCertificate(
		ctx, owner, registryName, certificateID,
		[]int{domain.SliceStateAvailable, domain.SliceStateRegistering},
	)
	if err != nil {
		return nil, err
	}

	var available, settling uint64
	for i := range slices {
		if slices[i].IsAvailable() {
			available += slices[i].Quantity
		} else {
			settling += slices[i].Quantity
		}
	}

	if available < quantity {
		if available+settling >= quantity {
			return nil, domain.ErrQuantityNotYetAvailable
		}
		return nil, domain.ErrInsufficientQuantity
	}

	reserved := make([]domain.Slice, 0)
	var covered uint64
	for i := range slices {
		if covered >= quantity {
			break
		}
		if !slices[i].IsAvailable() {
			continue
		}

		if err := repo.UpdateSlice(
			ctx, slices[i].ID,
			func(s *domain.Slice) (*domain.Slice, error) {
				if _, err := s.Reserve(planID); err != nil {
					return nil, err
				}
				return s, nil
			},
		); err != nil {
			return nil, err
		}

		s := slices[i]
		s.State = domain.SliceStateReserved
		s.LockedBy = &planID
		reserved = append(reserved, s)
		covered += s.Quantity
	}

	return reserved, nil
}
