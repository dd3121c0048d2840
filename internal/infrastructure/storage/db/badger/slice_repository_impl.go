package dbbadger

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type sliceRepositoryImpl struct {
	db *DbManager
}

func newSliceRepositoryImpl(db *DbManager) domain.SliceRepository {
	return sliceRepositoryImpl{db: db}
}

func (r sliceRepositoryImpl) AddSlices(ctx context.Context, slices []domain.Slice) error {
	for i := range slices {
		taken, err := r.positionTaken(ctx, slices[i].EndpointID, slices[i].Position)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrPositionAlreadyTaken
		}
	}

	for i := range slices {
		if err := r.insertSlice(ctx, slices[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r sliceRepositoryImpl) GetSlice(
	ctx context.Context, id uuid.UUID,
) (*domain.Slice, error) {
	var slice domain.Slice
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxGet(tx, id, &slice)
	} else {
		err = r.db.store.Get(id, &slice)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSliceNotFound
		}
		return nil, err
	}
	return &slice, nil
}

func (r sliceRepositoryImpl) GetSlicesForCertificate(
	ctx context.Context, owner, registry, certificateID string, states []int,
) ([]domain.Slice, error) {
	wanted := make([]interface{}, 0, len(states))
	for _, state := range states {
		wanted = append(wanted, state)
	}

	query := badgerhold.
		Where("Owner").Eq(owner).
		And("Registry").Eq(registry).
		And("CertificateID").Eq(certificateID).
		And("State").In(wanted...)

	slices, err := r.findSlices(ctx, query)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].CreatedAt != slices[j].CreatedAt {
			return slices[i].CreatedAt < slices[j].CreatedAt
		}
		return slices[i].Position < slices[j].Position
	})
	return slices, nil
}

func (r sliceRepositoryImpl) UpdateSlice(
	ctx context.Context, id uuid.UUID,
	updateFn func(*domain.Slice) (*domain.Slice, error),
) error {
	currentSlice, err := r.GetSlice(ctx, id)
	if err != nil {
		return err
	}

	updatedSlice, err := updateFn(currentSlice)
	if err != nil {
		return err
	}

	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxUpdate(tx, id, *updatedSlice)
	}
	return r.db.store.Update(id, *updatedSlice)
}

func (r sliceRepositoryImpl) RemoveSlices(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		var err error
		if tx := r.db.getTx(ctx); tx != nil {
			err = r.db.store.TxDelete(tx, id, domain.Slice{})
		} else {
			err = r.db.store.Delete(id, domain.Slice{})
		}
		if err != nil && err != badgerhold.ErrNotFound {
			return err
		}
	}
	return nil
}

func (r sliceRepositoryImpl) positionTaken(
	ctx context.Context, endpointID uuid.UUID, position uint32,
) (bool, error) {
	query := badgerhold.
		Where("EndpointID").Eq(endpointID).
		And("Position").Eq(position)

	slices, err := r.findSlices(ctx, query)
	if err != nil {
		return false, err
	}
	return len(slices) > 0, nil
}

func (r sliceRepositoryImpl) insertSlice(ctx context.Context, slice domain.Slice) error {
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxInsert(tx, slice.ID, &slice)
	}
	return r.db.store.Insert(slice.ID, &slice)
}

func (r sliceRepositoryImpl) findSlices(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Slice, error) {
	var slices []domain.Slice
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxFind(tx, &slices, query)
	} else {
		err = r.db.store.Find(&slices, query)
	}
	return slices, err
}
