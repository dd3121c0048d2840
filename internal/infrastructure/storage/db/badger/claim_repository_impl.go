package dbbadger

import (
	"context"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type claimRepositoryImpl struct {
	db *DbManager
}

func newClaimRepositoryImpl(db *DbManager) domain.ClaimRepository {
	return claimRepositoryImpl{db: db}
}

func (r claimRepositoryImpl) AddClaim(ctx context.Context, claim *domain.Claim) error {
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxInsert(tx, claim.ID, claim)
	}
	return r.db.store.Insert(claim.ID, claim)
}

func (r claimRepositoryImpl) GetClaim(
	ctx context.Context, id uuid.UUID,
) (*domain.Claim, error) {
	var claim domain.Claim
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxGet(tx, id, &claim)
	} else {
		err = r.db.store.Get(id, &claim)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func (r claimRepositoryImpl) UpdateClaim(
	ctx context.Context, id uuid.UUID,
	updateFn func(*domain.Claim) (*domain.Claim, error),
) error {
	currentClaim, err := r.GetClaim(ctx, id)
	if err != nil {
		return err
	}

	updatedClaim, err := updateFn(currentClaim)
	if err != nil {
		return err
	}

	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxUpdate(tx, id, *updatedClaim)
	}
	return r.db.store.Update(id, *updatedClaim)
}
