package dbbadger

import (
	"context"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

const accountCounterKey = "hd-account-counter"

// accountCounter tracks the next free HD account for wallet endpoints.
type accountCounter struct {
	Next uint32
}

type endpointRepositoryImpl struct {
	db *DbManager
}

func newEndpointRepositoryImpl(db *DbManager) domain.EndpointRepository {
	return endpointRepositoryImpl{db: db}
}

func (r endpointRepositoryImpl) AddEndpoint(
	ctx context.Context, endpoint *domain.Endpoint,
) error {
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxInsert(tx, endpoint.ID, endpoint)
	}
	return r.db.store.Insert(endpoint.ID, endpoint)
}

func (r endpointRepositoryImpl) GetEndpoint(
	ctx context.Context, id uuid.UUID,
) (*domain.Endpoint, error) {
	var endpoint domain.Endpoint
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxGet(tx, id, &endpoint)
	} else {
		err = r.db.store.Get(id, &endpoint)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrEndpointNotFound
		}
		return nil, err
	}
	return &endpoint, nil
}

func (r endpointRepositoryImpl) GetEndpointsByOwner(
	ctx context.Context, owner string,
) ([]domain.Endpoint, error) {
	query := badgerhold.Where("Owner").Eq(owner)

	var endpoints []domain.Endpoint
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxFind(tx, &endpoints, query)
	} else {
		err = r.db.store.Find(&endpoints, query)
	}
	return endpoints, err
}

func (r endpointRepositoryImpl) NextPosition(
	ctx context.Context, id uuid.UUID,
) (uint32, error) {
	endpoint, err := r.GetEndpoint(ctx, id)
	if err != nil {
		return 0, err
	}

	position := endpoint.NextPosition
	endpoint.NextPosition++

	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxUpdate(tx, id, *endpoint)
	} else {
		err = r.db.store.Update(id, *endpoint)
	}
	if err != nil {
		return 0, err
	}
	return position, nil
}

func (r endpointRepositoryImpl) NextAccount(ctx context.Context) (uint32, error) {
	tx := r.db.getTx(ctx)

	var counter accountCounter
	var err error
	if tx != nil {
		err = r.db.store.TxGet(tx, accountCounterKey, &counter)
	} else {
		err = r.db.store.Get(accountCounterKey, &counter)
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return 0, err
	}

	account := counter.Next
	counter.Next++

	if tx != nil {
		err = r.db.store.TxUpsert(tx, accountCounterKey, counter)
	} else {
		err = r.db.store.Upsert(accountCounterKey, counter)
	}
	if err != nil {
		return 0, err
	}
	return account, nil
}
