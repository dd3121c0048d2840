package dbbadger

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type outboxRepositoryImpl struct {
	db *DbManager
}

func newOutboxRepositoryImpl(db *DbManager) domain.OutboxRepository {
	return outboxRepositoryImpl{db: db}
}

func (r outboxRepositoryImpl) AddMessage(
	ctx context.Context, message *domain.OutboxMessage,
) error {
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxInsert(tx, message.ID, message)
	}
	return r.db.store.Insert(message.ID, message)
}

func (r outboxRepositoryImpl) GetPendingMessages(
	ctx context.Context, limit int,
) ([]domain.OutboxMessage, error) {
	query := badgerhold.Where("Dispatched").Eq(false)

	var messages []domain.OutboxMessage
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxFind(tx, &messages, query)
	} else {
		err = r.db.store.Find(&messages, query)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt < messages[j].CreatedAt
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (r outboxRepositoryImpl) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	var message domain.OutboxMessage
	var err error
	tx := r.db.getTx(ctx)
	if tx != nil {
		err = r.db.store.TxGet(tx, id, &message)
	} else {
		err = r.db.store.Get(id, &message)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}

	message.MarkDispatched()
	if tx != nil {
		return r.db.store.TxUpdate(tx, id, message)
	}
	return r.db.store.Update(id, message)
}
