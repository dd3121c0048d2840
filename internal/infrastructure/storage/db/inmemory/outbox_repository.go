package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type outboxRepository struct {
	lock     *sync.RWMutex
	messages map[uuid.UUID]*domain.OutboxMessage
}

func newOutboxRepository() *outboxRepository {
	return &outboxRepository{
		lock:     &sync.RWMutex{},
		messages: make(map[uuid.UUID]*domain.OutboxMessage),
	}
}

func (r *outboxRepository) AddMessage(_ context.Context, message *domain.OutboxMessage) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	m := *message
	r.messages[message.ID] = &m
	return nil
}

func (r *outboxRepository) GetPendingMessages(
	_ context.Context, limit int,
) ([]domain.OutboxMessage, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	pending := make([]domain.OutboxMessage, 0)
	for _, message := range r.messages {
		if !message.Dispatched {
			pending = append(pending, *message)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt < pending[j].CreatedAt
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepository) MarkDispatched(_ context.Context, id uuid.UUID) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	message, ok := r.messages[id]
	if !ok {
		return nil
	}
	message.MarkDispatched()
	return nil
}
