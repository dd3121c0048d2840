package domain

import (
	"context"

	"github.com/google/uuid"
)

// OutboxRepository is the storage contract for the outbox. Messages are
// added inside the same transaction as the state change that requires the
// follow-up, and read back by the relay outside of it.
type OutboxRepository interface {
	AddMessage(ctx context.Context, message *OutboxMessage) error
	// GetPendingMessages returns up to limit undispatched messages in
	// creation order.
	GetPendingMessages(ctx context.Context, limit int) ([]OutboxMessage, error)
	// MarkDispatched flags a message as delivered.
	MarkDispatched(ctx context.Context, id uuid.UUID) error
}
