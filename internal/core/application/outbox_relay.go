package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/core/ports"
)

// OutboxHandler processes one outbox message. Returning an error leaves the
// message pending, to be retried on a later round; handlers must therefore
// tolerate at-least-once delivery.
type OutboxHandler func(ctx context.Context, payload []byte) error

// OutboxRelay polls the outbox and dispatches pending messages to their
// registered handlers. Messages are dispatched strictly in creation order so
// that per-endpoint notifications arrive in the order they were produced.
type OutboxRelay struct {
	repoManager ports.DbManager
	interval    time.Duration
	batchSize   int
	handlers    map[string]OutboxHandler
}

// NewOutboxRelay returns a relay polling the outbox at the given interval.
func NewOutboxRelay(
	repoManager ports.DbManager, interval time.Duration, batchSize int,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxRelay{
		repoManager: repoManager,
		interval:    interval,
		batchSize:   batchSize,
		handlers:    make(map[string]OutboxHandler),
	}
}

// RegisterHandler binds a message type to its handler. Must be called before
// Start.
func (r *OutboxRelay) RegisterHandler(messageType string, handler OutboxHandler) {
	r.handlers[messageType] = handler
}

// Start blocks dispatching rounds until the context is canceled.
func (r *OutboxRelay) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.DispatchPending(ctx); err != nil {
				log.WithError(err).Warn("outbox: dispatch round failed")
			}
		}
	}
}

// DispatchPending runs one dispatching round. Exposed so tests and callers
// that just planned work can flush the outbox without waiting for a tick.
func (r *OutboxRelay) DispatchPending(ctx context.Context) error {
	v, err := r.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			return r.repoManager.OutboxRepository().GetPendingMessages(ctx, r.batchSize)
		},
	)
	if err != nil {
		return err
	}
	messages := v.([]domain.OutboxMessage)

	now := time.Now()
	for i := range messages {
		msg := messages[i]
		if !msg.Due(now) {
			continue
		}

		handler, ok := r.handlers[msg.Type]
		if !ok {
			log.Warnf("outbox: no handler for message type %q, skipping %s", msg.Type, msg.ID)
			continue
		}

		if err := handler(ctx, msg.Payload); err != nil {
			log.WithError(err).Warnf("outbox: dispatching %s message %s failed", msg.Type, msg.ID)
			continue
		}

		if _, err := r.repoManager.RunTransaction(
			ctx, false,
			func(ctx context.Context) (interface{}, error) {
				return nil, r.repoManager.OutboxRepository().MarkDispatched(ctx, msg.ID)
			},
		); err != nil {
			return err
		}
	}
	return nil
}

// ResumeRoutingPlanHandler returns the handler resuming suspended routing
// plans.
func ResumeRoutingPlanHandler(orchestrator Orchestrator) OutboxHandler {
	return func(ctx context.Context, payload []byte) error {
		var resume ResumeRoutingPlanPayload
		if err := json.Unmarshal(payload, &resume); err != nil {
			log.WithError(err).Error("outbox: dropping malformed resume payload")
			return nil
		}
		return orchestrator.ExecutePlan(ctx, resume.PlanID)
	}
}

// NotifyReceiverHandler returns the handler delivering deposit notifications
// to their receiving endpoint, through the remote notifier for external
// endpoints and the local one for the wallet's own.
func NotifyReceiverHandler(
	repoManager ports.DbManager, remote, local SliceNotifier,
) OutboxHandler {
	return func(ctx context.Context, payload []byte) error {
		var notify NotifyReceiverPayload
		if err := json.Unmarshal(payload, &notify); err != nil {
			log.WithError(err).Error("outbox: dropping malformed notification payload")
			return nil
		}

		v, err := repoManager.RunTransaction(
			ctx, true,
			func(ctx context.Context) (interface{}, error) {
				return repoManager.EndpointRepository().GetEndpoint(ctx, notify.EndpointID)
			},
		)
		if err != nil {
			return err
		}
		endpoint := v.(*domain.Endpoint)

		notifier := local
		if endpoint.IsRemote() {
			notifier = remote
		}

		err = notifier.NotifySliceDeposited(ctx, endpoint, notify.Notification)
		// A position conflict means the very same deposit already landed, so
		// the redelivered notification is done.
		if errors.Is(err, domain.ErrPositionAlreadyTaken) {
			return nil
		}
		return err
	}
}
