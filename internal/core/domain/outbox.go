package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// OutboxTypeNotifyReceiver asks the relay to deliver a deposited slice
	// to the receiving endpoint's wallet.
	OutboxTypeNotifyReceiver = "notify-receiver"
	// OutboxTypeResumeRoutingPlan asks the relay to resume a suspended
	// routing plan, typically one waiting for a registry commitment.
	OutboxTypeResumeRoutingPlan = "resume-routing-plan"
)

// OutboxMessage is follow-on work recorded in the same local transaction as
// the state change that produced it. The relay dispatches it asynchronously
// at least once; it is never dropped.
type OutboxMessage struct {
	ID         uuid.UUID
	Type       string
	Payload    []byte
	CreatedAt  int64
	NotBefore  int64
	Dispatched bool
}

// NewOutboxMessage returns a pending outbox message.
func NewOutboxMessage(messageType string, payload []byte) *OutboxMessage {
	return &OutboxMessage{
		ID:        uuid.New(),
		Type:      messageType,
		Payload:   payload,
		CreatedAt: time.Now().UnixNano(),
	}
}

// NewDelayedOutboxMessage returns a pending outbox message that the relay
// must not dispatch before the given delay elapsed. Used to back off
// between routing plan resumptions.
func NewDelayedOutboxMessage(
	messageType string, payload []byte, delay time.Duration,
) *OutboxMessage {
	m := NewOutboxMessage(messageType, payload)
	m.NotBefore = time.Now().Add(delay).UnixNano()
	return m
}

// Due returns whether the message may be dispatched at the given time.
func (m *OutboxMessage) Due(now time.Time) bool {
	return m.NotBefore <= now.UnixNano()
}

// MarkDispatched flags the message as delivered.
func (m *OutboxMessage) MarkDispatched() {
	m.Dispatched = true
}
