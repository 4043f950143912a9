// Package outbox implements the transactional outbox: a Publisher that
// stages domain events next to the write that produced them, and a
// Processor that polls the store and fans staged envelopes out to RabbitMQ.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// Publisher implements ports.EventPublisher by staging an envelope in the
// outbox store. It never talks to RabbitMQ directly — that is the
// Processor's job, run out-of-band from the request path.
type Publisher struct {
	store repositories.OutboxStore
}

// NewPublisher constructs an outbox-backed EventPublisher.
func NewPublisher(store repositories.OutboxStore) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Publish(ctx context.Context, tenant domain.TenantID, aggregateType, aggregateID string, eventType domain.EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s payload: %w", eventType, err)
	}

	envelope := domain.OutboxEnvelope{
		ID:            uuid.NewString(),
		TenantID:      tenant,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Status:        domain.OutboxPending,
		CreatedAt:     time.Now().UTC(),
	}
	return p.store.Enqueue(ctx, nil, envelope)
}
