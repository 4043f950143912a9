package ports

import (
	"context"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// EventPublisher is injected into every component that produces domain
// events; wiring a concrete implementation happens only at the composition
// root (cmd/ledgerd). The outbox package is the production implementation:
// Publish stages an envelope in the same transaction as the domain write,
// and a separate processor fans it out.
type EventPublisher interface {
	Publish(ctx context.Context, tenant domain.TenantID, aggregateType, aggregateID string, eventType domain.EventType, payload any) error
}
