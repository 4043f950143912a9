package repositories

import (
	"context"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// OutboxStore is the persistence contract for the event outbox. Enqueue must
// be called within the same UnitOfWork as the domain write that produced the
// event, so the event and its cause commit or roll back together. The
// remaining methods are used by the standalone outbox processor and do not
// participate in a caller-supplied UnitOfWork.
type OutboxStore interface {
	Enqueue(ctx context.Context, uow UnitOfWork, envelope domain.OutboxEnvelope) error

	// LockBatch claims up to limit pending/due-for-retry envelopes for owner,
	// holding the lock until ttl elapses.
	LockBatch(ctx context.Context, owner string, limit int, ttl time.Duration) ([]domain.OutboxEnvelope, error)

	MarkPublished(ctx context.Context, id string) error

	// MarkFailed records a publish failure. Implementations increment
	// retry_count, compute next_retry_at via domain.NextBackoff, and move the
	// envelope to dead_letter once retry_count reaches domain.MaxOutboxRetries.
	MarkFailed(ctx context.Context, id string, lastError string) error
}
