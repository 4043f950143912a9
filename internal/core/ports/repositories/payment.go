package repositories

import (
	"context"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// PaymentIntentRepository is the persistence contract for payment intents.
// The (tenant, idempotency_key) pair is unique; a repository implementation
// must surface a collision as apperrors.ErrConflict.
type PaymentIntentRepository interface {
	Atomic

	Create(ctx context.Context, uow UnitOfWork, intent domain.PaymentIntent) error
	Update(ctx context.Context, uow UnitOfWork, intent domain.PaymentIntent) error

	Get(ctx context.Context, tenant domain.TenantID, id domain.PaymentIntentID) (domain.PaymentIntent, error)
	FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.PaymentIntent, bool, error)
	FindByProviderExternalID(ctx context.Context, provider, externalID string) (domain.PaymentIntent, bool, error)

	// ListProcessingOlderThan lists intents in status processing whose
	// CreatedAt is older than threshold, for provider status sync.
	ListProcessingOlderThan(ctx context.Context, threshold time.Time) ([]domain.PaymentIntent, error)

	// ListForReconciliation lists intents in a settled status within a period
	// for an account's scope, used by bank-transaction matching.
	ListForReconciliation(ctx context.Context, tenant domain.TenantID, statuses []domain.PaymentStatus, from, to time.Time) ([]domain.PaymentIntent, error)
}
