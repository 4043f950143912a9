package repositories

import (
	"context"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// DisbursementRepository is the persistence contract for owner payouts.
type DisbursementRepository interface {
	Atomic

	Create(ctx context.Context, uow UnitOfWork, d domain.Disbursement) error
	Update(ctx context.Context, uow UnitOfWork, d domain.Disbursement) error

	Get(ctx context.Context, tenant domain.TenantID, id domain.DisbursementID) (domain.Disbursement, error)
	FindByIdempotencyKey(ctx context.Context, tenant domain.TenantID, key string) (domain.Disbursement, bool, error)
}
