package repositories

import (
	"context"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// StatementRepository is the persistence contract for statements. At most
// one statement may exist per (tenant, account, type, period_start,
// period_end); FindExisting is how the statement builder enforces that.
type StatementRepository interface {
	Create(ctx context.Context, statement domain.Statement) error
	Update(ctx context.Context, statement domain.Statement) error

	Get(ctx context.Context, tenant domain.TenantID, id domain.StatementID) (domain.Statement, error)
	FindExisting(ctx context.Context, tenant domain.TenantID, account domain.AccountID, t domain.StatementType, periodStart, periodEnd time.Time) (domain.Statement, bool, error)
}
