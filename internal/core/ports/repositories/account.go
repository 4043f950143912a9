package repositories

import (
	"context"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// AccountRepository is the persistence contract for accounts. Implementations
// must make UpdateBalance an atomic compare-and-swap on Version: if
// expectedVersion does not match the stored version, it returns
// (false, nil) rather than an error, so the ledger engine can retry.
type AccountRepository interface {
	Atomic

	Create(ctx context.Context, uow UnitOfWork, account domain.Account) error
	Get(ctx context.Context, tenant domain.TenantID, id domain.AccountID) (domain.Account, error)

	// GetForUpdate locks and returns every requested account within the
	// given unit of work, so the caller can read a consistent balance/version
	// before computing new balances.
	GetForUpdate(ctx context.Context, uow UnitOfWork, tenant domain.TenantID, ids []domain.AccountID) (map[domain.AccountID]domain.Account, error)

	// UpdateBalance performs an optimistic compare-and-swap: it succeeds only
	// if the stored version equals expectedVersion, bumping the version by one.
	UpdateBalance(ctx context.Context, uow UnitOfWork, id domain.AccountID, newBalanceMinor int64, lastEntryID domain.LedgerEntryID, expectedVersion int64) (bool, error)

	// FindByScope locates the single account of the given type scoped to
	// owner/customer/property, e.g. an owner's operating account.
	FindByScope(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, scope domain.AccountScope) (domain.Account, error)

	// ListByTypeAndMinBalance lists active accounts of a type whose balance is
	// at least minBalanceMinor, used by disbursement's eligible_owners.
	ListByTypeAndMinBalance(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, minBalanceMinor int64) ([]domain.Account, error)
}
