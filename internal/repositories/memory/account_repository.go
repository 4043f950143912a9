// Package memory provides in-memory repository implementations satisfying
// every core/ports/repositories interface. The spec requires the core to be
// exercisable without external storage (§9 design note); these are that
// implementation, used by unit tests and any standalone demo composition.
// They hold everything behind a single mutex — adequate for tests and small
// deployments, never meant to replace the pgsql-backed production path.
package memory

import (
	"context"
	"sync"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// AccountRepository is an in-memory, mutex-guarded AccountRepository. The
// UnitOfWork it hands out carries nothing; Atomic just holds the mutex for
// fn's duration, giving the same all-or-nothing guarantee a real transaction
// would.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]domain.Account
}

// NewAccountRepository constructs an empty in-memory account repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[domain.AccountID]domain.Account)}
}

// Atomic holds the repository's mutex for the duration of fn. Nested calls
// from within fn (e.g. the ledger engine's own GetForUpdate) rely on the
// caller passing the same uow through, never re-entering Atomic.
func (r *AccountRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

func (r *AccountRepository) Create(ctx context.Context, uow repositories.UnitOfWork, account domain.Account) error {
	if _, exists := r.accounts[account.ID]; exists {
		return apperrors.ErrConflict
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, tenant domain.TenantID, id domain.AccountID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok || acc.TenantID != tenant {
		return domain.Account{}, apperrors.ErrNotFound
	}
	return acc, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, uow repositories.UnitOfWork, tenant domain.TenantID, ids []domain.AccountID) (map[domain.AccountID]domain.Account, error) {
	out := make(map[domain.AccountID]domain.Account, len(ids))
	for _, id := range ids {
		acc, ok := r.accounts[id]
		if !ok || acc.TenantID != tenant {
			return nil, apperrors.ErrNotFound
		}
		out[id] = acc
	}
	return out, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, uow repositories.UnitOfWork, id domain.AccountID, newBalanceMinor int64, lastEntryID domain.LedgerEntryID, expectedVersion int64) (bool, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if acc.Version != expectedVersion {
		return false, nil
	}
	acc.BalanceMinor = newBalanceMinor
	acc.LastEntryID = lastEntryID
	acc.EntryCount++
	acc.Version++
	r.accounts[id] = acc
	return true, nil
}

func (r *AccountRepository) FindByScope(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, scope domain.AccountScope) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.TenantID != tenant || acc.Type != accountType {
			continue
		}
		if acc.Scope == scope {
			return acc, nil
		}
	}
	return domain.Account{}, apperrors.ErrNotFound
}

func (r *AccountRepository) ListByTypeAndMinBalance(ctx context.Context, tenant domain.TenantID, accountType domain.AccountType, minBalanceMinor int64) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Account
	for _, acc := range r.accounts {
		if acc.TenantID == tenant && acc.Type == accountType && acc.IsActive() && acc.BalanceMinor >= minBalanceMinor {
			out = append(out, acc)
		}
	}
	return out, nil
}
