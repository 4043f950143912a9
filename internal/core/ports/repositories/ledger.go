package repositories

import (
	"context"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

// Page requests a bounded, token-cursored slice of ledger entries.
type Page struct {
	Token    string
	PageSize int
}

// LedgerRepository is the persistence contract for journals and ledger
// entries. NextSequence and InsertEntries must be called within the same
// UnitOfWork as the account balance updates they accompany, so a journal's
// entries and its accounts' new balances commit or roll back together.
type LedgerRepository interface {
	Atomic

	// NextSequence allocates and returns the next sequence number for
	// (tenant, account), monotonically increasing and gapless.
	NextSequence(ctx context.Context, uow UnitOfWork, tenant domain.TenantID, account domain.AccountID) (int64, error)

	CreateJournal(ctx context.Context, uow UnitOfWork, journal domain.Journal) error
	InsertEntries(ctx context.Context, uow UnitOfWork, entries []domain.LedgerEntry) error

	GetJournal(ctx context.Context, tenant domain.TenantID, id domain.JournalID) (domain.Journal, error)
	GetEntry(ctx context.Context, tenant domain.TenantID, id domain.LedgerEntryID) (domain.LedgerEntry, error)

	// ListEntries returns a page of an account's entries ordered by
	// sequence_number ascending.
	ListEntries(ctx context.Context, tenant domain.TenantID, account domain.AccountID, page Page) (domain.PagedEntries, error)

	// ListEntriesInRange returns every entry with effective_date in
	// [from, to], ordered by sequence_number ascending.
	ListEntriesInRange(ctx context.Context, tenant domain.TenantID, account domain.AccountID, from, to time.Time) ([]domain.LedgerEntry, error)

	// EntryAsOf returns the last entry (by sequence_number) with
	// effective_date <= asOf, or ok=false if the account has no such entry.
	EntryAsOf(ctx context.Context, tenant domain.TenantID, account domain.AccountID, asOf time.Time) (entry domain.LedgerEntry, ok bool, err error)

	// ListSequenceNumbers returns every sequence number stored for the
	// account, used by verify_sequence.
	ListSequenceNumbers(ctx context.Context, tenant domain.TenantID, account domain.AccountID) ([]int64, error)

	// SumDirectionalAmounts recomputes an account's balance directly from its
	// entries (debit adds, credit subtracts), used by verify_account_balance.
	SumDirectionalAmounts(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (int64, error)
}
