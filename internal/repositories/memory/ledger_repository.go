package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
	"github.com/proptech-ledger/ledgerd/internal/utils/pagination"
)

type accountSeqKey struct {
	tenant  domain.TenantID
	account domain.AccountID
}

// LedgerRepository is an in-memory LedgerRepository. It shares no mutex with
// AccountRepository — callers that need both atomic (the ledger engine) rely
// on the AccountRepository's Atomic to serialize a posting end-to-end, since
// in-memory use is single-process and the two repositories are always driven
// from the same goroutine within one Atomic call.
type LedgerRepository struct {
	mu          sync.Mutex
	journals    map[domain.JournalID]domain.Journal
	entries     map[domain.LedgerEntryID]domain.LedgerEntry
	byAccount   map[domain.AccountID][]domain.LedgerEntryID
	nextSeq     map[accountSeqKey]int64
}

// NewLedgerRepository constructs an empty in-memory ledger repository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		journals:  make(map[domain.JournalID]domain.Journal),
		entries:   make(map[domain.LedgerEntryID]domain.LedgerEntry),
		byAccount: make(map[domain.AccountID][]domain.LedgerEntryID),
		nextSeq:   make(map[accountSeqKey]int64),
	}
}

func (r *LedgerRepository) Atomic(ctx context.Context, fn func(ctx context.Context, uow repositories.UnitOfWork) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

// NextSequence, CreateJournal and InsertEntries are called from within the
// ledger engine's posting loop, which is itself guarded by the
// AccountRepository's Atomic — not this repository's. They lock their own
// mutex rather than relying on LedgerRepository.Atomic being on the call
// stack, since the two repositories participate in the same logical
// transaction via separate mutexes.
func (r *LedgerRepository) NextSequence(ctx context.Context, uow repositories.UnitOfWork, tenant domain.TenantID, account domain.AccountID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountSeqKey{tenant, account}
	r.nextSeq[key]++
	return r.nextSeq[key], nil
}

func (r *LedgerRepository) CreateJournal(ctx context.Context, uow repositories.UnitOfWork, journal domain.Journal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journals[journal.ID] = journal
	return nil
}

func (r *LedgerRepository) InsertEntries(ctx context.Context, uow repositories.UnitOfWork, entries []domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
		r.byAccount[e.AccountID] = append(r.byAccount[e.AccountID], e.ID)
	}
	return nil
}

func (r *LedgerRepository) GetJournal(ctx context.Context, tenant domain.TenantID, id domain.JournalID) (domain.Journal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.journals[id]
	if !ok || j.TenantID != tenant {
		return domain.Journal{}, apperrors.ErrNotFound
	}
	return j, nil
}

func (r *LedgerRepository) GetEntry(ctx context.Context, tenant domain.TenantID, id domain.LedgerEntryID) (domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.TenantID != tenant {
		return domain.LedgerEntry{}, apperrors.ErrNotFound
	}
	return e, nil
}

func (r *LedgerRepository) accountEntriesLocked(tenant domain.TenantID, account domain.AccountID) []domain.LedgerEntry {
	ids := r.byAccount[account]
	out := make([]domain.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		e := r.entries[id]
		if e.TenantID == tenant {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

func (r *LedgerRepository) ListEntries(ctx context.Context, tenant domain.TenantID, account domain.AccountID, page repositories.Page) (domain.PagedEntries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.accountEntriesLocked(tenant, account)

	start := 0
	if page.Token != "" {
		fields, err := pagination.DecodeMultiFieldToken(page.Token)
		if err != nil || len(fields) != 1 {
			return domain.PagedEntries{}, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)
		}
		for i, e := range all {
			if string(e.ID) == fields[0] {
				start = i + 1
				break
			}
		}
	}
	size := page.PageSize
	if size <= 0 {
		size = 50
	}
	end := start + size
	hasMore := end < len(all)
	if end > len(all) {
		end = len(all)
	}
	slice := all[start:end]
	next := ""
	if hasMore && len(slice) > 0 {
		next = pagination.EncodeMultiFieldToken(string(slice[len(slice)-1].ID))
	}
	return domain.PagedEntries{Entries: slice, NextToken: next, HasMore: hasMore}, nil
}

func (r *LedgerRepository) ListEntriesInRange(ctx context.Context, tenant domain.TenantID, account domain.AccountID, from, to time.Time) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.accountEntriesLocked(tenant, account)
	var out []domain.LedgerEntry
	for _, e := range all {
		if !e.EffectiveDate.Before(from) && !e.EffectiveDate.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *LedgerRepository) EntryAsOf(ctx context.Context, tenant domain.TenantID, account domain.AccountID, asOf time.Time) (domain.LedgerEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.accountEntriesLocked(tenant, account)
	var best domain.LedgerEntry
	found := false
	for _, e := range all {
		if e.EffectiveDate.After(asOf) {
			break
		}
		best = e
		found = true
	}
	return best, found, nil
}

func (r *LedgerRepository) ListSequenceNumbers(ctx context.Context, tenant domain.TenantID, account domain.AccountID) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.accountEntriesLocked(tenant, account)
	out := make([]int64, 0, len(all))
	for _, e := range all {
		out = append(out, e.SequenceNumber)
	}
	return out, nil
}

func (r *LedgerRepository) SumDirectionalAmounts(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.accountEntriesLocked(tenant, account)
	var sum int64
	for _, e := range all {
		if e.Direction == domain.Debit {
			sum += e.Amount.AmountMinor
		} else {
			sum -= e.Amount.AmountMinor
		}
	}
	return sum, nil
}
