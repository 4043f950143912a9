package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// maxConcurrencyRetries bounds the number of times post_journal re-reads and
// re-applies a posting after an optimistic-lock conflict before surfacing
// apperrors.ErrConcurrency.
const maxConcurrencyRetries = 5

// LedgerEngine implements the immutable double-entry ledger: atomic journal
// posting, materialised balances with optimistic locking, sequence
// integrity, and correction/void by compensating entries.
type LedgerEngine struct {
	BaseService
	accounts repositories.AccountRepository
	ledger   repositories.LedgerRepository
	events   ports.EventPublisher
}

// NewLedgerEngine wires the ledger engine to its repositories and event
// publisher.
func NewLedgerEngine(accounts repositories.AccountRepository, ledger repositories.LedgerRepository, events ports.EventPublisher) *LedgerEngine {
	return &LedgerEngine{accounts: accounts, ledger: ledger, events: events}
}

// PostJournal validates and atomically posts a balanced set of ledger
// entries, retrying on optimistic-lock conflicts up to maxConcurrencyRetries
// times.
func (e *LedgerEngine) PostJournal(ctx context.Context, req domain.PostJournalRequest) (domain.JournalResult, error) {
	if err := validateBalanced(req.Lines); err != nil {
		return domain.JournalResult{}, err
	}
	if len(req.Lines) == 0 {
		return domain.JournalResult{}, fmt.Errorf("%w: empty_journal", apperrors.ErrValidation)
	}

	var result domain.JournalResult
	var lastErr error
	for attempt := 0; attempt < maxConcurrencyRetries; attempt++ {
		res, err := e.attemptPostJournal(ctx, req)
		if err == nil {
			result = res
			lastErr = nil
			break
		}
		lastErr = err
		if !apperrors.IsConcurrencyConflict(err) {
			return domain.JournalResult{}, err
		}
		e.LogDebug(ctx, "ledger: retrying journal post after concurrency conflict", "attempt", attempt+1)
	}
	if lastErr != nil {
		return domain.JournalResult{}, fmt.Errorf("%w: concurrency_conflict after %d attempts: %v", apperrors.ErrConcurrency, maxConcurrencyRetries, lastErr)
	}

	if err := e.publishJournalEvents(ctx, result); err != nil {
		e.LogError(ctx, err, "ledger: failed publishing journal events", "journal_id", result.Journal.ID)
	}
	return result, nil
}

func validateBalanced(lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	var debits, credits int64
	currency := lines[0].Amount.Currency
	for _, l := range lines {
		if l.Amount.Currency != currency {
			return fmt.Errorf("%w: currency_mismatch", apperrors.ErrValidation)
		}
		switch l.Direction {
		case domain.Debit:
			debits += l.Amount.AmountMinor
		case domain.Credit:
			credits += l.Amount.AmountMinor
		default:
			return fmt.Errorf("%w: invalid direction %q", apperrors.ErrValidation, l.Direction)
		}
	}
	if debits != credits {
		return fmt.Errorf("%w: unbalanced_journal (debits=%d credits=%d)", apperrors.ErrValidation, debits, credits)
	}
	return nil
}

func (e *LedgerEngine) attemptPostJournal(ctx context.Context, req domain.PostJournalRequest) (domain.JournalResult, error) {
	var result domain.JournalResult

	err := e.accounts.Atomic(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		accountIDs := distinctAccountIDs(req.Lines)
		accounts, err := e.accounts.GetForUpdate(ctx, uow, req.TenantID, accountIDs)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		journal := domain.Journal{
			ID:            domain.NewJournalID(),
			TenantID:      req.TenantID,
			EffectiveDate: req.EffectiveDate,
			Description:   req.Description,
			Currency:      req.Currency,
			Status:        domain.JournalPosted,
			AuditFields: domain.AuditFields{
				CreatedAt: now, CreatedBy: req.CreatedBy,
				LastUpdatedAt: now, LastUpdatedBy: req.CreatedBy,
			},
		}

		entries := make([]domain.LedgerEntry, 0, len(req.Lines))
		for _, line := range req.Lines {
			account, ok := accounts[line.AccountID]
			if !ok {
				return fmt.Errorf("%w: account_not_found %s", apperrors.ErrNotFound, line.AccountID)
			}
			if !account.IsActive() {
				return fmt.Errorf("%w: account_inactive %s", apperrors.ErrState, account.ID)
			}
			if line.Amount.Currency != account.Currency {
				return fmt.Errorf("%w: currency_mismatch for account %s", apperrors.ErrValidation, account.ID)
			}

			seq, err := e.ledger.NextSequence(ctx, uow, req.TenantID, account.ID)
			if err != nil {
				return err
			}

			delta := line.Amount.AmountMinor
			if line.Direction == domain.Credit {
				delta = -delta
			}
			newBalance := account.BalanceMinor + delta

			entry := domain.LedgerEntry{
				ID:              domain.NewLedgerEntryID(),
				TenantID:        req.TenantID,
				AccountID:       account.ID,
				JournalID:       journal.ID,
				Type:            line.Type,
				Direction:       line.Direction,
				Amount:          line.Amount,
				BalanceAfter:    domain.Money{AmountMinor: newBalance, Currency: account.Currency},
				SequenceNumber:  seq,
				EffectiveDate:   req.EffectiveDate,
				PostedAt:        now,
				Description:     line.Description,
				Reference:       line.Reference,
				PaymentIntentID: line.PaymentIntentID,
				LeaseID:         line.LeaseID,
				PropertyID:      line.PropertyID,
				UnitID:          line.UnitID,
				CorrectionOf:    line.CorrectionOf,
				CreatedBy:       req.CreatedBy,
			}
			entries = append(entries, entry)
			journal.EntryIDs = append(journal.EntryIDs, entry.ID)

			account.BalanceMinor = newBalance
			account.LastEntryID = entry.ID
			account.EntryCount++
			account.Version++
			accounts[line.AccountID] = account

			ok, err = e.accounts.UpdateBalance(ctx, uow, account.ID, newBalance, entry.ID, account.Version-1)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrConcurrency
			}
		}

		if err := e.ledger.CreateJournal(ctx, uow, journal); err != nil {
			return err
		}
		if err := e.ledger.InsertEntries(ctx, uow, entries); err != nil {
			return err
		}

		result = domain.JournalResult{Journal: journal, Entries: entries}
		return nil
	})

	return result, err
}

func (e *LedgerEngine) publishJournalEvents(ctx context.Context, result domain.JournalResult) error {
	if e.events == nil {
		return nil
	}
	entriesEvt := domain.LedgerEntriesCreatedEvent{
		TenantID:  result.Journal.TenantID,
		JournalID: result.Journal.ID,
		Entries:   result.Entries,
		PostedAt:  time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, result.Journal.TenantID, "journal", string(result.Journal.ID), domain.EventLedgerEntriesCreated, entriesEvt); err != nil {
		return err
	}

	seen := map[domain.AccountID]domain.LedgerEntry{}
	for _, entry := range result.Entries {
		seen[entry.AccountID] = entry // last entry per account wins
	}
	for accountID, entry := range seen {
		evt := domain.AccountBalanceUpdatedEvent{
			TenantID:    result.Journal.TenantID,
			AccountID:   accountID,
			NewBalance:  entry.BalanceAfter,
			LastEntryID: entry.ID,
		}
		if err := e.events.Publish(ctx, result.Journal.TenantID, "account", string(accountID), domain.EventAccountBalanceUpdated, evt); err != nil {
			return err
		}
	}
	return nil
}

func distinctAccountIDs(lines []domain.JournalLine) []domain.AccountID {
	seen := make(map[domain.AccountID]struct{}, len(lines))
	ids := make([]domain.AccountID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

// Balance returns an account's current materialised balance.
func (e *LedgerEngine) Balance(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (domain.Money, error) {
	acc, err := e.accounts.Get(ctx, tenant, account)
	if err != nil {
		return domain.Money{}, err
	}
	return acc.Balance(), nil
}

// BalanceAsOf returns the account's balance as of a point in time, derived
// from the last entry effective at or before t.
func (e *LedgerEngine) BalanceAsOf(ctx context.Context, tenant domain.TenantID, account domain.AccountID, t time.Time) (domain.Money, error) {
	acc, err := e.accounts.Get(ctx, tenant, account)
	if err != nil {
		return domain.Money{}, err
	}
	entry, ok, err := e.ledger.EntryAsOf(ctx, tenant, account, t)
	if err != nil {
		return domain.Money{}, err
	}
	if !ok {
		return domain.ZeroMoney(acc.Currency), nil
	}
	return entry.BalanceAfter, nil
}

// Entries returns a page of an account's ledger entries.
func (e *LedgerEngine) Entries(ctx context.Context, tenant domain.TenantID, account domain.AccountID, page repositories.Page) (domain.PagedEntries, error) {
	return e.ledger.ListEntries(ctx, tenant, account, page)
}

// VerifyAccountBalance compares the materialised balance to the sum
// recomputed from entries, reporting any drift.
func (e *LedgerEngine) VerifyAccountBalance(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (domain.VerificationReport, error) {
	acc, err := e.accounts.Get(ctx, tenant, account)
	if err != nil {
		return domain.VerificationReport{}, err
	}
	recomputed, err := e.ledger.SumDirectionalAmounts(ctx, tenant, account)
	if err != nil {
		return domain.VerificationReport{}, err
	}
	return domain.VerificationReport{
		AccountID:           account,
		MaterialisedBalance: acc.Balance(),
		RecomputedBalance:   domain.Money{AmountMinor: recomputed, Currency: acc.Currency},
		Drift:               acc.BalanceMinor - recomputed,
		Matches:             acc.BalanceMinor == recomputed,
	}, nil
}

// VerifySequence reports any gap or duplicate in an account's sequence
// numbers; the valid range is {1, ..., entry_count}.
func (e *LedgerEngine) VerifySequence(ctx context.Context, tenant domain.TenantID, account domain.AccountID) (domain.SequenceReport, error) {
	acc, err := e.accounts.Get(ctx, tenant, account)
	if err != nil {
		return domain.SequenceReport{}, err
	}
	nums, err := e.ledger.ListSequenceNumbers(ctx, tenant, account)
	if err != nil {
		return domain.SequenceReport{}, err
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	seen := make(map[int64]int, len(nums))
	var duplicates []int64
	for _, n := range nums {
		seen[n]++
		if seen[n] == 2 {
			duplicates = append(duplicates, n)
		}
	}

	var gaps []int64
	present := make(map[int64]struct{}, len(nums))
	for _, n := range nums {
		present[n] = struct{}{}
	}
	for i := int64(1); i <= acc.EntryCount; i++ {
		if _, ok := present[i]; !ok {
			gaps = append(gaps, i)
		}
	}

	return domain.SequenceReport{
		AccountID:  account,
		EntryCount: acc.EntryCount,
		Gaps:       gaps,
		Duplicates: duplicates,
		Valid:      len(gaps) == 0 && len(duplicates) == 0,
	}, nil
}

// Statement returns a PeriodView over an account's activity for [from, to].
func (e *LedgerEngine) Statement(ctx context.Context, tenant domain.TenantID, account domain.AccountID, from, to time.Time) (domain.PeriodView, error) {
	opening, err := e.BalanceAsOf(ctx, tenant, account, from.Add(-time.Millisecond))
	if err != nil {
		return domain.PeriodView{}, err
	}
	entries, err := e.ledger.ListEntriesInRange(ctx, tenant, account, from, to)
	if err != nil {
		return domain.PeriodView{}, err
	}
	closing := opening
	for _, entry := range entries {
		closing = entry.BalanceAfter
	}
	return domain.PeriodView{
		AccountID:      account,
		From:           from,
		To:             to,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Entries:        entries,
	}, nil
}

// PostCorrection posts a reversal of the original entry plus a fresh entry
// at the corrected amount, both carrying correction_of = original entry id.
// Neither mutates the original entry.
func (e *LedgerEngine) PostCorrection(ctx context.Context, tenant domain.TenantID, originalEntryID domain.LedgerEntryID, correctedAmount domain.Money, reason, createdBy string) (domain.JournalResult, error) {
	original, err := e.ledger.GetEntry(ctx, tenant, originalEntryID)
	if err != nil {
		return domain.JournalResult{}, err
	}

	reversalDirection := oppositeDirection(original.Direction)
	lines := []domain.JournalLine{
		{
			AccountID:    original.AccountID,
			Direction:    reversalDirection,
			Amount:       original.Amount,
			Type:         original.Type,
			Description:  fmt.Sprintf("correction reversal: %s", reason),
			Reference:    string(originalEntryID),
			CorrectionOf: originalEntryID,
		},
		{
			AccountID:    original.AccountID,
			Direction:    original.Direction,
			Amount:       correctedAmount,
			Type:         original.Type,
			Description:  fmt.Sprintf("correction: %s", reason),
			Reference:    string(originalEntryID),
			CorrectionOf: originalEntryID,
		},
	}

	return e.PostJournal(ctx, domain.PostJournalRequest{
		TenantID:      tenant,
		EffectiveDate: time.Now().UTC(),
		Description:   fmt.Sprintf("correction of %s: %s", originalEntryID, reason),
		Currency:      original.Amount.Currency,
		Lines:         lines,
		CreatedBy:     createdBy,
	})
}

// VoidEntry posts a single reversal line compensating the original entry.
func (e *LedgerEngine) VoidEntry(ctx context.Context, tenant domain.TenantID, originalEntryID domain.LedgerEntryID, reason, createdBy string) (domain.JournalResult, error) {
	original, err := e.ledger.GetEntry(ctx, tenant, originalEntryID)
	if err != nil {
		return domain.JournalResult{}, err
	}

	lines := []domain.JournalLine{
		{
			AccountID:    original.AccountID,
			Direction:    oppositeDirection(original.Direction),
			Amount:       original.Amount,
			Type:         original.Type,
			Description:  fmt.Sprintf("void: %s", reason),
			Reference:    string(originalEntryID),
			CorrectionOf: originalEntryID,
		},
	}

	return e.PostJournal(ctx, domain.PostJournalRequest{
		TenantID:      tenant,
		EffectiveDate: time.Now().UTC(),
		Description:   fmt.Sprintf("void of %s: %s", originalEntryID, reason),
		Currency:      original.Amount.Currency,
		Lines:         lines,
		CreatedBy:     createdBy,
	})
}

func oppositeDirection(d domain.Direction) domain.Direction {
	if d == domain.Debit {
		return domain.Credit
	}
	return domain.Debit
}
