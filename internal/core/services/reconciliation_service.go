package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// defaultProcessingAge is how long a payment intent can sit in processing
// before the provider status sync pass queries the provider for it.
const defaultProcessingAge = 30 * time.Minute

// ReconciliationEngine performs the three independent reconciliation
// activities: ledger self-verification, provider status sync, and fuzzy
// bank-transaction matching. It never mutates ledger state directly; every
// discrepancy it finds is surfaced as an exception or driven through the
// orchestrator's own state machine.
type ReconciliationEngine struct {
	BaseService
	ledger     *LedgerEngine
	payments   repositories.PaymentIntentRepository
	providers  ports.ProviderRegistry
	events     ports.EventPublisher
	thresholds domain.MatchingThresholds
}

// NewReconciliationEngine wires the reconciliation engine to its
// collaborators. thresholds configures the bank-matching scorer; pass
// domain.DefaultMatchingThresholds() for the spec's suggested defaults.
func NewReconciliationEngine(ledger *LedgerEngine, payments repositories.PaymentIntentRepository, providers ports.ProviderRegistry, events ports.EventPublisher, thresholds domain.MatchingThresholds) *ReconciliationEngine {
	return &ReconciliationEngine{ledger: ledger, payments: payments, providers: providers, events: events, thresholds: thresholds}
}

// LedgerSelfCheck compares each given account's materialised balance and
// sequence integrity against its recomputed entries, emitting a
// ReconciliationExceptionEvent for every account that disagrees.
func (r *ReconciliationEngine) LedgerSelfCheck(ctx context.Context, tenant domain.TenantID, accounts []domain.AccountID) ([]domain.ReconciliationException, error) {
	var exceptions []domain.ReconciliationException

	for _, accountID := range accounts {
		balanceReport, err := r.ledger.VerifyAccountBalance(ctx, tenant, accountID)
		if err != nil {
			return nil, err
		}
		if !balanceReport.Matches {
			exc := domain.ReconciliationException{
				Kind:        domain.ExceptionBalanceDrift,
				AccountID:   accountID,
				Detail:      fmt.Sprintf("materialised=%d recomputed=%d", balanceReport.MaterialisedBalance.AmountMinor, balanceReport.RecomputedBalance.AmountMinor),
				Discrepancy: balanceReport.Drift,
			}
			exceptions = append(exceptions, exc)
			r.emitException(ctx, tenant, exc)
		}

		seqReport, err := r.ledger.VerifySequence(ctx, tenant, accountID)
		if err != nil {
			return nil, err
		}
		if len(seqReport.Gaps) > 0 {
			exc := domain.ReconciliationException{Kind: domain.ExceptionSequenceGap, AccountID: accountID, Detail: fmt.Sprintf("gaps=%v", seqReport.Gaps)}
			exceptions = append(exceptions, exc)
			r.emitException(ctx, tenant, exc)
		}
		if len(seqReport.Duplicates) > 0 {
			exc := domain.ReconciliationException{Kind: domain.ExceptionSequenceDuplicate, AccountID: accountID, Detail: fmt.Sprintf("duplicates=%v", seqReport.Duplicates)}
			exceptions = append(exceptions, exc)
			r.emitException(ctx, tenant, exc)
		}
	}
	return exceptions, nil
}

// SyncProviderStatus re-queries the provider for every intent stuck in
// processing longer than maxAge (defaultProcessingAge if zero) and, if the
// authoritative status disagrees with the locally recorded one, drives the
// intent through the orchestrator's state machine as if the provider had
// delivered a webhook.
func (r *ReconciliationEngine) SyncProviderStatus(ctx context.Context, orchestrator *PaymentOrchestrator, maxAge time.Duration) ([]domain.ReconciliationException, error) {
	if maxAge <= 0 {
		maxAge = defaultProcessingAge
	}
	threshold := time.Now().UTC().Add(-maxAge)

	stale, err := r.payments.ListProcessingOlderThan(ctx, threshold)
	if err != nil {
		return nil, err
	}

	var exceptions []domain.ReconciliationException
	for _, intent := range stale {
		provider, err := r.providers.ByName(intent.ProviderName)
		if err != nil {
			r.LogError(ctx, err, "reconciliation: cannot resolve provider for stale intent", "intent_id", intent.ID, "provider", intent.ProviderName)
			continue
		}
		status, err := provider.GetPaymentIntentStatus(ctx, intent.ExternalID)
		if err != nil {
			r.LogError(ctx, err, "reconciliation: provider status query failed", "intent_id", intent.ID)
			continue
		}

		outcome, hasOutcome := providerStatusToOutcome(status.Status)
		if !hasOutcome {
			continue
		}

		if err := orchestrator.HandleWebhook(ctx, intent.ProviderName, intent.ExternalID, outcome, status.ReceiptURL, status.FailureReason); err != nil {
			exc := domain.ReconciliationException{
				Kind:      domain.ExceptionProviderStatusMismatch,
				AccountID: domain.AccountID(""),
				Detail:    fmt.Sprintf("intent=%s provider_status=%s err=%v", intent.ID, status.Status, err),
			}
			exceptions = append(exceptions, exc)
			r.emitException(ctx, intent.TenantID, exc)
		}
	}
	return exceptions, nil
}

func providerStatusToOutcome(status string) (ports.WebhookOutcome, bool) {
	switch status {
	case "succeeded":
		return ports.WebhookSucceeded, true
	case "failed":
		return ports.WebhookFailed, true
	case "cancelled":
		return ports.WebhookCancelled, true
	default:
		return "", false
	}
}

func (r *ReconciliationEngine) emitException(ctx context.Context, tenant domain.TenantID, exc domain.ReconciliationException) {
	if r.events == nil {
		return
	}
	evt := domain.ReconciliationExceptionEvent{TenantID: tenant, AccountID: exc.AccountID, Exception: exc}
	if err := r.events.Publish(ctx, tenant, "reconciliation", string(exc.AccountID), domain.EventReconciliationException, evt); err != nil {
		r.LogError(ctx, err, "reconciliation: failed publishing exception event")
	}
}

// MatchBankTransactions runs the fuzzy scored matcher described in §4.3 over
// a period's payments and bank transactions, returning matched items,
// unmatched ids on both sides, and an account's balance discrepancy against
// the bank's reported activity. Iteration order is fixed — payments by
// (paid_at, id), candidates by (date, id) — so the result is deterministic
// given the same input set.
func (r *ReconciliationEngine) MatchBankTransactions(ctx context.Context, accountID domain.AccountID, openingBalance domain.Money, expectedClosing domain.Money, payments []domain.PaymentIntent, bankTxns []domain.BankTransaction) domain.Reconciliation {
	sortedPayments := append([]domain.PaymentIntent(nil), payments...)
	sort.SliceStable(sortedPayments, func(i, j int) bool {
		if !sortedPayments[i].PaidAt.Equal(sortedPayments[j].PaidAt) {
			return sortedPayments[i].PaidAt.Before(sortedPayments[j].PaidAt)
		}
		return sortedPayments[i].ID < sortedPayments[j].ID
	})

	pool := append([]domain.BankTransaction(nil), bankTxns...)
	sort.SliceStable(pool, func(i, j int) bool {
		if !pool[i].Date.Equal(pool[j].Date) {
			return pool[i].Date.Before(pool[j].Date)
		}
		return pool[i].ID < pool[j].ID
	})
	consumed := make(map[string]bool, len(pool))

	var matched []domain.MatchedItem
	var unmatchedPayments []domain.PaymentIntentID
	var exceptions []domain.ReconciliationException
	var bankCredits, bankDebits int64

	for _, txn := range bankTxns {
		if txn.AmountMinor >= 0 {
			bankCredits += txn.AmountMinor
		} else {
			bankDebits += -txn.AmountMinor
		}
	}

	for _, payment := range sortedPayments {
		best, bestScore, found := bestCandidate(payment, pool, consumed, r.thresholds)
		if !found || bestScore < r.thresholds.AmbiguousThreshold {
			unmatchedPayments = append(unmatchedPayments, payment.ID)
			continue
		}

		consumed[best.ID] = true
		diff := payment.Amount.AmountMinor - best.AmountMinor
		if diff < 0 {
			diff = -diff
		}

		outcome := domain.MatchAmbiguous
		if bestScore >= r.thresholds.MatchThreshold {
			if diff <= r.thresholds.AmountToleranceMinor {
				outcome = domain.MatchExact
			} else {
				outcome = domain.MatchPartial
			}
		} else {
			exc := domain.ReconciliationException{
				Kind:        domain.ExceptionAmbiguousMatch,
				AccountID:   accountID,
				Detail:      fmt.Sprintf("payment=%s bank_txn=%s score=%d", payment.ID, best.ID, bestScore),
				Discrepancy: diff,
			}
			exceptions = append(exceptions, exc)
			r.emitException(ctx, payment.TenantID, exc)
		}

		matched = append(matched, domain.MatchedItem{
			PaymentIntentID:   payment.ID,
			BankTransactionID: best.ID,
			Score:             bestScore,
			Outcome:           outcome,
		})
	}

	var unmatchedBankTxns []string
	for _, txn := range pool {
		if !consumed[txn.ID] {
			unmatchedBankTxns = append(unmatchedBankTxns, txn.ID)
			exc := domain.ReconciliationException{Kind: domain.ExceptionUnmatchedBankTxn, AccountID: accountID, Detail: txn.ID}
			exceptions = append(exceptions, exc)
		}
	}
	for _, id := range unmatchedPayments {
		exceptions = append(exceptions, domain.ReconciliationException{Kind: domain.ExceptionUnmatchedPayment, AccountID: accountID, Detail: string(id)})
	}

	expectedBank := openingBalance.AmountMinor + bankCredits - bankDebits
	discrepancy := expectedBank - expectedClosing.AmountMinor

	return domain.Reconciliation{
		AccountID:            accountID,
		OpeningBalanceMinor:  openingBalance.AmountMinor,
		ClosingBalanceMinor:  expectedBank,
		ExpectedBalanceMinor: expectedClosing.AmountMinor,
		DiscrepancyMinor:     discrepancy,
		MatchedItems:         matched,
		UnmatchedPaymentIDs:  unmatchedPayments,
		UnmatchedBankTxnIDs:  unmatchedBankTxns,
		Exceptions:           exceptions,
		RanAt:                time.Now().UTC(),
	}
}

// bestCandidate scores every unconsumed bank transaction against payment and
// returns the winner under the tie-break rule: higher score first, then
// smaller date distance, then exact currency/amount equality, then FIFO by
// bank-transaction date (the candidate pool is already sorted by date, so a
// stable scan preserves FIFO among remaining ties).
func bestCandidate(payment domain.PaymentIntent, pool []domain.BankTransaction, consumed map[string]bool, thresholds domain.MatchingThresholds) (domain.BankTransaction, int, bool) {
	var best domain.BankTransaction
	bestScore := -1
	bestDateDistance := time.Duration(1<<62 - 1)
	bestExact := false
	found := false

	for _, txn := range pool {
		if consumed[txn.ID] {
			continue
		}
		score, ok := scoreCandidate(payment, txn, thresholds)
		if !ok {
			continue
		}

		dateDistance := payment.PaidAt.Sub(txn.Date)
		if dateDistance < 0 {
			dateDistance = -dateDistance
		}
		diff := payment.Amount.AmountMinor - txn.AmountMinor
		if diff < 0 {
			diff = -diff
		}
		exact := diff == 0 && payment.Amount.Currency == txn.Currency

		if !found {
			best, bestScore, bestDateDistance, bestExact, found = txn, score, dateDistance, exact, true
			continue
		}

		switch {
		case score > bestScore:
			best, bestScore, bestDateDistance, bestExact = txn, score, dateDistance, exact
		case score == bestScore && dateDistance < bestDateDistance:
			best, bestDateDistance, bestExact = txn, dateDistance, exact
		case score == bestScore && dateDistance == bestDateDistance && exact && !bestExact:
			best, bestExact = txn, exact
		}
	}
	return best, bestScore, found
}

// scoreCandidate computes the additive score for one (payment, bank
// transaction) pair per the §4.3 signal table. A currency mismatch
// disqualifies the candidate outright.
func scoreCandidate(payment domain.PaymentIntent, txn domain.BankTransaction, thresholds domain.MatchingThresholds) (int, bool) {
	if payment.Amount.Currency != txn.Currency {
		return 0, false
	}

	score := 0
	ref := strings.ToUpper(txn.Reference + " " + txn.Description)
	if payment.ID != "" && strings.Contains(ref, strings.ToUpper(string(payment.ID))) {
		score += 40
	}
	if payment.ExternalID != "" && strings.Contains(ref, strings.ToUpper(payment.ExternalID)) {
		score += 35
	}
	if payment.IdempotencyKey != "" && strings.Contains(ref, strings.ToUpper(payment.IdempotencyKey)) {
		score += 30
	}
	if len(payment.Description) >= 5 {
		prefix := payment.Description
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		if strings.Contains(ref, strings.ToUpper(prefix)) {
			score += 10
		}
	}

	diff := payment.Amount.AmountMinor - txn.AmountMinor
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		score += 30
	case diff <= thresholds.AmountToleranceMinor:
		score += 20
	case withinPercent(payment.Amount.AmountMinor, diff, 1):
		score += 10
	case withinPercent(payment.Amount.AmountMinor, diff, 5):
		score += 5
	}

	dayDiff := calendarDayDistance(payment.PaidAt, txn.Date)
	switch {
	case dayDiff == 0:
		score += 20
	case dayDiff == 1:
		score += 10
	case dayDiff == 2:
		score += 5
	}

	score += descriptionOverlapScore(payment.Description, txn.Description)

	return score, true
}

func withinPercent(base, diff int64, percent int64) bool {
	if base == 0 {
		return diff == 0
	}
	absBase := base
	if absBase < 0 {
		absBase = -absBase
	}
	return diff*100 <= absBase*percent
}

func calendarDayDistance(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// descriptionOverlapScore counts shared tokens (length >= 3, case-folded)
// between the two descriptions, worth +5 each up to a +10 cap.
func descriptionOverlapScore(a, b string) int {
	setA := tokenSet(a)
	setB := tokenSet(b)
	overlaps := 0
	for token := range setA {
		if setB[token] {
			overlaps++
		}
	}
	score := overlaps * 5
	if score > 10 {
		score = 10
	}
	return score
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			set[strings.ToUpper(f)] = true
		}
	}
	return set
}
