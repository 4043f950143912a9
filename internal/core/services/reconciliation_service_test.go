package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

func newTestReconciliationEngine(t *testing.T) (*services.ReconciliationEngine, *services.LedgerEngine, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	payments := memory.NewPaymentIntentRepository()
	engine := services.NewReconciliationEngine(ledger, payments, nil, nil, domain.DefaultMatchingThresholds())
	return engine, ledger, accounts
}

func TestLedgerSelfCheck_CleanAccountsReportNoExceptions(t *testing.T) {
	engine, ledger, accounts := newTestReconciliationEngine(t)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)

	_, err := ledger.PostJournal(context.Background(), domain.PostJournalRequest{
		TenantID: testTenant, EffectiveDate: time.Now().UTC(), Currency: domain.USD, CreatedBy: "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(1000), Type: domain.EntryTypeRentPayment},
			{AccountID: liability.ID, Direction: domain.Credit, Amount: money(1000), Type: domain.EntryTypeRentPayment},
		},
	})
	require.NoError(t, err)

	exceptions, err := engine.LedgerSelfCheck(context.Background(), testTenant, []domain.AccountID{holding.ID, liability.ID})
	require.NoError(t, err)
	assert.Empty(t, exceptions)
}

func TestMatchBankTransactions_ExactAmountAndReferenceMatches(t *testing.T) {
	engine, _, _ := newTestReconciliationEngine(t)
	paidAt := time.Date(2026, time.July, 15, 9, 0, 0, 0, time.UTC)

	payment := domain.PaymentIntent{
		ID: domain.NewPaymentIntentID(), TenantID: testTenant, ExternalID: "ext-rent-1",
		Amount: money(15000), PaidAt: paidAt, Description: "July rent payment",
	}
	bankTxn := domain.BankTransaction{
		ID: "bank-1", AmountMinor: 15000, Currency: domain.USD, Date: paidAt,
		Reference: "EXT-RENT-1", Description: "incoming transfer",
	}

	result := engine.MatchBankTransactions(context.Background(), "acc-1", money(0), money(15000),
		[]domain.PaymentIntent{payment}, []domain.BankTransaction{bankTxn})

	require.Len(t, result.MatchedItems, 1)
	assert.Equal(t, domain.MatchExact, result.MatchedItems[0].Outcome)
	assert.Empty(t, result.UnmatchedPaymentIDs)
	assert.Empty(t, result.UnmatchedBankTxnIDs)
	assert.Zero(t, result.DiscrepancyMinor)
}

func TestMatchBankTransactions_UnmatchedPaymentWithNoCandidates(t *testing.T) {
	engine, _, _ := newTestReconciliationEngine(t)
	paidAt := time.Date(2026, time.July, 15, 9, 0, 0, 0, time.UTC)

	payment := domain.PaymentIntent{
		ID: domain.NewPaymentIntentID(), TenantID: testTenant,
		Amount: money(15000), PaidAt: paidAt, Description: "unmatched payment",
	}

	result := engine.MatchBankTransactions(context.Background(), "acc-1", money(0), money(0),
		[]domain.PaymentIntent{payment}, nil)

	assert.Empty(t, result.MatchedItems)
	require.Len(t, result.UnmatchedPaymentIDs, 1)
	assert.Equal(t, payment.ID, result.UnmatchedPaymentIDs[0])
}

func TestMatchBankTransactions_UnmatchedBankTxnFlagged(t *testing.T) {
	engine, _, _ := newTestReconciliationEngine(t)
	bankTxn := domain.BankTransaction{
		ID: "bank-orphan", AmountMinor: 500, Currency: domain.USD, Date: time.Now().UTC(),
		Reference: "UNKNOWN", Description: "mystery deposit",
	}

	result := engine.MatchBankTransactions(context.Background(), "acc-1", money(0), money(500), nil, []domain.BankTransaction{bankTxn})

	require.Len(t, result.UnmatchedBankTxnIDs, 1)
	assert.Equal(t, "bank-orphan", result.UnmatchedBankTxnIDs[0])
}

func TestMatchBankTransactions_CurrencyMismatchDisqualifiesCandidate(t *testing.T) {
	engine, _, _ := newTestReconciliationEngine(t)
	paidAt := time.Now().UTC()

	payment := domain.PaymentIntent{ID: domain.NewPaymentIntentID(), TenantID: testTenant, Amount: money(1000), PaidAt: paidAt}
	bankTxn := domain.BankTransaction{ID: "bank-eur", AmountMinor: 1000, Currency: domain.EUR, Date: paidAt}

	result := engine.MatchBankTransactions(context.Background(), "acc-1", money(0), money(0),
		[]domain.PaymentIntent{payment}, []domain.BankTransaction{bankTxn})

	assert.Empty(t, result.MatchedItems)
	assert.Contains(t, result.UnmatchedPaymentIDs, payment.ID)
	assert.Contains(t, result.UnmatchedBankTxnIDs, "bank-eur")
}
