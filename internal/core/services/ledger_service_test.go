package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/services"
	"github.com/proptech-ledger/ledgerd/internal/repositories/memory"
)

const testTenant domain.TenantID = "tenant-1"

func newTestLedgerEngine(t *testing.T) (*services.LedgerEngine, *memory.AccountRepository, *memory.LedgerRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledger := memory.NewLedgerRepository()
	engine := services.NewLedgerEngine(accounts, ledger, nil)
	return engine, accounts, ledger
}

func seedAccount(t *testing.T, repo *memory.AccountRepository, accountType domain.AccountType, balance int64) domain.Account {
	t.Helper()
	acc := domain.Account{
		ID:           domain.NewAccountID(),
		TenantID:     testTenant,
		Name:         string(accountType),
		Type:         accountType,
		Currency:     domain.USD,
		Status:       domain.AccountActive,
		BalanceMinor: balance,
		AuditFields:  domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	require.NoError(t, repo.Create(context.Background(), nil, acc))
	return acc
}

func money(amountMinor int64) domain.Money {
	return domain.Money{AmountMinor: amountMinor, Currency: domain.USD}
}

func TestPostJournal_BalancedEntriesUpdateBalances(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	req := domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Description:   "rent payment",
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(10000), Type: domain.EntryTypeRentPayment},
			{AccountID: liability.ID, Direction: domain.Credit, Amount: money(10000), Type: domain.EntryTypeRentPayment},
		},
	}

	result, err := engine.PostJournal(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, domain.JournalPosted, result.Journal.Status)

	holdingBalance, err := engine.Balance(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), holdingBalance.AmountMinor)

	liabilityBalance, err := engine.Balance(context.Background(), testTenant, liability.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), liabilityBalance.AmountMinor)
}

func TestPostJournal_UnbalancedRejected(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	a := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	b := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)

	req := domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: a.ID, Direction: domain.Debit, Amount: money(10000), Type: domain.EntryTypeRentPayment},
			{AccountID: b.ID, Direction: domain.Credit, Amount: money(9000), Type: domain.EntryTypeRentPayment},
		},
	}

	_, err := engine.PostJournal(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPostJournal_InactiveAccountRejected(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	active := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	suspended := domain.Account{
		ID:          domain.NewAccountID(),
		TenantID:    testTenant,
		Name:        "suspended",
		Type:        domain.AccountCustomerLiability,
		Currency:    domain.USD,
		Status:      domain.AccountSuspended,
		AuditFields: domain.AuditFields{CreatedAt: time.Now().UTC(), CreatedBy: "test"},
	}
	require.NoError(t, accounts.Create(context.Background(), nil, suspended))

	req := domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: active.ID, Direction: domain.Debit, Amount: money(500), Type: domain.EntryTypeRentPayment},
			{AccountID: suspended.ID, Direction: domain.Credit, Amount: money(500), Type: domain.EntryTypeRentPayment},
		},
	}

	_, err := engine.PostJournal(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestVerifyAccountBalance_DetectsDrift(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)

	_, err := engine.PostJournal(context.Background(), domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(5000), Type: domain.EntryTypeRentPayment},
			{AccountID: liability.ID, Direction: domain.Credit, Amount: money(5000), Type: domain.EntryTypeRentPayment},
		},
	})
	require.NoError(t, err)

	report, err := engine.VerifyAccountBalance(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.True(t, report.Matches)
	assert.Zero(t, report.Drift)
}

func TestVoidEntry_PostsCompensatingReversal(t *testing.T) {
	engine, accounts, ledger := newTestLedgerEngine(t)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)

	posted, err := engine.PostJournal(context.Background(), domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(2500), Type: domain.EntryTypeRentPayment},
			{AccountID: liability.ID, Direction: domain.Credit, Amount: money(2500), Type: domain.EntryTypeRentPayment},
		},
	})
	require.NoError(t, err)

	original := posted.Entries[0]
	voided, err := engine.VoidEntry(context.Background(), testTenant, original.ID, "duplicate payment", "test")
	require.NoError(t, err)
	require.Len(t, voided.Entries, 1)
	assert.Equal(t, original.ID, voided.Entries[0].CorrectionOf)

	persisted, err := ledger.GetEntry(context.Background(), testTenant, voided.Entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, persisted.CorrectionOf, "CorrectionOf must be persisted, not just set on the caller's copy")

	balance, err := engine.Balance(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.Zero(t, balance.AmountMinor)
}

func TestVerifySequence_NoGapsOnFreshAccount(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)

	for i := 0; i < 3; i++ {
		_, err := engine.PostJournal(context.Background(), domain.PostJournalRequest{
			TenantID:      testTenant,
			EffectiveDate: time.Now().UTC(),
			Currency:      domain.USD,
			CreatedBy:     "test",
			Lines: []domain.JournalLine{
				{AccountID: holding.ID, Direction: domain.Debit, Amount: money(100), Type: domain.EntryTypeRentPayment},
				{AccountID: liability.ID, Direction: domain.Credit, Amount: money(100), Type: domain.EntryTypeRentPayment},
			},
		})
		require.NoError(t, err)
	}

	report, err := engine.VerifySequence(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Gaps)
	assert.Empty(t, report.Duplicates)
}

func TestPostJournal_UnknownAccountReturnsNotFound(t *testing.T) {
	engine, accounts, _ := newTestLedgerEngine(t)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	_, err := engine.PostJournal(context.Background(), domain.PostJournalRequest{
		TenantID:      testTenant,
		EffectiveDate: time.Now().UTC(),
		Currency:      domain.USD,
		CreatedBy:     "test",
		Lines: []domain.JournalLine{
			{AccountID: holding.ID, Direction: domain.Debit, Amount: money(100), Type: domain.EntryTypeRentPayment},
			{AccountID: domain.NewAccountID(), Direction: domain.Credit, Amount: money(100), Type: domain.EntryTypeRentPayment},
		},
	})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
