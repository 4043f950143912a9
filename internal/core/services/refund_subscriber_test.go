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

func newTestRefundSubscriber(t *testing.T) (*services.RefundSubscriber, *services.LedgerEngine, *memory.AccountRepository) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()
	ledger := services.NewLedgerEngine(accounts, ledgerRepo, nil)
	payments := memory.NewPaymentIntentRepository()
	sub := services.NewRefundSubscriber(ledger, payments)
	return sub, ledger, accounts
}

// A refund journal credits customer_liability and debits platform_holding;
// credit decreases a balance and debit increases it (the same convention
// exercised in ledger_service_test.go), so both accounts start at zero here
// and the expected post-refund balances follow directly from that sign rule.

func TestHandlePaymentRefunded_PostsCompensatingJournal(t *testing.T) {
	sub, ledger, accounts := newTestRefundSubscriber(t)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	evt := domain.PaymentRefundedEvent{
		TenantID:        testTenant,
		PaymentIntentID: domain.NewPaymentIntentID(),
		RefundedAmount:  money(5000),
		RefundSequence:  1,
		FullyRefunded:   true,
		RefundedAt:      time.Now().UTC(),
	}

	err := sub.HandlePaymentRefunded(context.Background(), evt, liability.ID, holding.ID)
	require.NoError(t, err)

	liabilityBalance, err := ledger.Balance(context.Background(), testTenant, liability.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), liabilityBalance.AmountMinor)

	holdingBalance, err := ledger.Balance(context.Background(), testTenant, holding.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), holdingBalance.AmountMinor)
}

func TestHandlePaymentRefunded_RedeliveryIsNoOp(t *testing.T) {
	sub, ledger, accounts := newTestRefundSubscriber(t)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)

	evt := domain.PaymentRefundedEvent{
		TenantID:        testTenant,
		PaymentIntentID: domain.NewPaymentIntentID(),
		RefundedAmount:  money(2000),
		RefundSequence:  1,
		RefundedAt:      time.Now().UTC(),
	}

	require.NoError(t, sub.HandlePaymentRefunded(context.Background(), evt, liability.ID, holding.ID))
	require.NoError(t, sub.HandlePaymentRefunded(context.Background(), evt, liability.ID, holding.ID))

	liabilityBalance, err := ledger.Balance(context.Background(), testTenant, liability.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-2000), liabilityBalance.AmountMinor, "a redelivered event must not post a second reversal")
}

func TestHandlePaymentRefunded_DistinctSequencesBothPost(t *testing.T) {
	sub, ledger, accounts := newTestRefundSubscriber(t)
	liability := seedAccount(t, accounts, domain.AccountCustomerLiability, 0)
	holding := seedAccount(t, accounts, domain.AccountPlatformHolding, 0)
	intentID := domain.NewPaymentIntentID()

	first := domain.PaymentRefundedEvent{TenantID: testTenant, PaymentIntentID: intentID, RefundedAmount: money(1000), RefundSequence: 1, RefundedAt: time.Now().UTC()}
	second := domain.PaymentRefundedEvent{TenantID: testTenant, PaymentIntentID: intentID, RefundedAmount: money(1500), RefundSequence: 2, RefundedAt: time.Now().UTC()}

	require.NoError(t, sub.HandlePaymentRefunded(context.Background(), first, liability.ID, holding.ID))
	require.NoError(t, sub.HandlePaymentRefunded(context.Background(), second, liability.ID, holding.ID))

	liabilityBalance, err := ledger.Balance(context.Background(), testTenant, liability.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), liabilityBalance.AmountMinor)
}
