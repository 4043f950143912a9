package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

func TestIsValidPaymentTransition_AllowsDocumentedEdges(t *testing.T) {
	cases := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentPending, domain.PaymentProcessing},
		{domain.PaymentPending, domain.PaymentCancelled},
		{domain.PaymentProcessing, domain.PaymentRequiresAction},
		{domain.PaymentProcessing, domain.PaymentSucceeded},
		{domain.PaymentProcessing, domain.PaymentFailed},
		{domain.PaymentRequiresAction, domain.PaymentSucceeded},
		{domain.PaymentSucceeded, domain.PaymentPartiallyRefunded},
		{domain.PaymentSucceeded, domain.PaymentRefunded},
		{domain.PaymentPartiallyRefunded, domain.PaymentRefunded},
	}
	for _, tc := range cases {
		assert.True(t, domain.IsValidPaymentTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}
}

func TestIsValidPaymentTransition_RejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentFailed, domain.PaymentSucceeded},
		{domain.PaymentCancelled, domain.PaymentProcessing},
		{domain.PaymentRefunded, domain.PaymentSucceeded},
		{domain.PaymentPending, domain.PaymentSucceeded},
		{domain.PaymentSucceeded, domain.PaymentPending},
	}
	for _, tc := range cases {
		assert.False(t, domain.IsValidPaymentTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestIsTerminalPaymentStatus(t *testing.T) {
	assert.True(t, domain.IsTerminalPaymentStatus(domain.PaymentFailed))
	assert.True(t, domain.IsTerminalPaymentStatus(domain.PaymentCancelled))
	assert.True(t, domain.IsTerminalPaymentStatus(domain.PaymentRefunded))
	assert.False(t, domain.IsTerminalPaymentStatus(domain.PaymentSucceeded), "succeeded can still transition to a refund status")
	assert.False(t, domain.IsTerminalPaymentStatus(domain.PaymentPending))
}

func TestRefundableAmount_SubtractsPriorRefunds(t *testing.T) {
	intent := domain.PaymentIntent{
		Amount:              domain.Money{AmountMinor: 10000, Currency: domain.USD},
		RefundedAmountMinor: 4000,
	}
	refundable := intent.RefundableAmount()
	assert.Equal(t, int64(6000), refundable.AmountMinor)
	assert.Equal(t, domain.USD, refundable.Currency)
}
