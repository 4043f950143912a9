package services

import (
	"context"
	"fmt"

	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports/repositories"
)

// RefundSubscriber reacts to PaymentRefunded events by posting the
// compensating journal the orchestrator itself deliberately does not post
// (§9 design note: the refund's ledger effect is driven by a subscriber, not
// by the orchestrator directly). It is keyed by (payment_intent_id,
// refund_sequence) so a redelivered event is a no-op rather than a double
// reversal.
type RefundSubscriber struct {
	BaseService
	ledger   *LedgerEngine
	payments repositories.PaymentIntentRepository

	// processed tracks (payment_intent_id, refund_sequence) pairs already
	// posted, guarding against outbox redelivery. A production deployment
	// backs this with a durable idempotency table keyed the same way; the
	// in-process set here is adequate for a single-instance subscriber and
	// is rebuilt from ledger entry references on restart (each posted
	// journal's first line carries the same reference string).
	processed map[string]bool
}

// NewRefundSubscriber wires the subscriber to the ledger engine and payment
// repository it needs to look up intent scope.
func NewRefundSubscriber(ledger *LedgerEngine, payments repositories.PaymentIntentRepository) *RefundSubscriber {
	return &RefundSubscriber{ledger: ledger, payments: payments, processed: make(map[string]bool)}
}

// HandlePaymentRefunded posts customer_liability CR, platform_holding DR for
// the refunded amount against the accounts originally used for the intent's
// settlement. The caller supplies the three accounts, since the subscriber
// has no independent means of discovering a tenant's chart of accounts.
func (r *RefundSubscriber) HandlePaymentRefunded(ctx context.Context, evt domain.PaymentRefundedEvent, customerLiabilityAccount, platformHoldingAccount domain.AccountID) error {
	key := refundIdempotencyKey(evt.PaymentIntentID, evt.RefundSequence)
	if r.processed[key] {
		r.LogDebug(ctx, "refund_subscriber: duplicate delivery, skipping", "key", key)
		return nil
	}

	_, err := r.ledger.PostJournal(ctx, domain.PostJournalRequest{
		TenantID:      evt.TenantID,
		EffectiveDate: evt.RefundedAt,
		Description:   fmt.Sprintf("refund of payment %s", evt.PaymentIntentID),
		Currency:      evt.RefundedAmount.Currency,
		CreatedBy:     "refund_subscriber",
		Lines: []domain.JournalLine{
			{
				AccountID:       customerLiabilityAccount,
				Direction:       domain.Credit,
				Amount:          evt.RefundedAmount,
				Type:            domain.EntryTypeRefund,
				Description:     "refund",
				Reference:       key,
				PaymentIntentID: evt.PaymentIntentID,
			},
			{
				AccountID:       platformHoldingAccount,
				Direction:       domain.Debit,
				Amount:          evt.RefundedAmount,
				Type:            domain.EntryTypeRefund,
				Description:     "refund",
				Reference:       key,
				PaymentIntentID: evt.PaymentIntentID,
			},
		},
	})
	if err != nil {
		return err
	}

	r.processed[key] = true
	return nil
}

func refundIdempotencyKey(id domain.PaymentIntentID, sequence int) string {
	return fmt.Sprintf("refund:%s:%d", id, sequence)
}
