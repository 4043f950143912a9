package domain

import "time"

// PaymentStatus is the closed set of states a PaymentIntent moves through.
// Terminal states are Succeeded (prior to any refund), Failed, Cancelled,
// and Refunded; PartiallyRefunded is non-terminal (a further refund can move
// it to Refunded).
type PaymentStatus string

const (
	PaymentPending            PaymentStatus = "pending"
	PaymentProcessing         PaymentStatus = "processing"
	PaymentRequiresAction     PaymentStatus = "requires_action"
	PaymentSucceeded          PaymentStatus = "succeeded"
	PaymentFailed             PaymentStatus = "failed"
	PaymentCancelled          PaymentStatus = "cancelled"
	PaymentPartiallyRefunded  PaymentStatus = "partially_refunded"
	PaymentRefunded           PaymentStatus = "refunded"
)

// validPaymentTransitions enumerates every legal status transition. Anything
// not listed here is rejected with apperrors.ErrState wrapping
// "illegal_transition".
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {
		PaymentProcessing,
		PaymentCancelled,
	},
	PaymentProcessing: {
		PaymentRequiresAction,
		PaymentSucceeded,
		PaymentFailed,
		PaymentCancelled,
	},
	PaymentRequiresAction: {
		PaymentSucceeded,
		PaymentFailed,
		PaymentCancelled,
	},
	PaymentSucceeded: {
		PaymentPartiallyRefunded,
		PaymentRefunded,
	},
	PaymentPartiallyRefunded: {
		PaymentRefunded,
	},
}

// IsValidPaymentTransition reports whether moving from 'from' to 'to' is a
// legal state-machine edge.
func IsValidPaymentTransition(from, to PaymentStatus) bool {
	for _, allowed := range validPaymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalPaymentStatus reports whether status accepts no further
// transitions (Succeeded is intentionally excluded: it can still move to a
// refund status).
func IsTerminalPaymentStatus(status PaymentStatus) bool {
	switch status {
	case PaymentFailed, PaymentCancelled, PaymentRefunded:
		return true
	default:
		return false
	}
}

// PaymentType distinguishes how the funds entered the platform.
type PaymentType string

const (
	PaymentTypeCard        PaymentType = "card"
	PaymentTypeMobileMoney PaymentType = "mobile_money"
)

// PaymentIntent is the orchestrator's aggregate tracking one attempt to
// collect money from a customer. The (tenant, idempotency_key) pair is
// unique; platform_fee and net_amount are computed once at creation and are
// immutable afterward.
type PaymentIntent struct {
	ID                 PaymentIntentID `json:"id"`
	TenantID           TenantID        `json:"tenantId"`
	CustomerID         CustomerID      `json:"customerId"`
	LeaseID            LeaseID         `json:"leaseId,omitempty"`
	Type               PaymentType     `json:"type"`
	Status             PaymentStatus   `json:"status"`
	Amount             Money           `json:"amount"`
	PlatformFee        Money           `json:"platformFee"`
	NetAmount          Money           `json:"netAmount"`
	Description        string          `json:"description"`
	StatementDescriptor string         `json:"statementDescriptor"`
	IdempotencyKey     string          `json:"idempotencyKey"`
	ExternalID         string          `json:"externalId,omitempty"`
	ProviderName       string          `json:"providerName,omitempty"`
	RefundedAmountMinor int64          `json:"refundedAmountMinor"`
	RefundCount        int            `json:"refundCount"`
	FailureReason      string          `json:"failureReason,omitempty"`
	ReceiptURL         string          `json:"receiptUrl,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	PaidAt             time.Time       `json:"paidAt,omitempty"`
}

// StatementDescriptorMaxLen is the hard cap on a card-network statement
// descriptor.
const StatementDescriptorMaxLen = 22

// RefundableAmount returns how much of the intent can still be refunded.
func (p PaymentIntent) RefundableAmount() Money {
	return Money{AmountMinor: p.Amount.AmountMinor - p.RefundedAmountMinor, Currency: p.Amount.Currency}
}
