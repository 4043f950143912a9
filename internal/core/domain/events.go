package domain

import "time"

// EventType is the closed set of domain event names published through the
// outbox. Subscribers dispatch on this string, so values here are the wire
// contract and must not be renamed without a migration plan.
type EventType string

const (
	EventLedgerEntriesCreated   EventType = "ledger.entries_created"
	EventAccountBalanceUpdated  EventType = "ledger.account_balance_updated"
	EventPaymentSucceeded       EventType = "payment.succeeded"
	EventPaymentFailed          EventType = "payment.failed"
	EventPaymentCancelled       EventType = "payment.cancelled"
	EventPaymentRefunded        EventType = "payment.refunded"
	EventDisbursementPaid       EventType = "disbursement.paid"
	EventDisbursementFailed     EventType = "disbursement.failed"
	EventStatementSent          EventType = "statement.sent"
	EventReconciliationException EventType = "reconciliation.exception"
)

// LedgerEntriesCreatedEvent is published once per posted journal (including
// corrections and voids), carrying every entry the journal produced.
type LedgerEntriesCreatedEvent struct {
	TenantID  TenantID      `json:"tenantId"`
	JournalID JournalID     `json:"journalId"`
	Entries   []LedgerEntry `json:"entries"`
	PostedAt  time.Time     `json:"postedAt"`
}

// AccountBalanceUpdatedEvent is published once per account mutated by a
// journal posting.
type AccountBalanceUpdatedEvent struct {
	TenantID        TenantID      `json:"tenantId"`
	AccountID       AccountID     `json:"accountId"`
	NewBalance      Money         `json:"newBalance"`
	LastEntryID     LedgerEntryID `json:"lastEntryId"`
	Version         int64         `json:"version"`
}

// PaymentSucceededEvent is emitted when a PaymentIntent transitions to
// succeeded; the refund subscriber and downstream ledger posting both react
// to it.
type PaymentSucceededEvent struct {
	TenantID        TenantID        `json:"tenantId"`
	PaymentIntentID PaymentIntentID `json:"paymentIntentId"`
	CustomerID      CustomerID      `json:"customerId"`
	Amount          Money           `json:"amount"`
	PlatformFee     Money           `json:"platformFee"`
	NetAmount       Money           `json:"netAmount"`
	PaidAt          time.Time       `json:"paidAt"`
	ReceiptURL      string          `json:"receiptUrl,omitempty"`
}

// PaymentRefundedEvent is emitted on every successful refund (partial or
// full); RefundSequence disambiguates repeated partial refunds on the same
// intent for idempotent subscriber keying.
type PaymentRefundedEvent struct {
	TenantID        TenantID        `json:"tenantId"`
	PaymentIntentID PaymentIntentID `json:"paymentIntentId"`
	RefundedAmount  Money           `json:"refundedAmount"`
	RefundSequence  int             `json:"refundSequence"`
	FullyRefunded   bool            `json:"fullyRefunded"`
	RefundedAt      time.Time       `json:"refundedAt"`
}

// DisbursementSettledEvent is emitted when a disbursement reaches a terminal
// status (paid or failed).
type DisbursementSettledEvent struct {
	TenantID       TenantID           `json:"tenantId"`
	DisbursementID DisbursementID     `json:"disbursementId"`
	OwnerID        OwnerID            `json:"ownerId"`
	Status         DisbursementStatus `json:"status"`
	Amount         Money              `json:"amount"`
}

// StatementSentEvent is emitted when a statement is delivered.
type StatementSentEvent struct {
	TenantID    TenantID    `json:"tenantId"`
	StatementID StatementID `json:"statementId"`
	SentAt      time.Time   `json:"sentAt"`
	Destination string      `json:"destination"`
}

// ReconciliationExceptionEvent is emitted for every exception raised during
// a reconciliation run.
type ReconciliationExceptionEvent struct {
	TenantID  TenantID                `json:"tenantId"`
	AccountID AccountID               `json:"accountId"`
	Exception ReconciliationException `json:"exception"`
}
