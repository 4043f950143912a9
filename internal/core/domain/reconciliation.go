package domain

import "time"

// MatchOutcome is the closed set of results a bank-transaction matching
// candidate can settle into.
type MatchOutcome string

const (
	MatchExact     MatchOutcome = "exact"
	MatchPartial   MatchOutcome = "partial"
	MatchAmbiguous MatchOutcome = "ambiguous"
	MatchUnmatched MatchOutcome = "unmatched"
)

// BankTransaction is one externally-sourced bank statement line fed into the
// reconciliation engine's matching pass.
type BankTransaction struct {
	ID          string
	AccountID   AccountID
	AmountMinor int64 // positive for credits, negative for debits
	Currency    CurrencyCode
	Date        time.Time
	Reference   string
	Description string
}

// MatchedItem pairs a payment intent with the bank transaction matched to it
// (if any) and the scoring outcome.
type MatchedItem struct {
	PaymentIntentID PaymentIntentID
	BankTransactionID string
	Score           int
	Outcome         MatchOutcome
}

// ExceptionKind is the closed set of reconciliation exceptions.
type ExceptionKind string

const (
	ExceptionBalanceDrift           ExceptionKind = "balance_drift"
	ExceptionSequenceGap            ExceptionKind = "sequence_gap"
	ExceptionSequenceDuplicate      ExceptionKind = "sequence_duplicate"
	ExceptionAmbiguousMatch         ExceptionKind = "ambiguous_match"
	ExceptionUnmatchedBankTxn       ExceptionKind = "unmatched_bank_transaction"
	ExceptionUnmatchedPayment       ExceptionKind = "unmatched_payment"
	ExceptionProviderStatusMismatch ExceptionKind = "provider_status_mismatch"
)

// ReconciliationException flags that two independent sources disagree and
// require human or automated resolution.
type ReconciliationException struct {
	Kind        ExceptionKind
	AccountID   AccountID
	Detail      string
	Discrepancy int64
}

// Reconciliation is the persisted result of a reconciliation run over an
// account and period.
type Reconciliation struct {
	ID                    ReconciliationID
	TenantID              TenantID
	AccountID             AccountID
	PeriodStart           time.Time
	PeriodEnd             time.Time
	OpeningBalanceMinor   int64
	ClosingBalanceMinor   int64
	ExpectedBalanceMinor  int64
	DiscrepancyMinor      int64
	MatchedItems          []MatchedItem
	UnmatchedPaymentIDs   []PaymentIntentID
	UnmatchedBankTxnIDs   []string
	Exceptions            []ReconciliationException
	RanAt                 time.Time
}

// MatchingThresholds configures the fuzzy bank-matching scorer.
type MatchingThresholds struct {
	MatchThreshold     int
	AmbiguousThreshold int
	AmountToleranceMinor int64
}

// DefaultMatchingThresholds returns the spec's suggested defaults.
func DefaultMatchingThresholds() MatchingThresholds {
	return MatchingThresholds{
		MatchThreshold:       60,
		AmbiguousThreshold:   40,
		AmountToleranceMinor: 0,
	}
}
