package domain

import "time"

// Direction is the closed set of ledger entry directions. Debit always adds
// to the account's materialised balance and credit always subtracts,
// uniformly across every account type.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// JournalStatus indicates whether a journal's entries are in effect or have
// been wholly reversed.
type JournalStatus string

const (
	JournalPosted   JournalStatus = "posted"
	JournalReversed JournalStatus = "reversed"
)

// Journal is a set of one or more balanced ledger entries sharing a journal
// id and effective date. Per currency, the sum of debit amounts must equal
// the sum of credit amounts, and a journal spans exactly one currency.
type Journal struct {
	ID            JournalID     `json:"id"`
	TenantID      TenantID      `json:"tenantId"`
	EffectiveDate time.Time     `json:"effectiveDate"`
	Description   string        `json:"description"`
	Currency      CurrencyCode  `json:"currency"`
	Status        JournalStatus `json:"status"`
	EntryIDs      []LedgerEntryID `json:"entryIds"`
	AuditFields
}

// LedgerEntryType is the closed, caller-supplied category of a ledger entry,
// independent of the account it posts to: the same account can carry entries
// of several categories (an owner's operating account receives both
// disbursement credits and, in principle, fee or deduction debits).
// Statement category summaries and disbursement breakdowns group by this
// field, never by the owning account's AccountType.
type LedgerEntryType string

const (
	EntryTypeRentPayment    LedgerEntryType = "rent_payment"
	EntryTypeOtherPayment   LedgerEntryType = "other_payment"
	EntryTypeRefund         LedgerEntryType = "refund"
	EntryTypePlatformFee    LedgerEntryType = "platform_fee"
	EntryTypeProcessingFee  LedgerEntryType = "processing_fee"
	EntryTypeMaintenance    LedgerEntryType = "maintenance"
	EntryTypeOtherDeduction LedgerEntryType = "other_deduction"
	EntryTypeDisbursement   LedgerEntryType = "disbursement"
	EntryTypeCorrection     LedgerEntryType = "correction"
	EntryTypeVoid           LedgerEntryType = "void"
)

// LedgerEntry is a single, immutable line within a journal affecting exactly
// one account. Entries are append-only: nothing in this package ever mutates
// a persisted entry's fields. SequenceNumber is strictly increasing and
// gapless per (tenant, account); BalanceAfter equals the running sum of all
// prior directional amounts on that account through this entry.
type LedgerEntry struct {
	ID             LedgerEntryID   `json:"id"`
	TenantID       TenantID        `json:"tenantId"`
	AccountID      AccountID       `json:"accountId"`
	JournalID      JournalID       `json:"journalId"`
	Type           LedgerEntryType `json:"type"`
	Direction      Direction       `json:"direction"`
	Amount         Money           `json:"amount"`
	BalanceAfter   Money           `json:"balanceAfter"`
	SequenceNumber int64           `json:"sequenceNumber"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	PostedAt       time.Time       `json:"postedAt"`
	Description    string          `json:"description,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	PaymentIntentID PaymentIntentID `json:"paymentIntentId,omitempty"`
	LeaseID        LeaseID         `json:"leaseId,omitempty"`
	PropertyID     PropertyID      `json:"propertyId,omitempty"`
	UnitID         UnitID          `json:"unitId,omitempty"`
	CorrectionOf   LedgerEntryID   `json:"correctionOf,omitempty"`
	CreatedBy      string          `json:"createdBy"`
}

// JournalLine is one requested posting line, supplied by a caller before the
// ledger engine allocates sequence numbers and computes running balances.
type JournalLine struct {
	AccountID   AccountID
	Direction   Direction
	Amount      Money
	Type        LedgerEntryType
	Description string
	Reference   string
	PaymentIntentID PaymentIntentID
	LeaseID     LeaseID
	PropertyID  PropertyID
	UnitID      UnitID
	CorrectionOf LedgerEntryID
}

// PostJournalRequest is the input to the ledger engine's journal posting
// operation.
type PostJournalRequest struct {
	TenantID      TenantID
	EffectiveDate time.Time
	Description   string
	Currency      CurrencyCode
	Lines         []JournalLine
	CreatedBy     string
}

// JournalResult is the outcome of a successful journal posting, correction,
// or void.
type JournalResult struct {
	Journal Journal
	Entries []LedgerEntry
}

// VerificationReport is the result of comparing an account's materialised
// balance against the sum recomputed from its entries.
type VerificationReport struct {
	AccountID        AccountID
	MaterialisedBalance Money
	RecomputedBalance   Money
	Drift               int64
	Matches             bool
}

// SequenceReport is the result of verify_sequence: any gaps or duplicates
// found in an account's sequence numbers.
type SequenceReport struct {
	AccountID  AccountID
	EntryCount int64
	Gaps       []int64
	Duplicates []int64
	Valid      bool
}

// PagedEntries is a page of ledger entries plus an opaque continuation token.
type PagedEntries struct {
	Entries    []LedgerEntry
	NextToken  string
	HasMore    bool
}

// PeriodView is a read-only projection of an account's activity over a date
// range, used by both the ledger engine's statement() contract and the
// statement builder.
type PeriodView struct {
	AccountID      AccountID
	From           time.Time
	To             time.Time
	OpeningBalance Money
	ClosingBalance Money
	Entries        []LedgerEntry
}
