package domain

import "time"

// DisbursementStatus is the closed set of states a Disbursement moves
// through on its way to (or away from) paying an owner out.
type DisbursementStatus string

const (
	DisbursementPending    DisbursementStatus = "pending"
	DisbursementProcessing DisbursementStatus = "processing"
	DisbursementInTransit  DisbursementStatus = "in_transit"
	DisbursementPaid       DisbursementStatus = "paid"
	DisbursementFailed     DisbursementStatus = "failed"
	DisbursementCancelled  DisbursementStatus = "cancelled"
)

// DestinationType identifies the kind of payout rail a disbursement targets.
type DestinationType string

const (
	DestinationBankAccount  DestinationType = "bank_account"
	DestinationMobileMoney  DestinationType = "mobile_money"
)

// Disbursement is a single payout to a property owner, linked back to the
// ledger entry that recorded its journal effect once posted.
type Disbursement struct {
	ID              DisbursementID     `json:"id"`
	TenantID        TenantID           `json:"tenantId"`
	OwnerID         OwnerID            `json:"ownerId"`
	Amount          Money              `json:"amount"`
	Status          DisbursementStatus `json:"status"`
	Destination     string             `json:"destination"`
	DestinationType DestinationType    `json:"destinationType"`
	ProviderName    string             `json:"providerName,omitempty"`
	TransferID      string             `json:"transferId,omitempty"`
	IdempotencyKey  string             `json:"idempotencyKey"`
	LedgerEntryID   LedgerEntryID      `json:"ledgerEntryId,omitempty"`
	FailureReason   string             `json:"failureReason,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	InitiatedAt     time.Time          `json:"initiatedAt,omitempty"`
	EstimatedArrival time.Time         `json:"estimatedArrival,omitempty"`
}

// DisbursementScheduleKind is the closed set of recurrence patterns the
// disbursement scheduler supports.
type DisbursementScheduleKind string

const (
	ScheduleDaily   DisbursementScheduleKind = "daily"
	ScheduleWeekly  DisbursementScheduleKind = "weekly"
	ScheduleMonthly DisbursementScheduleKind = "monthly"
)

// DisbursementSchedule configures a recurring disbursement batch run.
type DisbursementSchedule struct {
	Kind         DisbursementScheduleKind
	DayOfWeek    time.Weekday // only meaningful when Kind == ScheduleWeekly
	DayOfMonth   int          // only meaningful when Kind == ScheduleMonthly
	BatchSize    int
	DelayBetween time.Duration
	MinBalance   int64
}

// Breakdown is the categorised decomposition of an owner's gross income for
// a period into its component parts.
type Breakdown struct {
	OwnerID         OwnerID
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Currency        CurrencyCode
	Gross           int64
	PlatformFee     int64
	ProcessingFee   int64
	Maintenance     int64
	OtherDeductions int64
	Holdback        int64
	Net             int64
}

// Preview is the result of previewing a disbursement before executing it.
type Preview struct {
	OwnerID        OwnerID
	AvailableMinor int64
	RequestedMinor int64
	Currency       CurrencyCode
}

// OwnerBalance pairs an owner with their available operating balance, used
// by eligible_owners.
type OwnerBalance struct {
	OwnerID      OwnerID
	BalanceMinor int64
	Currency     CurrencyCode
}

// DisbursementRequest is the input to the disbursement service's process
// operation. Amount is optional: a nil AmountMinor means "disburse the full
// available balance".
type DisbursementRequest struct {
	TenantID       TenantID
	OwnerID        OwnerID
	AmountMinor    *int64
	Currency       CurrencyCode
	Destination    string
	DestinationType DestinationType
	IdempotencyKey string
}

// DisbursementResult is the outcome of processing a disbursement request.
type DisbursementResult struct {
	Disbursement Disbursement
	AlreadyExisted bool
}
