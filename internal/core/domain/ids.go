package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifiers are branded string types so the compiler rejects passing an
// AccountID where a PaymentIntentID is expected, even though both are plain
// strings underneath. Constructors validate format (non-empty, well-formed
// UUID for generated IDs); scope identifiers accept any caller-supplied
// opaque string since they originate in an external system (property
// management platform).

type (
	TenantID        string
	CustomerID      string
	OwnerID         string
	PropertyID      string
	UnitID          string
	LeaseID         string
	AccountID       string
	LedgerEntryID   string
	JournalID       string
	PaymentIntentID string
	DisbursementID  string
	StatementID     string
	ReconciliationID string
)

// NewAccountID mints a fresh, randomly generated account identifier.
func NewAccountID() AccountID { return AccountID(uuid.NewString()) }

// NewLedgerEntryID mints a fresh ledger entry identifier.
func NewLedgerEntryID() LedgerEntryID { return LedgerEntryID(uuid.NewString()) }

// NewJournalID mints a fresh journal identifier.
func NewJournalID() JournalID { return JournalID(uuid.NewString()) }

// NewPaymentIntentID mints a fresh payment intent identifier.
func NewPaymentIntentID() PaymentIntentID { return PaymentIntentID(uuid.NewString()) }

// NewDisbursementID mints a fresh disbursement identifier.
func NewDisbursementID() DisbursementID { return DisbursementID(uuid.NewString()) }

// NewStatementID mints a fresh statement identifier.
func NewStatementID() StatementID { return StatementID(uuid.NewString()) }

// NewReconciliationID mints a fresh reconciliation record identifier.
func NewReconciliationID() ReconciliationID { return ReconciliationID(uuid.NewString()) }

// ValidateTenantID rejects an empty tenant scope identifier. Scope
// identifiers (tenant/customer/owner/property/unit/lease) are opaque
// strings owned by the property-management platform; this package only
// guards against the empty value, which always indicates a caller bug.
func ValidateTenantID(id TenantID) error {
	if id == "" {
		return fmt.Errorf("tenant id must not be empty")
	}
	return nil
}
