package domain

import "time"

// StatementType distinguishes which party a statement is produced for.
type StatementType string

const (
	StatementTypeOwner    StatementType = "owner"
	StatementTypeCustomer StatementType = "customer"
)

// StatementStatus is the closed lifecycle of a generated statement.
type StatementStatus string

const (
	StatementDraft     StatementStatus = "draft"
	StatementGenerated StatementStatus = "generated"
	StatementSent      StatementStatus = "sent"
	StatementViewed    StatementStatus = "viewed"
)

// PeriodType is the closed set of statement period shapes.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
	PeriodCustom    PeriodType = "custom"
)

// LineItem is one folded ledger entry in a statement, carrying a running
// balance.
type LineItem struct {
	Date        time.Time
	Type        LedgerEntryType
	Description string
	Reference   string
	DebitMinor  int64
	CreditMinor int64
	BalanceMinor int64
}

// CategorySummary aggregates a statement's line items by entry type.
type CategorySummary struct {
	Type        LedgerEntryType
	TotalDebitsMinor  int64
	TotalCreditsMinor int64
	NetMinor          int64
}

// Statement is a period-bounded, materialised view of an account's activity.
// At most one statement may exist per (tenant, account, type, period_start,
// period_end).
type Statement struct {
	ID                 StatementID       `json:"id"`
	TenantID           TenantID          `json:"tenantId"`
	Type               StatementType     `json:"type"`
	Status             StatementStatus   `json:"status"`
	AccountID          AccountID         `json:"accountId"`
	OwnerID            OwnerID           `json:"ownerId,omitempty"`
	CustomerID         CustomerID        `json:"customerId,omitempty"`
	PropertyID         PropertyID        `json:"propertyId,omitempty"`
	PeriodType         PeriodType        `json:"periodType"`
	PeriodStart        time.Time         `json:"periodStart"`
	PeriodEnd          time.Time         `json:"periodEnd"`
	Currency           CurrencyCode      `json:"currency"`
	OpeningBalanceMinor int64            `json:"openingBalanceMinor"`
	ClosingBalanceMinor int64            `json:"closingBalanceMinor"`
	TotalDebitsMinor    int64            `json:"totalDebitsMinor"`
	TotalCreditsMinor   int64            `json:"totalCreditsMinor"`
	LineItems          []LineItem        `json:"lineItems"`
	CategorySummaries  []CategorySummary `json:"categorySummaries"`
	GeneratedAt        time.Time         `json:"generatedAt"`
	SentAt             time.Time         `json:"sentAt,omitempty"`
	ViewedAt           time.Time         `json:"viewedAt,omitempty"`
	DeliveryDestination string           `json:"deliveryDestination,omitempty"`
}

// GenerateStatementRequest is the input to the statement builder's generate
// operation.
type GenerateStatementRequest struct {
	TenantID    TenantID
	Type        StatementType
	AccountID   AccountID
	OwnerID     OwnerID
	CustomerID  CustomerID
	PropertyID  PropertyID
	PeriodType  PeriodType
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// ExportFormat is the closed set of statement export encodings.
type ExportFormat string

const (
	ExportPDFHTML ExportFormat = "pdf-html"
	ExportCSV     ExportFormat = "csv"
	ExportJSON    ExportFormat = "json"
)

// ExportedStatement is the rendered output of exporting a Statement.
type ExportedStatement struct {
	Content     []byte
	ContentType string
	Filename    string
}
