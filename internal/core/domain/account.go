package domain

// AccountType is the closed set of ledger account roles the platform
// understands. Downstream categorisation (asset vs liability vs equity) is a
// reporting concern of the statement builder, not of posting itself.
type AccountType string

const (
	AccountCustomerLiability AccountType = "customer_liability"
	AccountOwnerOperating    AccountType = "owner_operating"
	AccountPlatformHolding   AccountType = "platform_holding"
	AccountPlatformRevenue   AccountType = "platform_revenue"
)

// AccountStatus is the lifecycle state of an account. Accounts are never
// deleted, only suspended or closed.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// AccountScope ties an account to the property-management entity it tracks.
// At most one of these is set; all are optional since platform-level
// accounts (platform_holding, platform_revenue) have no scope.
type AccountScope struct {
	CustomerID CustomerID `json:"customerId,omitempty"`
	OwnerID    OwnerID    `json:"ownerId,omitempty"`
	PropertyID PropertyID `json:"propertyId,omitempty"`
}

// Account is a financial account owned by a tenant. BalanceMinor, LastEntryID
// and EntryCount are materialised from the ledger entries posted against it;
// Version is an opaque optimistic-concurrency counter bumped on every balance
// mutation.
type Account struct {
	ID           AccountID     `json:"id"`
	TenantID     TenantID      `json:"tenantId"`
	Name         string        `json:"name"`
	Type         AccountType   `json:"type"`
	Currency     CurrencyCode  `json:"currency"`
	Status       AccountStatus `json:"status"`
	BalanceMinor int64         `json:"balanceMinor"`
	LastEntryID  LedgerEntryID `json:"lastEntryId,omitempty"`
	EntryCount   int64         `json:"entryCount"`
	Scope        AccountScope  `json:"scope"`
	Version      int64         `json:"version"`
	AuditFields
}

// Balance returns the account's materialised balance as a Money value.
func (a Account) Balance() Money {
	return Money{AmountMinor: a.BalanceMinor, Currency: a.Currency}
}

// IsActive reports whether the account currently accepts postings.
func (a Account) IsActive() bool {
	return a.Status == AccountActive
}
