package domain

// PayoutSettings holds a tenant's owner-disbursement configuration. Holdback
// is an explicit, tenant-configurable percentage (in basis-point-like percent
// form, see Money.ApplyPercentHalfAwayFromZero) withheld from owner payouts
// for anticipated expenses; a tenant that wants no holdback sets it to zero.
type PayoutSettings struct {
	HoldbackPercent int64 // percent * 100, e.g. 250 == 2.5%
}

// TenantView is the read-only projection of a tenant's billing configuration
// that the orchestrator and disbursement service need. It is supplied by the
// caller (the property-management platform is the system of record for
// tenants) rather than looked up from a hidden global, so the core stays
// exercisable without that collaborator.
type TenantView struct {
	ID             TenantID
	Name           string
	DefaultCurrency CurrencyCode
	FeePercent     int64 // percent * 100, e.g. 250 == 2.5%
	Payout         PayoutSettings
	IsActive       bool
}
