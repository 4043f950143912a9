package domain

import (
	"fmt"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
)

// CurrencyCode is a closed set of ISO-4217-style currency codes supported by
// the platform. Adding a currency means adding a constant and a row to
// currencyMinorUnitExponent — never accepting an arbitrary string.
type CurrencyCode string

const (
	KES CurrencyCode = "KES"
	USD CurrencyCode = "USD"
	EUR CurrencyCode = "EUR"
	GBP CurrencyCode = "GBP"
	TZS CurrencyCode = "TZS"
	UGX CurrencyCode = "UGX"
)

// currencyMinorUnitExponent holds the number of minor-unit decimal places
// per currency. All currencies the platform supports today use 100 minor
// units per major unit; the table exists so a future currency with a
// different exponent (e.g. a zero-decimal currency) is a one-line addition.
var currencyMinorUnitExponent = map[CurrencyCode]int{
	KES: 2,
	USD: 2,
	EUR: 2,
	GBP: 2,
	TZS: 2,
	UGX: 2,
}

// IsValidCurrency reports whether code is one of the supported currencies.
func IsValidCurrency(code CurrencyCode) bool {
	_, ok := currencyMinorUnitExponent[code]
	return ok
}

// Money is an (amount, currency) pair expressed in integer minor units. No
// floating point is used for monetary values anywhere in this type.
type Money struct {
	AmountMinor int64
	Currency    CurrencyCode
}

// NewMoney constructs a Money value, rejecting unsupported currencies.
func NewMoney(amountMinor int64, currency CurrencyCode) (Money, error) {
	if !IsValidCurrency(currency) {
		return Money{}, fmt.Errorf("%w: unsupported currency %q", apperrors.ErrValidation, currency)
	}
	return Money{AmountMinor: amountMinor, Currency: currency}, nil
}

// ZeroMoney returns a zero-valued Money in the given currency.
func ZeroMoney(currency CurrencyCode) Money {
	return Money{AmountMinor: 0, Currency: currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.AmountMinor == 0 }

// IsNegative reports whether the amount is strictly negative.
func (m Money) IsNegative() bool { return m.AmountMinor < 0 }

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.AmountMinor > 0 }

// sameCurrency returns an error if m and other carry different currencies.
func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: currency mismatch %s vs %s", apperrors.ErrValidation, m.Currency, other.Currency)
	}
	return nil
}

// Add returns m + other. Fails if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{AmountMinor: m.AmountMinor + other.AmountMinor, Currency: m.Currency}, nil
}

// Sub returns m - other. Fails if the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{AmountMinor: m.AmountMinor - other.AmountMinor, Currency: m.Currency}, nil
}

// Neg returns the additive inverse of m.
func (m Money) Neg() Money {
	return Money{AmountMinor: -m.AmountMinor, Currency: m.Currency}
}

// Equal reports whether m and other have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.AmountMinor == other.AmountMinor
}

// LessThan reports whether m < other. Panics-free: returns false (not an
// error) on a currency mismatch is unsafe, so this requires equal currency;
// callers must only compare same-currency amounts, which holds everywhere in
// this codebase (journals span exactly one currency).
func (m Money) LessThan(other Money) bool {
	return m.Currency == other.Currency && m.AmountMinor < other.AmountMinor
}

// ApplyPercentHalfAwayFromZero computes round(amount * percent / 100) using
// half-away-from-zero rounding in integer minor units, matching the
// platform-fee rounding convention (spec §4.2).
func (m Money) ApplyPercentHalfAwayFromZero(percentBasisPoints int64) Money {
	// percentBasisPoints is percent * 100 (e.g. 2.5% == 250) to keep the whole
	// computation in integers.
	numerator := m.AmountMinor * percentBasisPoints
	denominator := int64(10000)
	result := halfAwayFromZeroDiv(numerator, denominator)
	return Money{AmountMinor: result, Currency: m.Currency}
}

func halfAwayFromZeroDiv(numerator, denominator int64) int64 {
	if denominator < 0 {
		numerator, denominator = -numerator, -denominator
	}
	neg := numerator < 0
	if neg {
		numerator = -numerator
	}
	quotient := numerator / denominator
	remainder := numerator % denominator
	if 2*remainder >= denominator {
		quotient++
	}
	if neg {
		quotient = -quotient
	}
	return quotient
}

// MajorUnits renders the amount as a major-unit decimal string with the
// currency's configured number of fraction digits, e.g. 104950 -> "1049.50".
// Used only at reporting/export boundaries (statement CSV/HTML export);
// ledger arithmetic never goes through this.
func (m Money) MajorUnits() string {
	exp, ok := currencyMinorUnitExponent[m.Currency]
	if !ok {
		exp = 2
	}
	neg := m.AmountMinor < 0
	abs := m.AmountMinor
	if neg {
		abs = -abs
	}
	scale := int64(1)
	for i := 0; i < exp; i++ {
		scale *= 10
	}
	whole := abs / scale
	frac := abs % scale
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d", sign, whole, exp, frac)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.MajorUnits(), m.Currency)
}
