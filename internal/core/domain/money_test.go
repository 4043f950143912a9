package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
)

func TestNewMoney_RejectsUnsupportedCurrency(t *testing.T) {
	_, err := domain.NewMoney(1000, "XXX")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMoney_AddSubRejectCurrencyMismatch(t *testing.T) {
	usd := domain.Money{AmountMinor: 100, Currency: domain.USD}
	eur := domain.Money{AmountMinor: 100, Currency: domain.EUR}

	_, err := usd.Add(eur)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = usd.Sub(eur)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMoney_AddSub(t *testing.T) {
	a := domain.Money{AmountMinor: 700, Currency: domain.USD}
	b := domain.Money{AmountMinor: 300, Currency: domain.USD}

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum.AmountMinor)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(400), diff.AmountMinor)
}

func TestApplyPercentHalfAwayFromZero_RoundsHalfUpInMagnitude(t *testing.T) {
	cases := []struct {
		name        string
		amountMinor int64
		basisPoints int64
		want        int64
	}{
		{"exact 2.5 percent", 10000, 250, 250},
		{"half cent rounds up in magnitude", 101, 250, 3},
		{"half cent on negative amount rounds away from zero", -101, 250, -3},
		{"below half rounds down", 101, 10, 0},
		{"zero amount", 0, 250, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := domain.Money{AmountMinor: tc.amountMinor, Currency: domain.USD}
			got := m.ApplyPercentHalfAwayFromZero(tc.basisPoints)
			assert.Equal(t, tc.want, got.AmountMinor)
		})
	}
}

func TestMoney_MajorUnits(t *testing.T) {
	assert.Equal(t, "1049.50", domain.Money{AmountMinor: 104950, Currency: domain.USD}.MajorUnits())
	assert.Equal(t, "-5.00", domain.Money{AmountMinor: -500, Currency: domain.USD}.MajorUnits())
	assert.Equal(t, "0.01", domain.Money{AmountMinor: 1, Currency: domain.USD}.MajorUnits())
}

func TestMoney_IsZeroNegativePositive(t *testing.T) {
	assert.True(t, domain.Money{AmountMinor: 0, Currency: domain.USD}.IsZero())
	assert.True(t, domain.Money{AmountMinor: -1, Currency: domain.USD}.IsNegative())
	assert.True(t, domain.Money{AmountMinor: 1, Currency: domain.USD}.IsPositive())
}
