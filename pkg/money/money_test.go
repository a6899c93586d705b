package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

func TestArithmeticRejectsCurrencyMismatch(t *testing.T) {
	ngn := New(500, enums.CurrencyNGN)
	usd := New(500, enums.CurrencyUSD)

	_, err := ngn.Add(usd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCurrencyMismatch))

	sum, err := ngn.Add(New(250, enums.CurrencyNGN))
	require.NoError(t, err)
	assert.Equal(t, int64(750), sum.Amount)

	diff, err := ngn.Sub(New(800, enums.CurrencyNGN))
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
}

func TestPercentCeilFavoursPlatform(t *testing.T) {
	rate := decimal.NewFromInt(10)
	assert.Equal(t, int64(500), New(5000, enums.CurrencyNGN).PercentCeil(rate).Amount)

	// 10% of 4999 is 499.9; the platform takes 500.
	assert.Equal(t, int64(500), New(4999, enums.CurrencyNGN).PercentCeil(rate).Amount)
	assert.Equal(t, int64(499), New(4999, enums.CurrencyNGN).PercentFloor(rate).Amount)

	odd := decimal.RequireFromString("7.5")
	assert.Equal(t, int64(8), New(101, enums.CurrencyNGN).PercentCeil(odd).Amount)
}

func TestMin(t *testing.T) {
	got, err := Min(New(500, enums.CurrencyNGN), New(300, enums.CurrencyNGN))
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Amount)
}

func TestFromMajorAndString(t *testing.T) {
	m, err := FromMajor("45.50", enums.CurrencyNGN)
	require.NoError(t, err)
	assert.Equal(t, int64(4550), m.Amount)
	assert.Equal(t, "45.50 NGN", m.String())

	_, err = FromMajor("1.005", enums.CurrencyNGN)
	require.Error(t, err)

	yen, err := FromMajor("120", enums.CurrencyJPY)
	require.NoError(t, err)
	assert.Equal(t, int64(120), yen.Amount)
}
