package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alchemyst.ke/billing/internal/common"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceFor(t *testing.T) {
	tests := []struct {
		name   string
		weekly string
		d      Duration
		want   string
	}{
		{"weekly unchanged", "500", Weekly, "500"},
		{"weekly keeps fractions", "87.5", Weekly, "87.5"},
		{"monthly discount", "500", Monthly, "1750"},
		{"monthly rounds half up", "101", Monthly, "354"},
		{"monthly from fractional weekly", "87.5", Monthly, "306"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceFor(dec(tt.weekly), tt.d)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDaysFor(t *testing.T) {
	assert.Equal(t, 7, DaysFor(Weekly))
	assert.Equal(t, 30, DaysFor(Monthly))
}

func TestWeeklyFromTotal(t *testing.T) {
	assert.True(t, dec("600").Equal(WeeklyFromTotal(dec("600"), Weekly)))
	assert.True(t, dec("437.5").Equal(WeeklyFromTotal(dec("1750"), Monthly)))
	assert.True(t, dec("437.5").Equal(WeeklyFromTotal(dec("1750.01"), Monthly)), "rounded to cents")
}

func TestTierPriority(t *testing.T) {
	assert.Less(t, TierBasic.Priority(), TierPremium.Priority())
	assert.Less(t, TierPremium.Priority(), TierElite.Priority())
	assert.Equal(t, 0, Tier("gold").Priority())
}

func TestParse(t *testing.T) {
	tier, err := ParseTier(" Premium ")
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	_, err = ParseTier("gold")
	assert.ErrorIs(t, err, common.ErrUnknownTier)

	d, err := ParseDuration("MONTHLY")
	require.NoError(t, err)
	assert.Equal(t, Monthly, d)

	_, err = ParseDuration("daily")
	assert.ErrorIs(t, err, common.ErrUnknownDuration)
}

func TestPriceListQuote(t *testing.T) {
	pl := NewPriceList(dec("500"), decimal.Zero, dec("1200"))

	got, err := pl.Quote(TierBasic, Monthly, dec("1750"))
	require.NoError(t, err)
	assert.True(t, dec("1750").Equal(got))

	_, err = pl.Quote(TierBasic, Weekly, dec("400"))
	assert.ErrorIs(t, err, common.ErrPriceMismatch)

	// premium has no configured price, the quote is trusted
	got, err = pl.Quote(TierPremium, Weekly, dec("42"))
	require.NoError(t, err)
	assert.True(t, dec("42").Equal(got))

	_, err = pl.Quote(TierPremium, Weekly, decimal.Zero)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = pl.Quote(TierPremium, Weekly, dec("42.005"))
	assert.Equal(t, common.KindValidation, common.KindOf(err), "sub-cent quote")

	got, err = pl.Quote(TierPremium, Weekly, dec("42.50"))
	require.NoError(t, err)
	assert.True(t, dec("42.5").Equal(got))
}
