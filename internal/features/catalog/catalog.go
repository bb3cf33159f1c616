package catalog

import (
	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/common"
)

const (
	weeksPerMonth = 4
	daysPerWeek   = 7
	daysPerMonth  = 30
)

// monthlyRate is the 12.5% discount applied on top of 4 weeks.
var monthlyRate = decimal.RequireFromString("0.875")

// PriceFor returns the cost of one period given the weekly price.
// Weekly is returned unchanged; monthly is round(weekly × 4 × 0.875).
func PriceFor(weekly decimal.Decimal, d Duration) decimal.Decimal {
	if d != Monthly {
		return weekly
	}
	return weekly.Mul(decimal.NewFromInt(weeksPerMonth)).Mul(monthlyRate).Round(0)
}

// DaysFor returns the length of a billing period in days.
func DaysFor(d Duration) int {
	if d == Monthly {
		return daysPerMonth
	}
	return daysPerWeek
}

// WeeklyFromTotal recovers the weekly price from what a package cost:
// total for weekly packages, total / 4 for monthly ones, rounded to cents.
func WeeklyFromTotal(total decimal.Decimal, d Duration) decimal.Decimal {
	if d == Monthly {
		return total.Div(decimal.NewFromInt(weeksPerMonth)).Round(common.MoneyPlaces)
	}
	return total
}

// PriceList holds the configured weekly price of each tier.
// Tiers without a positive price are quoted by the caller.
type PriceList map[Tier]decimal.Decimal

// NewPriceList builds a list from per-tier weekly prices, skipping zeros.
func NewPriceList(basic, premium, elite decimal.Decimal) PriceList {
	pl := PriceList{}
	for tier, price := range map[Tier]decimal.Decimal{
		TierBasic:   basic,
		TierPremium: premium,
		TierElite:   elite,
	} {
		if price.IsPositive() {
			pl[tier] = price
		}
	}
	return pl
}

// Quote validates a caller-supplied cost for tier and duration.
// When the tier has a configured price the quote must match PriceFor exactly.
func (pl PriceList) Quote(tier Tier, d Duration, quoted decimal.Decimal) (decimal.Decimal, error) {
	if err := common.CheckMoney("totalCost", quoted); err != nil {
		return decimal.Zero, err
	}
	weekly, ok := pl[tier]
	if !ok {
		return quoted, nil
	}
	if expected := PriceFor(weekly, d); !expected.Equal(quoted) {
		return decimal.Zero, common.ErrPriceMismatch
	}
	return quoted, nil
}
