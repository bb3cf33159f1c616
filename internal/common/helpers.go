// Package common contains small utilities shared across the project:
// money formatting, pluralization and time zone helpers.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// eatOffset is East Africa Time (UTC+3), used when tzdata is missing.
const eatOffset = 3 * 60 * 60

// LoadLocation resolves an IANA zone name. If tzdata is unavailable in the
// container it falls back to a fixed UTC+3 zone.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("zone", name).Warn("Failed to load time zone, falling back to UTC+3")
		return time.FixedZone("EAT", eatOffset)
	}
	return loc
}

// MoneyPlaces is the precision of every stored amount (NUMERIC(14,2)).
const MoneyPlaces = 2

// CheckMoney rejects amounts that are not positive or carry more than
// MoneyPlaces decimals. Storage would round those silently.
func CheckMoney(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Invalid(field, "must be positive")
	}
	if !amount.Equal(amount.Truncate(MoneyPlaces)) {
		return Invalid(field, fmt.Sprintf("must have at most %d decimal places", MoneyPlaces))
	}
	return nil
}

// Plural picks the singular or plural form for n.
//
//	Plural(1, "day", "days")  → "day"
//	Plural(30, "day", "days") → "days"
func Plural(n int, singular, plural string) string {
	if n == 1 || n == -1 {
		return singular
	}
	return plural
}

// FormatNumber groups the integer part with commas.
// Example: FormatNumber(2350) → "2,350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatNumber(n/1000), n%1000)
}

// FormatAmount renders a wallet amount with its currency.
//
//	FormatAmount(decimal.NewFromInt(1500), "KES")      → "KES 1,500"
//	FormatAmount(decimal.RequireFromString("87.5"), "KES") → "KES 87.50"
func FormatAmount(amount decimal.Decimal, currency string) string {
	amount = amount.Round(MoneyPlaces)
	whole := amount.Truncate(0)
	text := FormatNumber(whole.IntPart())
	if !amount.Equal(whole) {
		frac := amount.Sub(whole).Abs().StringFixed(2)
		text += strings.TrimPrefix(frac, "0")
	}
	if amount.IsNegative() && whole.IsZero() {
		text = "-" + text
	}
	return strings.TrimSpace(currency + " " + text)
}

// FormatDateTime formats a timestamp as "02.01.2006 15:04" in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
