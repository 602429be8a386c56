// Package money formats integer minor-unit amounts for people.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var symbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// Format renders cents as "$12.50"; unknown currencies render as "12.50 CHF".
func Format(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	cur := strings.ToLower(strings.TrimSpace(currency))
	if cur == "" {
		cur = "usd"
	}
	if sym, ok := symbols[cur]; ok {
		if strings.HasPrefix(amount, "-") {
			return "-" + sym + amount[1:]
		}
		return sym + amount
	}
	return amount + " " + strings.ToUpper(cur)
}

// FromMajor converts a major-unit amount ("55.5") to cents, rounding half away from zero.
func FromMajor(major string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(major))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
