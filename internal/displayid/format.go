// Package displayid assigns the short order numbers customers see
// ("25-014"): a two-digit year and a per-year sequence.
package displayid

import (
	"fmt"
	"time"

	"github.com/Skotchmaster/handmade_shop/internal/models"
)

// Format zero-pads the sequence to three digits. Sequences past 999 simply
// get wider.
func Format(year, counter int) string {
	return fmt.Sprintf("%02d-%03d", year%100, counter)
}

// YearOf returns the two-digit year of createdAt, or of now when createdAt
// cannot be parsed.
func YearOf(createdAt string, now time.Time) int {
	if t, ok := models.ParseTimestamp(createdAt); ok {
		return t.Year() % 100
	}
	return now.Year() % 100
}
