// Package lineitems tells shipping charges apart from merchandise in
// checkout line items.
//
// The processor has no native shipping flag. Sessions created by this shop
// tag the shipping line with a metadata marker; older sessions predate the
// tag, so free-text matching on the description and product name is kept
// as a fallback. Metadata always wins over text.
package lineitems

import (
	"math"
	"strings"
)

const (
	MarkerKey      = "mv_line_type"
	MarkerShipping = "shipping"
)

type LineItem struct {
	Description     string
	ProductName     string
	Quantity        *int64
	UnitAmount      *int64
	AmountTotal     *float64
	Metadata        map[string]string
	PriceMetadata   map[string]string
	ProductMetadata map[string]string
}

// IsShipping applies the rules in order; the first match wins.
func IsShipping(item LineItem) bool {
	switch {
	case item.Metadata[MarkerKey] == MarkerShipping:
		return true
	case item.PriceMetadata[MarkerKey] == MarkerShipping:
		return true
	case item.ProductMetadata[MarkerKey] == MarkerShipping:
		return true
	case mentionsShipping(item.Description):
		return true
	case mentionsShipping(item.ProductName):
		return true
	}
	return false
}

func mentionsShipping(s string) bool {
	return strings.Contains(strings.ToLower(s), MarkerShipping)
}

// LineTotal is amount_total when present, otherwise quantity × unit amount
// (quantity defaults to 1), rounded to a whole minor unit.
func LineTotal(item LineItem) int64 {
	if item.AmountTotal != nil {
		return roundMinor(*item.AmountTotal)
	}
	qty := int64(1)
	if item.Quantity != nil {
		qty = *item.Quantity
	}
	var unit int64
	if item.UnitAmount != nil {
		unit = *item.UnitAmount
	}
	return qty * unit
}

func roundMinor(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

// ExtractShippingTotal sums the line totals of shipping items. Each line is
// rounded before it is added.
func ExtractShippingTotal(items []LineItem) int64 {
	var sum int64
	for _, it := range items {
		if IsShipping(it) {
			sum += LineTotal(it)
		}
	}
	return sum
}

func FilterMerchandise(items []LineItem) []LineItem {
	merch, _ := Partition(items)
	return merch
}

// Partition splits items keeping their relative order.
func Partition(items []LineItem) (merchandise, shipping []LineItem) {
	merchandise = make([]LineItem, 0, len(items))
	for _, it := range items {
		if IsShipping(it) {
			shipping = append(shipping, it)
		} else {
			merchandise = append(merchandise, it)
		}
	}
	return merchandise, shipping
}

func SumTotals(items []LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += LineTotal(it)
	}
	return sum
}
