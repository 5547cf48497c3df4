// Package money provides pure helpers for grouping and comparing monetary
// amounts. Amounts are never converted between currencies; the business
// invoices in GEL, USD and EUR without hedging, so every multi-currency
// figure stays a grouped list.
package money

import (
	"math"
	"sort"
)

// Amount tags a value with its 3-letter currency code.
type Amount struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

// Round2 rounds to two-decimal fixed point, the resolution every stored
// monetary field uses.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SumByCurrency groups items by currency code and sums them. The result is
// sorted descending by amount; currencies that net to zero are omitted.
func SumByCurrency(items []Amount) []Amount {
	totals := make(map[string]float64)
	for _, item := range items {
		totals[item.Currency] += item.Value
	}
	out := make([]Amount, 0, len(totals))
	for currency, value := range totals {
		value = Round2(value)
		if value == 0 {
			continue
		}
		out = append(out, Amount{Currency: currency, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// PercentChange returns the integer percent change from previous to current.
// A zero previous yields 100 when current is positive and 0 otherwise, so
// the "infinite growth" case stays a flat 100%.
func PercentChange(previous, current float64) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round((current - previous) / previous * 100))
}

// LineTotal computes a service line total at two-decimal resolution.
func LineTotal(quantity, unitPrice float64) float64 {
	return Round2(quantity * unitPrice)
}

// InvoiceTotal applies the franchise deductible to a subtotal, clamped at
// zero so a franchise larger than the subtotal never produces a negative
// payable.
func InvoiceTotal(subtotal, franchise float64) float64 {
	total := Round2(subtotal - franchise)
	if total < 0 {
		return 0
	}
	return total
}
