package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumByCurrencyGroupsAndSorts(t *testing.T) {
	items := []Amount{
		{Currency: "EUR", Value: 100},
		{Currency: "USD", Value: 40},
		{Currency: "EUR", Value: 50.5},
		{Currency: "GEL", Value: 700},
		{Currency: "USD", Value: 10},
	}

	got := SumByCurrency(items)

	require.Equal(t, []Amount{
		{Currency: "GEL", Value: 700},
		{Currency: "EUR", Value: 150.5},
		{Currency: "USD", Value: 50},
	}, got)
}

func TestSumByCurrencyOmitsZeroTotals(t *testing.T) {
	items := []Amount{
		{Currency: "USD", Value: 25},
		{Currency: "USD", Value: -25},
		{Currency: "EUR", Value: 10},
	}

	got := SumByCurrency(items)

	require.Equal(t, []Amount{{Currency: "EUR", Value: 10}}, got)
}

func TestSumByCurrencyEmpty(t *testing.T) {
	require.Empty(t, SumByCurrency(nil))
}

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name     string
		previous float64
		current  float64
		want     int
	}{
		{"both zero", 0, 0, 0},
		{"from zero", 0, 5, 100},
		{"halved", 10, 5, -50},
		{"doubled", 5, 10, 100},
		{"flat", 7, 7, 0},
		{"rounds", 3, 4, 33},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, PercentChange(tc.previous, tc.current))
		})
	}
}

func TestInvoiceTotalClampsAtZero(t *testing.T) {
	require.Equal(t, 250.0, InvoiceTotal(300, 50))
	require.Equal(t, 0.0, InvoiceTotal(40, 100))
	require.Equal(t, 0.0, InvoiceTotal(0, 0))
}

func TestLineTotalRounds(t *testing.T) {
	require.Equal(t, 33.33, LineTotal(3, 11.111))
}
