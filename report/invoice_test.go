package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-assist/meridian/internal/invoices"
)

func TestLabelsForLanguageFallback(t *testing.T) {
	require.Equal(t, "Rechnung", labelsFor("de").Invoice)
	require.Equal(t, "Rechnung", labelsFor("de-CH").Invoice)
	require.Equal(t, "Facture", labelsFor("fr").Invoice)
	require.Equal(t, "Invoice", labelsFor("en").Invoice)
	require.Equal(t, "Invoice", labelsFor("nl").Invoice)
	require.Equal(t, "Invoice", labelsFor("not a tag").Invoice)
	require.Equal(t, "Invoice", labelsFor("").Invoice)
}

func TestInvoiceHTML(t *testing.T) {
	renderer, err := NewInvoiceRenderer(nil)
	require.NoError(t, err)

	html, err := renderer.html(invoices.RenderInput{
		Invoice: &invoices.Invoice{
			Number: "MA-202608-0042", Currency: "CHF",
			Subtotal: 1250, FranchiseAmount: 300, Total: 950,
			Language:  "de",
			CreatedAt: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		},
		Lines: []invoices.ServiceLine{
			{Description: "Rücktransport", Quantity: 1, UnitPrice: 1250, LineTotal: 1250},
		},
		Company: &invoices.Party{Name: "Meridian Assist AG", BankDetails: "IBAN CH93 0076 2011 6238 5295 7"},
		Partner: &invoices.Party{Name: "Alpine Insurance"},
		Case:    &invoices.CaseSummary{Number: "CASE-202608-0007", PatientName: "Erik Larsen"},
	})
	require.NoError(t, err)

	require.Contains(t, html, "Rechnung MA-202608-0042")
	require.Contains(t, html, "12.08.2026")
	require.Contains(t, html, "Rücktransport")
	require.Contains(t, html, "CHF 950.00")
	require.Contains(t, html, "Franchise")
	require.Contains(t, html, "IBAN CH93")
	require.NotContains(t, html, "<img")
}