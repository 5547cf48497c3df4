package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"

	"github.com/meridian-assist/meridian/internal/invoices"
)

// InvoiceRenderer builds the invoice HTML and hands it to Gotenberg.
type InvoiceRenderer struct {
	client *Client
	tmpl   *template.Template
}

// NewInvoiceRenderer constructs a renderer bound to a Gotenberg client.
func NewInvoiceRenderer(client *Client) (*InvoiceRenderer, error) {
	tmpl, err := template.New("invoice").Funcs(template.FuncMap{
		"amount": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).Parse(invoiceTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse invoice template: %w", err)
	}
	return &InvoiceRenderer{client: client, tmpl: tmpl}, nil
}

// labels holds the printed strings per document language.
type labels struct {
	Invoice     string
	Date        string
	Case        string
	Patient     string
	Description string
	Quantity    string
	UnitPrice   string
	LineTotal   string
	Subtotal    string
	Franchise   string
	Total       string
	BankDetails string
}

var labelSets = map[string]labels{
	"en": {
		Invoice: "Invoice", Date: "Date", Case: "Case", Patient: "Patient",
		Description: "Description", Quantity: "Qty", UnitPrice: "Unit price",
		LineTotal: "Amount", Subtotal: "Subtotal", Franchise: "Franchise deductible",
		Total: "Total due", BankDetails: "Payment details",
	},
	"de": {
		Invoice: "Rechnung", Date: "Datum", Case: "Fall", Patient: "Patient",
		Description: "Beschreibung", Quantity: "Menge", UnitPrice: "Einzelpreis",
		LineTotal: "Betrag", Subtotal: "Zwischensumme", Franchise: "Franchise",
		Total: "Gesamtbetrag", BankDetails: "Zahlungsverbindung",
	},
	"fr": {
		Invoice: "Facture", Date: "Date", Case: "Dossier", Patient: "Patient",
		Description: "Description", Quantity: "Qté", UnitPrice: "Prix unitaire",
		LineTotal: "Montant", Subtotal: "Sous-total", Franchise: "Franchise",
		Total: "Total dû", BankDetails: "Coordonnées bancaires",
	},
}

var labelMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
	language.French,
})

// labelsFor resolves the label set for a BCP 47 tag, falling back to
// English for anything unknown.
func labelsFor(lang string) labels {
	tag, err := language.Parse(lang)
	if err != nil {
		return labelSets["en"]
	}
	_, index, _ := labelMatcher.Match(tag)
	switch index {
	case 1:
		return labelSets["de"]
	case 2:
		return labelSets["fr"]
	default:
		return labelSets["en"]
	}
}

type invoiceView struct {
	L        labels
	Invoice  *invoices.Invoice
	Lines    []invoices.ServiceLine
	Company  *invoices.Party
	Partner  *invoices.Party
	Case     *invoices.CaseSummary
	IssuedOn string
}

func (r *InvoiceRenderer) html(input invoices.RenderInput) (string, error) {
	issued := input.Invoice.CreatedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	view := invoiceView{
		L:        labelsFor(input.Invoice.Language),
		Invoice:  input.Invoice,
		Lines:    input.Lines,
		Company:  input.Company,
		Partner:  input.Partner,
		Case:     input.Case,
		IssuedOn: issued.Format("02.01.2006"),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("report: render invoice %s: %w", input.Invoice.Number, err)
	}
	return buf.String(), nil
}

// RenderInvoice produces the invoice PDF.
func (r *InvoiceRenderer) RenderInvoice(ctx context.Context, input invoices.RenderInput) ([]byte, error) {
	html, err := r.html(input)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
	body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 40px; }
	.header { display: flex; justify-content: space-between; margin-bottom: 32px; }
	.logo { max-height: 64px; }
	h1 { font-size: 20px; margin: 0 0 4px 0; }
	.meta { color: #555; }
	.parties { display: flex; justify-content: space-between; margin-bottom: 24px; }
	table { width: 100%; border-collapse: collapse; margin-bottom: 24px; }
	th { text-align: left; border-bottom: 2px solid #1a1a1a; padding: 6px 4px; }
	td { border-bottom: 1px solid #ddd; padding: 6px 4px; }
	td.num, th.num { text-align: right; }
	.totals { width: 40%; margin-left: auto; }
	.totals td { border: none; padding: 3px 4px; }
	.totals .grand { font-weight: bold; border-top: 2px solid #1a1a1a; }
	.bank { margin-top: 32px; padding-top: 12px; border-top: 1px solid #ddd; white-space: pre-line; }
</style>
</head>
<body>
	<div class="header">
		<div>
			<h1>{{.L.Invoice}} {{.Invoice.Number}}</h1>
			<div class="meta">{{.L.Date}}: {{.IssuedOn}}</div>
			<div class="meta">{{.L.Case}}: {{.Case.Number}}</div>
			<div class="meta">{{.L.Patient}}: {{.Case.PatientName}}</div>
		</div>
		{{if .Company.LogoURL}}<img class="logo" src="{{.Company.LogoURL}}">{{end}}
	</div>
	<div class="parties">
		<div>
			<strong>{{.Company.Name}}</strong><br>
			{{.Company.Address}}<br>
			{{.Company.Email}}
		</div>
		<div>
			<strong>{{.Partner.Name}}</strong><br>
			{{.Partner.Address}}<br>
			{{.Partner.Email}}
		</div>
	</div>
	<table>
		<tr>
			<th>{{.L.Description}}</th>
			<th class="num">{{.L.Quantity}}</th>
			<th class="num">{{.L.UnitPrice}}</th>
			<th class="num">{{.L.LineTotal}}</th>
		</tr>
		{{range .Lines}}
		<tr>
			<td>{{.Description}}</td>
			<td class="num">{{.Quantity}}</td>
			<td class="num">{{amount .UnitPrice}}</td>
			<td class="num">{{amount .LineTotal}}</td>
		</tr>
		{{end}}
	</table>
	<table class="totals">
		<tr><td>{{.L.Subtotal}}</td><td class="num">{{.Invoice.Currency}} {{amount .Invoice.Subtotal}}</td></tr>
		{{if gt .Invoice.FranchiseAmount 0.0}}
		<tr><td>{{.L.Franchise}}</td><td class="num">-{{.Invoice.Currency}} {{amount .Invoice.FranchiseAmount}}</td></tr>
		{{end}}
		<tr class="grand"><td>{{.L.Total}}</td><td class="num">{{.Invoice.Currency}} {{amount .Invoice.Total}}</td></tr>
	</table>
	{{if .Company.BankDetails}}
	<div class="bank"><strong>{{.L.BankDetails}}</strong><br>{{.Company.BankDetails}}</div>
	{{end}}
</body>
</html>`
