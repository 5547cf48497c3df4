package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-assist/meridian/internal/money"
	"github.com/meridian-assist/meridian/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	CreateInvoice(ctx context.Context, inv Invoice, lines []ServiceLine) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	ListLines(ctx context.Context, invoiceID int64) ([]ServiceLine, error)
	UpdateInvoice(ctx context.Context, inv Invoice, lines []ServiceLine, replaceLines bool) (*Invoice, error)
	MarkPaid(ctx context.Context, id int64, input MarkPaidInput) (*Invoice, error)
	Cancel(ctx context.Context, id int64) (*Invoice, error)
	PromoteToUnpaid(ctx context.Context, id int64) (*Invoice, error)
	SoftDelete(ctx context.Context, id int64) error

	RecordSend(ctx context.Context, send InvoiceSend) (*InvoiceSend, error)
	ListSends(ctx context.Context, invoiceID int64) ([]InvoiceSend, error)
	SetPDFGenerated(ctx context.Context, id int64, at time.Time) error

	CompanyParty(ctx context.Context, id int64) (*Party, error)
	PartnerParty(ctx context.Context, id int64) (*Party, error)
	CaseSummaryByID(ctx context.Context, id int64) (*CaseSummary, error)
	CaseDocuments(ctx context.Context, caseID int64, categories []string) ([]DocumentRef, error)
}

// RenderInput bundles everything the PDF renderer needs for one invoice.
type RenderInput struct {
	Invoice *Invoice
	Lines   []ServiceLine
	Company *Party
	Partner *Party
	Case    *CaseSummary
}

// Renderer turns an invoice into a PDF document.
type Renderer interface {
	RenderInvoice(ctx context.Context, input RenderInput) ([]byte, error)
}

// ReportInvalidator bumps the reporting cache after a mutation. Optional.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Service handles invoice business logic: money recomputation on every
// line change, lifecycle guards and the send pipeline.
type Service struct {
	repo        RepositoryPort
	sender      *Sender
	invalidator ReportInvalidator
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, sender *Sender, invalidator ReportInvalidator) *Service {
	return &Service{repo: repo, sender: sender, invalidator: invalidator}
}

func buildLines(inputs []ServiceLineInput) ([]ServiceLine, float64, error) {
	if len(inputs) == 0 {
		return nil, 0, shared.Validationf("at least one service line is required")
	}
	lines := make([]ServiceLine, 0, len(inputs))
	var subtotal float64
	for i, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			return nil, 0, shared.Validationf("line %d: description is required", i+1)
		}
		if in.Quantity <= 0 {
			return nil, 0, shared.Validationf("line %d: quantity must be positive", i+1)
		}
		if in.UnitPrice < 0 {
			return nil, 0, shared.Validationf("line %d: unit price cannot be negative", i+1)
		}
		total := money.LineTotal(in.Quantity, in.UnitPrice)
		lines = append(lines, ServiceLine{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			LineTotal:   total,
			SortOrder:   i + 1,
		})
		subtotal += total
	}
	return lines, money.Round2(subtotal), nil
}

// Create issues a new invoice. Totals are always derived from the lines;
// clients cannot set them directly.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInvoiceInput) (*Invoice, error) {
	_ = actor
	if input.CaseID == 0 || input.CompanyID == 0 || input.PartnerID == 0 {
		return nil, shared.Validationf("case, company and partner are required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return nil, shared.Validationf("currency must be a 3-letter code")
	}
	if input.FranchiseAmount < 0 {
		return nil, shared.Validationf("franchise amount cannot be negative")
	}
	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusUnpaid {
		return nil, shared.Validationf("new invoices start as draft or unpaid, not %q", status)
	}
	lines, subtotal, err := buildLines(input.Lines)
	if err != nil {
		return nil, err
	}

	language := input.Language
	if language == "" {
		language = "en"
	}

	inv := Invoice{
		CaseID:          input.CaseID,
		CompanyID:       input.CompanyID,
		PartnerID:       input.PartnerID,
		Status:          status,
		Currency:        currency,
		Subtotal:        subtotal,
		FranchiseAmount: money.Round2(input.FranchiseAmount),
		Total:           money.InvoiceTotal(subtotal, input.FranchiseAmount),
		Language:        language,
		EmailSubject:    input.EmailSubject,
		EmailBody:       input.EmailBody,
		EmailRecipient:  strings.TrimSpace(input.EmailRecipient),
		EmailCC:         input.EmailCC,
		AttachMedical:   input.AttachMedical,
		AttachFinancial: input.AttachFinancial,
		AttachOther:     input.AttachOther,
		Notes:           input.Notes,
	}
	created, err := s.repo.CreateInvoice(ctx, inv, lines)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return created, nil
}

// Get returns one invoice with its service lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, []ServiceLine, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, lines, nil
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, shared.Validationf("unknown invoice status %q", filter.Status)
	}
	return s.repo.ListInvoices(ctx, filter)
}

// Update edits a draft or unpaid invoice. A non-nil Lines replaces the
// whole line set and recomputes subtotal and total.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInvoiceInput) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft && inv.Status != StatusUnpaid {
		return nil, shared.NewError(shared.KindInvalidStatus,
			fmt.Sprintf("a %s invoice cannot be edited", inv.Status))
	}

	if input.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*input.Currency))
		if len(currency) != 3 {
			return nil, shared.Validationf("currency must be a 3-letter code")
		}
		inv.Currency = currency
	}
	if input.FranchiseAmount != nil {
		if *input.FranchiseAmount < 0 {
			return nil, shared.Validationf("franchise amount cannot be negative")
		}
		inv.FranchiseAmount = money.Round2(*input.FranchiseAmount)
	}
	if input.Language != nil {
		inv.Language = *input.Language
	}
	if input.EmailSubject != nil {
		inv.EmailSubject = *input.EmailSubject
	}
	if input.EmailBody != nil {
		inv.EmailBody = *input.EmailBody
	}
	if input.EmailRecipient != nil {
		inv.EmailRecipient = strings.TrimSpace(*input.EmailRecipient)
	}
	if input.EmailCC != nil {
		inv.EmailCC = *input.EmailCC
	}
	if input.AttachMedical != nil {
		inv.AttachMedical = *input.AttachMedical
	}
	if input.AttachFinancial != nil {
		inv.AttachFinancial = *input.AttachFinancial
	}
	if input.AttachOther != nil {
		inv.AttachOther = *input.AttachOther
	}
	if input.Notes != nil {
		inv.Notes = *input.Notes
	}

	var lines []ServiceLine
	replace := false
	if input.Lines != nil {
		var subtotal float64
		lines, subtotal, err = buildLines(*input.Lines)
		if err != nil {
			return nil, err
		}
		replace = true
		inv.Subtotal = subtotal
	}
	inv.Total = money.InvoiceTotal(inv.Subtotal, inv.FranchiseAmount)

	updated, err := s.repo.UpdateInvoice(ctx, *inv, lines, replace)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return updated, nil
}

// Duplicate creates a fresh draft from an existing invoice. The copy gets
// its own number, draft status and no payment or send history; a note
// records which invoice it came from.
func (s *Service) Duplicate(ctx context.Context, actor shared.Actor, id int64) (*Invoice, error) {
	_ = actor
	source, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	sourceLines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return nil, err
	}

	copyInv := *source
	copyInv.Status = StatusDraft
	copyInv.PaymentReference = ""
	copyInv.PaidAt = nil
	copyInv.PDFGeneratedAt = nil
	copyInv.Notes = fmt.Sprintf("Copy of %s", source.Number)
	if source.Notes != "" {
		copyInv.Notes = fmt.Sprintf("Copy of %s. %s", source.Number, source.Notes)
	}

	lines := make([]ServiceLine, len(sourceLines))
	for i, line := range sourceLines {
		lines[i] = ServiceLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			SortOrder:   i + 1,
		}
	}

	created, err := s.repo.CreateInvoice(ctx, copyInv, lines)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return created, nil
}

// MarkPaid records payment on a draft or unpaid invoice.
func (s *Service) MarkPaid(ctx context.Context, id int64, input MarkPaidInput) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case StatusPaid:
		return nil, shared.NewError(shared.KindAlreadyPaid,
			fmt.Sprintf("invoice %s is already paid", inv.Number))
	case StatusCancelled:
		return nil, shared.NewError(shared.KindInvalidStatus,
			fmt.Sprintf("invoice %s is cancelled", inv.Number))
	}
	paid, err := s.repo.MarkPaid(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return paid, nil
}

// Cancel voids a draft or unpaid invoice. Paid invoices cannot be
// cancelled; issue a correction instead.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid {
		return nil, shared.NewError(shared.KindAlreadyPaid,
			fmt.Sprintf("invoice %s is paid and cannot be cancelled", inv.Number))
	}
	if inv.Status == StatusCancelled {
		return nil, shared.NewError(shared.KindInvalidStatus,
			fmt.Sprintf("invoice %s is already cancelled", inv.Number))
	}
	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.bump(ctx)
	return cancelled, nil
}

// Delete moves an invoice to the trash and releases its slot in the
// case's invoice counter. The number itself is never reused.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Send runs the outbound pipeline: resolve recipient, render the PDF,
// gather attachments, deliver and log the attempt.
func (s *Service) Send(ctx context.Context, actor shared.Actor, id int64, req SendRequest) (*SendResult, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sender.Send(ctx, actor, inv, req)
}

// Sends returns the send history for one invoice, newest first.
func (s *Service) Sends(ctx context.Context, id int64) ([]InvoiceSend, error) {
	if _, err := s.repo.GetInvoice(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListSends(ctx, id)
}

// PDF renders the invoice document without sending it.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.sender.RenderPDF(ctx, inv)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("%s.pdf", inv.Number), nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator != nil {
		_ = s.invalidator.Bump(ctx)
	}
}
