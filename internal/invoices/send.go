package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-assist/meridian/internal/mail"
	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/shared"
)

// maxAttachmentFetches bounds concurrent object-storage reads per send.
const maxAttachmentFetches = 4

// Sender runs the outbound invoice pipeline. Guard failures (bad status,
// no recipient) return before anything is logged; once the pipeline is
// past the guards, every attempt lands in the send log, failed or not.
type Sender struct {
	repo     RepositoryPort
	renderer Renderer
	mailer   mail.Mailer
	store    objstore.Store
	log      *slog.Logger
}

// NewSender builds a Sender.
func NewSender(repo RepositoryPort, renderer Renderer, mailer mail.Mailer, store objstore.Store, log *slog.Logger) *Sender {
	return &Sender{repo: repo, renderer: renderer, mailer: mailer, store: store, log: log}
}

// resolveRecipient walks the address chain: explicit request override,
// invoice-level recipient, then the partner's contact email.
func (s *Sender) resolveRecipient(ctx context.Context, inv *Invoice, req SendRequest) (string, error) {
	if to := strings.TrimSpace(req.To); to != "" {
		return to, nil
	}
	if inv.EmailRecipient != "" {
		return inv.EmailRecipient, nil
	}
	partner, err := s.repo.PartnerParty(ctx, inv.PartnerID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(partner.Email) == "" {
		return "", shared.NewError(shared.KindNoEmail,
			fmt.Sprintf("no recipient address for invoice %s: none on the request, the invoice or the partner", inv.Number))
	}
	return partner.Email, nil
}

func categoriesFor(inv *Invoice, req SendRequest) []string {
	medical, financial, other := inv.AttachMedical, inv.AttachFinancial, inv.AttachOther
	if req.AttachMedical != nil {
		medical = *req.AttachMedical
	}
	if req.AttachFinancial != nil {
		financial = *req.AttachFinancial
	}
	if req.AttachOther != nil {
		other = *req.AttachOther
	}
	var out []string
	if medical {
		out = append(out, "medical")
	}
	if financial {
		out = append(out, "financial")
	}
	if other {
		out = append(out, "other")
	}
	return out
}

// gatherAttachments fetches the selected case documents concurrently. A
// document that cannot be read is reported, not fatal; the invoice still
// goes out with whatever was retrievable.
func (s *Sender) gatherAttachments(ctx context.Context, inv *Invoice, categories []string) ([]mail.Attachment, []string, error) {
	refs, err := s.repo.CaseDocuments(ctx, inv.CaseID, categories)
	if err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, nil
	}

	attachments := make([]mail.Attachment, len(refs))
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAttachmentFetches)
	for i, ref := range refs {
		g.Go(func() error {
			data, err := s.store.Get(gctx, ref.ObjectKey)
			if err != nil {
				s.log.Warn("attachment fetch failed",
					"invoice", inv.Number, "key", ref.ObjectKey, "error", err)
				mu.Lock()
				failed = append(failed, ref.Filename)
				mu.Unlock()
				return nil
			}
			attachments[i] = mail.Attachment{Filename: ref.Filename, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := attachments[:0]
	for _, a := range attachments {
		if a.Filename != "" {
			out = append(out, a)
		}
	}
	return out, failed, nil
}

// RenderPDF renders the invoice document and stamps the render time.
func (s *Sender) RenderPDF(ctx context.Context, inv *Invoice) ([]byte, error) {
	lines, err := s.repo.ListLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.CompanyParty(ctx, inv.CompanyID)
	if err != nil {
		return nil, err
	}
	partner, err := s.repo.PartnerParty(ctx, inv.PartnerID)
	if err != nil {
		return nil, err
	}
	caseSummary, err := s.repo.CaseSummaryByID(ctx, inv.CaseID)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderInvoice(ctx, RenderInput{
		Invoice: inv,
		Lines:   lines,
		Company: company,
		Partner: partner,
		Case:    caseSummary,
	})
	if err != nil {
		return nil, shared.WrapError(shared.KindSendFailed,
			fmt.Sprintf("rendering invoice %s", inv.Number), err)
	}
	if err := s.repo.SetPDFGenerated(ctx, inv.ID, time.Now()); err != nil {
		s.log.Warn("stamp pdf render time", "invoice", inv.Number, "error", err)
	}
	return pdf, nil
}

// Send delivers the invoice by email. The PDF is mandatory: a render
// failure aborts the send and is logged as a failed attempt. A first
// successful send promotes a draft to unpaid.
func (s *Sender) Send(ctx context.Context, actor shared.Actor, inv *Invoice, req SendRequest) (*SendResult, error) {
	if inv.Status.Terminal() {
		return nil, shared.NewError(shared.KindInvalidStatus,
			fmt.Sprintf("invoice %s is %s and cannot be sent", inv.Number, inv.Status))
	}

	to, err := s.resolveRecipient(ctx, inv, req)
	if err != nil {
		return nil, err
	}
	cc := req.CC
	if cc == nil {
		cc = inv.EmailCC
	}
	subject := req.Subject
	if subject == "" {
		subject = inv.EmailSubject
	}
	if subject == "" {
		subject = fmt.Sprintf("Invoice %s", inv.Number)
	}
	body := req.Body
	if body == "" {
		body = inv.EmailBody
	}

	record := InvoiceSend{
		InvoiceID: inv.ID,
		ActorID:   actor.ID,
		To:        to,
		CC:        cc,
		Subject:   subject,
		Body:      body,
		IsResend:  req.IsResend,
	}

	pdf, err := s.RenderPDF(ctx, inv)
	if err != nil {
		return nil, s.logFailure(ctx, record, err)
	}

	attachments, failedAttachments, err := s.gatherAttachments(ctx, inv, categoriesFor(inv, req))
	if err != nil {
		return nil, s.logFailure(ctx, record, err)
	}
	attachments = append([]mail.Attachment{{
		Filename: fmt.Sprintf("%s.pdf", inv.Number),
		Data:     pdf,
	}}, attachments...)

	messageID, err := s.mailer.Send(ctx, mail.Message{
		To:          to,
		CC:          cc,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
	})
	if err != nil {
		return nil, s.logFailure(ctx, record,
			shared.WrapError(shared.KindSendFailed, fmt.Sprintf("delivering invoice %s", inv.Number), err))
	}

	record.Outcome = OutcomeSent
	record.MessageID = messageID
	logged, err := s.repo.RecordSend(ctx, record)
	if err != nil {
		return nil, err
	}

	result := &SendResult{Invoice: inv, Send: *logged, FailedAttachments: failedAttachments}
	if inv.Status == StatusDraft {
		promoted, err := s.repo.PromoteToUnpaid(ctx, inv.ID)
		if err != nil {
			s.log.Warn("promote draft after send", "invoice", inv.Number, "error", err)
		} else {
			result.Invoice = promoted
		}
	}
	s.log.Info("invoice sent",
		"invoice", inv.Number, "to", to, "message_id", messageID,
		"attachments", len(attachments), "failed_attachments", len(failedAttachments))
	return result, nil
}

// logFailure records a failed attempt and returns the original error.
func (s *Sender) logFailure(ctx context.Context, record InvoiceSend, cause error) error {
	record.Outcome = OutcomeFailed
	record.ErrorText = cause.Error()
	if _, err := s.repo.RecordSend(ctx, record); err != nil {
		s.log.Error("record failed send", "invoice_id", record.InvoiceID, "error", err)
	}
	return cause
}
