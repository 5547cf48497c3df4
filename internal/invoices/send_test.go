package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-assist/meridian/internal/mail"
	"github.com/meridian-assist/meridian/internal/shared"
)

type stubRenderer struct {
	fail bool
}

func (r *stubRenderer) RenderInvoice(_ context.Context, input RenderInput) ([]byte, error) {
	if r.fail {
		return nil, errors.New("gotenberg unreachable")
	}
	return []byte("%PDF " + input.Invoice.Number), nil
}

type stubMailer struct {
	fail bool
	last *mail.Message
}

func (m *stubMailer) Send(_ context.Context, msg mail.Message) (string, error) {
	if m.fail {
		return "", errors.New("smtp 554")
	}
	m.last = &msg
	return "<msg-1@test>", nil
}

type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubStore() *stubStore {
	return &stubStore{objects: map[string][]byte{}}
}

func (s *stubStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://objects.test/" + key, nil
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, io.ErrUnexpectedEOF)
	}
	return data, nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type sendFixture struct {
	repo    *memoryInvoiceRepo
	render  *stubRenderer
	mailer  *stubMailer
	store   *stubStore
	service *Service
}

func newSendFixture(t *testing.T) *sendFixture {
	t.Helper()
	repo := seedRepo()
	render := &stubRenderer{}
	mailer := &stubMailer{}
	store := newStubStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := NewSender(repo, render, mailer, store, logger)
	return &sendFixture{
		repo:    repo,
		render:  render,
		mailer:  mailer,
		store:   store,
		service: NewService(repo, sender, nil),
	}
}

func (f *sendFixture) createInvoice(t *testing.T, mutate func(*CreateInvoiceInput)) *Invoice {
	t.Helper()
	input := CreateInvoiceInput{
		CaseID: 10, CompanyID: 1, PartnerID: 7,
		Currency: "EUR", Lines: twoLines(),
	}
	if mutate != nil {
		mutate(&input)
	}
	inv, err := f.service.Create(context.Background(), shared.Actor{ID: 1}, input)
	require.NoError(t, err)
	return inv
}

func TestSendHappyPathPromotesDraft(t *testing.T) {
	f := newSendFixture(t)
	inv := f.createInvoice(t, nil)
	ctx := context.Background()

	result, err := f.service.Send(ctx, shared.Actor{ID: 5}, inv.ID, SendRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, result.Invoice.Status)
	require.Equal(t, OutcomeSent, result.Send.Outcome)
	require.Equal(t, "<msg-1@test>", result.Send.MessageID)
	require.Equal(t, int64(5), result.Send.ActorID)
	require.Equal(t, "claims@alpine.test", result.Send.To)
	require.Empty(t, result.FailedAttachments)

	require.NotNil(t, f.mailer.last)
	require.Equal(t, fmt.Sprintf("Invoice %s", inv.Number), f.mailer.last.Subject)
	require.Len(t, f.mailer.last.Attachments, 1)
	require.Equal(t, inv.Number+".pdf", f.mailer.last.Attachments[0].Filename)

	stored, err := f.repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PDFGeneratedAt)
}

func TestSendRecipientChain(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()

	withRecipient := f.createInvoice(t, func(in *CreateInvoiceInput) {
		in.EmailRecipient = "office@alpine.test"
	})
	result, err := f.service.Send(ctx, shared.Actor{}, withRecipient.ID, SendRequest{})
	require.NoError(t, err)
	require.Equal(t, "office@alpine.test", result.Send.To)

	result, err = f.service.Send(ctx, shared.Actor{}, withRecipient.ID,
		SendRequest{To: "urgent@alpine.test", IsResend: true})
	require.NoError(t, err)
	require.Equal(t, "urgent@alpine.test", result.Send.To)
}

func TestSendWithoutAnyAddressFailsBeforeLogging(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()
	inv := f.createInvoice(t, func(in *CreateInvoiceInput) {
		in.PartnerID = 8 // partner with no email on file
	})

	_, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{})
	require.Equal(t, shared.KindNoEmail, shared.KindOf(err))

	history, err := f.service.Sends(ctx, inv.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSendGuardsCancelledAndPaid(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()

	cancelled := f.createInvoice(t, nil)
	_, err := f.service.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	_, err = f.service.Send(ctx, shared.Actor{}, cancelled.ID, SendRequest{})
	require.Equal(t, shared.KindInvalidStatus, shared.KindOf(err))

	paid := f.createInvoice(t, nil)
	_, err = f.service.MarkPaid(ctx, paid.ID, MarkPaidInput{})
	require.NoError(t, err)
	_, err = f.service.Send(ctx, shared.Actor{}, paid.ID, SendRequest{})
	require.Equal(t, shared.KindInvalidStatus, shared.KindOf(err))

	// the resend flag does not open a side door past the terminal guard
	_, err = f.service.Send(ctx, shared.Actor{}, paid.ID, SendRequest{IsResend: true})
	require.Equal(t, shared.KindInvalidStatus, shared.KindOf(err))

	// a guard rejection leaves no trace: no send rows, no render stamp
	history, err := f.service.Sends(ctx, paid.ID)
	require.NoError(t, err)
	require.Empty(t, history)
	stored, err := f.repo.GetInvoice(ctx, paid.ID)
	require.NoError(t, err)
	require.Nil(t, stored.PDFGeneratedAt)
}

func TestSendRenderFailureIsLogged(t *testing.T) {
	f := newSendFixture(t)
	f.render.fail = true
	ctx := context.Background()
	inv := f.createInvoice(t, nil)

	_, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{})
	require.Equal(t, shared.KindSendFailed, shared.KindOf(err))

	history, err := f.service.Sends(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, OutcomeFailed, history[0].Outcome)
	require.Contains(t, history[0].ErrorText, "gotenberg")

	stored, err := f.repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)
}

func TestSendDeliveryFailureIsLogged(t *testing.T) {
	f := newSendFixture(t)
	f.mailer.fail = true
	ctx := context.Background()
	inv := f.createInvoice(t, nil)

	_, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{})
	require.Equal(t, shared.KindSendFailed, shared.KindOf(err))

	history, err := f.service.Sends(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, OutcomeFailed, history[0].Outcome)
	require.Contains(t, history[0].ErrorText, "smtp")
}

func TestSendGathersFlaggedAttachments(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()

	_, err := f.store.Put(ctx, "cases/10/documents/report.pdf", []byte("report"), "application/pdf")
	require.NoError(t, err)
	_, err = f.store.Put(ctx, "cases/10/documents/receipt.pdf", []byte("receipt"), "application/pdf")
	require.NoError(t, err)
	f.repo.documents[10] = []DocumentRef{
		{Filename: "report.pdf", ObjectKey: "cases/10/documents/report.pdf", Category: "medical"},
		{Filename: "receipt.pdf", ObjectKey: "cases/10/documents/receipt.pdf", Category: "financial"},
		{Filename: "photo.jpg", ObjectKey: "cases/10/documents/photo.jpg", Category: "other"},
	}

	inv := f.createInvoice(t, func(in *CreateInvoiceInput) {
		in.AttachMedical = true
		in.AttachFinancial = true
	})

	result, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{})
	require.NoError(t, err)
	require.Empty(t, result.FailedAttachments)
	require.Len(t, f.mailer.last.Attachments, 3)
	require.Equal(t, inv.Number+".pdf", f.mailer.last.Attachments[0].Filename)
}

func TestSendToleratesMissingAttachment(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()

	_, err := f.store.Put(ctx, "cases/10/documents/report.pdf", []byte("report"), "application/pdf")
	require.NoError(t, err)
	f.repo.documents[10] = []DocumentRef{
		{Filename: "report.pdf", ObjectKey: "cases/10/documents/report.pdf", Category: "medical"},
		{Filename: "lost.pdf", ObjectKey: "cases/10/documents/lost.pdf", Category: "medical"},
	}

	inv := f.createInvoice(t, func(in *CreateInvoiceInput) {
		in.AttachMedical = true
	})

	result, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{})
	require.NoError(t, err)
	require.Equal(t, []string{"lost.pdf"}, result.FailedAttachments)
	require.Equal(t, OutcomeSent, result.Send.Outcome)
	require.Len(t, f.mailer.last.Attachments, 2)
}

func TestSendOverridesAttachmentFlags(t *testing.T) {
	f := newSendFixture(t)
	ctx := context.Background()

	_, err := f.store.Put(ctx, "cases/10/documents/report.pdf", []byte("report"), "application/pdf")
	require.NoError(t, err)
	f.repo.documents[10] = []DocumentRef{
		{Filename: "report.pdf", ObjectKey: "cases/10/documents/report.pdf", Category: "medical"},
	}

	inv := f.createInvoice(t, func(in *CreateInvoiceInput) {
		in.AttachMedical = true
	})

	off := false
	result, err := f.service.Send(ctx, shared.Actor{}, inv.ID, SendRequest{AttachMedical: &off})
	require.NoError(t, err)
	require.Len(t, f.mailer.last.Attachments, 1)
	require.Equal(t, OutcomeSent, result.Send.Outcome)
}
