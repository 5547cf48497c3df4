package invoices

import (
	"time"
)

// Status enumerates invoice lifecycle states. Transitions: draft -> unpaid
// -> paid, and draft|unpaid -> cancelled. Nothing leaves paid or cancelled.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusUnpaid    Status = "unpaid"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusUnpaid, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Invoice is a billing document issued by one of our companies to a partner
// for one case. Subtotal and total are derived from the service lines and
// the franchise deductible; client-supplied values for them are ignored.
type Invoice struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	CaseID    int64  `json:"case_id"`
	CompanyID int64  `json:"company_id"`
	PartnerID int64  `json:"partner_id"`
	Status    Status `json:"status"`

	Currency        string  `json:"currency"`
	Subtotal        float64 `json:"subtotal"`
	FranchiseAmount float64 `json:"franchise_amount"`
	Total           float64 `json:"total"`

	Language       string   `json:"language"`
	EmailSubject   string   `json:"email_subject"`
	EmailBody      string   `json:"email_body"`
	EmailRecipient string   `json:"email_recipient"`
	EmailCC        []string `json:"email_cc"`

	AttachMedical   bool `json:"attach_medical"`
	AttachFinancial bool `json:"attach_financial"`
	AttachOther     bool `json:"attach_other"`

	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`

	PaidAt         *time.Time `json:"paid_at,omitempty"`
	PDFGeneratedAt *time.Time `json:"pdf_generated_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ServiceLine is one priced item on an invoice. LineTotal is stored
// denormalized and always equals quantity times unit price.
type ServiceLine struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	SortOrder   int     `json:"sort_order"`
}

// InvoiceSend is an append-only log record of one send attempt.
type InvoiceSend struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	ActorID   int64     `json:"actor_id"`
	To        string    `json:"to"`
	CC        []string  `json:"cc"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Outcome   string    `json:"outcome"` // sent | failed
	MessageID string    `json:"message_id,omitempty"`
	ErrorText string    `json:"error_text,omitempty"`
	IsResend  bool      `json:"is_resend"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// ServiceLineInput carries one line of client input; the line total is
// always recomputed server-side.
type ServiceLineInput struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// CreateInvoiceInput carries create fields.
type CreateInvoiceInput struct {
	CaseID    int64 `json:"case_id" validate:"required"`
	CompanyID int64 `json:"company_id" validate:"required"`
	PartnerID int64 `json:"partner_id" validate:"required"`

	Status          Status  `json:"status" validate:"omitempty"`
	Currency        string  `json:"currency" validate:"required,len=3"`
	FranchiseAmount float64 `json:"franchise_amount" validate:"gte=0"`
	Language        string  `json:"language" validate:"omitempty"`

	EmailSubject   string   `json:"email_subject"`
	EmailBody      string   `json:"email_body"`
	EmailRecipient string   `json:"email_recipient" validate:"omitempty,email"`
	EmailCC        []string `json:"email_cc"`

	AttachMedical   bool `json:"attach_medical"`
	AttachFinancial bool `json:"attach_financial"`
	AttachOther     bool `json:"attach_other"`

	Notes string `json:"notes"`

	Lines []ServiceLineInput `json:"lines" validate:"required,min=1,dive"`
}

// UpdateInvoiceInput carries edit fields; nil pointers leave the field
// untouched. A non-nil Lines replaces the previous set wholesale.
type UpdateInvoiceInput struct {
	Currency        *string  `json:"currency"`
	FranchiseAmount *float64 `json:"franchise_amount"`
	Language        *string  `json:"language"`

	EmailSubject   *string   `json:"email_subject"`
	EmailBody      *string   `json:"email_body"`
	EmailRecipient *string   `json:"email_recipient"`
	EmailCC        *[]string `json:"email_cc"`

	AttachMedical   *bool `json:"attach_medical"`
	AttachFinancial *bool `json:"attach_financial"`
	AttachOther     *bool `json:"attach_other"`

	Notes *string `json:"notes"`

	Lines *[]ServiceLineInput `json:"lines"`
}

// MarkPaidInput carries payment metadata.
type MarkPaidInput struct {
	PaymentReference string `json:"payment_reference" validate:"max=200"`
	Notes            string `json:"notes" validate:"max=2000"`
}

// SendRequest carries per-send overrides. Nil attachment flags fall back to
// the invoice's stored flags.
type SendRequest struct {
	To      string   `json:"to" validate:"omitempty,email"`
	CC      []string `json:"cc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`

	AttachMedical   *bool `json:"attach_medical"`
	AttachFinancial *bool `json:"attach_financial"`
	AttachOther     *bool `json:"attach_other"`

	// IsResend labels a repeat send in the log; it does not relax the
	// lifecycle guard.
	IsResend bool `json:"is_resend"`
}

// SendResult reports the outcome of a send, including attachments that
// could not be fetched. Those are partial failures; the email itself still
// went out with the invoice PDF.
type SendResult struct {
	Send              InvoiceSend `json:"send"`
	Invoice           *Invoice    `json:"invoice"`
	FailedAttachments []string    `json:"failed_attachments,omitempty"`
}

// Party is the slice of a company or partner the invoice flow needs.
type Party struct {
	ID            int64
	Name          string
	Email         string
	Phone         string
	Address       string
	BankDetails   string
	InvoicePrefix string
	LogoURL       string
}

// CaseSummary is the slice of a case the invoice flow needs.
type CaseSummary struct {
	ID          int64
	Number      string
	PatientName string
}

// DocumentRef points at one categorized case document in object storage.
type DocumentRef struct {
	Filename  string
	ObjectKey string
	Category  string
}

// ListFilter narrows invoice listings. Trashed invoices never appear.
type ListFilter struct {
	CaseID    int64
	PartnerID int64
	CompanyID int64
	Status    Status
	Limit     int
	Offset    int
}
