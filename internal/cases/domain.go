package cases

import (
	"time"
)

// CaseStatus enumerates patient case statuses.
type CaseStatus string

const (
	StatusOpen       CaseStatus = "open"
	StatusInProgress CaseStatus = "in_progress"
	StatusCompleted  CaseStatus = "completed"
	StatusCancelled  CaseStatus = "cancelled"
)

// ValidStatus reports whether s is a known case status.
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Case is a tracked patient engagement. The four totals fields and the three
// counters are derived state, recomputed from children on every child
// mutation and never accepted from client input.
type Case struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Status      CaseStatus `json:"status"`
	HandlerID   int64      `json:"handler_id"`
	PatientName string     `json:"patient_name"`
	Description string     `json:"description"`

	TotalServiceCost    float64 `json:"total_service_cost"`
	TotalAssistanceCost float64 `json:"total_assistance_cost"`
	TotalCommissionCost float64 `json:"total_commission_cost"`
	ActionsCount        int     `json:"actions_count"`
	DocumentsCount      int     `json:"documents_count"`
	InvoicesCount       int     `json:"invoices_count"`

	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CaseAction is one billable service line on a case. Each of the three cost
// figures carries its own currency; they are summed per field across a case
// without ever mixing currencies within a field.
type CaseAction struct {
	ID          int64  `json:"id"`
	CaseID      int64  `json:"case_id"`
	PartnerID   int64  `json:"partner_id"`
	ServiceName string `json:"service_name"`
	Comment     string `json:"comment"`

	ServiceCost        float64 `json:"service_cost"`
	ServiceCurrency    string  `json:"service_currency"`
	AssistanceCost     float64 `json:"assistance_cost"`
	AssistanceCurrency string  `json:"assistance_currency"`
	CommissionCost     float64 `json:"commission_cost"`
	CommissionCurrency string  `json:"commission_currency"`

	SortOrder   int       `json:"sort_order"`
	ServiceDate time.Time `json:"service_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentCategory classifies case documents for attachment gating.
type DocumentCategory string

const (
	DocMedical   DocumentCategory = "medical"
	DocFinancial DocumentCategory = "financial"
	DocOther     DocumentCategory = "other"
)

// ValidCategory reports whether c is a known document category.
func ValidCategory(c DocumentCategory) bool {
	switch c {
	case DocMedical, DocFinancial, DocOther:
		return true
	}
	return false
}

// CaseDocument is an uploaded file attached to a case.
type CaseDocument struct {
	ID          int64            `json:"id"`
	CaseID      int64            `json:"case_id"`
	Category    DocumentCategory `json:"category"`
	Filename    string           `json:"filename"`
	ObjectKey   string           `json:"-"`
	URL         string           `json:"url"`
	ContentType string           `json:"content_type"`
	Size        int64            `json:"size"`
	UploadedBy  int64            `json:"uploaded_by"`
	CreatedAt   time.Time        `json:"created_at"`
}

// CaseInput carries create/update fields for a case.
type CaseInput struct {
	Status      CaseStatus `json:"status" validate:"omitempty"`
	HandlerID   int64      `json:"handler_id"`
	PatientName string     `json:"patient_name" validate:"required,max=300"`
	Description string     `json:"description" validate:"max=2000"`
}

// ActionInput carries create/update fields for a case action.
type ActionInput struct {
	PartnerID   int64  `json:"partner_id"`
	ServiceName string `json:"service_name" validate:"required,max=300"`
	Comment     string `json:"comment" validate:"max=2000"`

	ServiceCost        float64 `json:"service_cost" validate:"gte=0"`
	ServiceCurrency    string  `json:"service_currency" validate:"omitempty,len=3"`
	AssistanceCost     float64 `json:"assistance_cost" validate:"gte=0"`
	AssistanceCurrency string  `json:"assistance_currency" validate:"omitempty,len=3"`
	CommissionCost     float64 `json:"commission_cost" validate:"gte=0"`
	CommissionCurrency string  `json:"commission_currency" validate:"omitempty,len=3"`

	ServiceDate time.Time `json:"service_date"`
}

// Totals is the aggregate a case's denormalized fields must always equal.
type Totals struct {
	ServiceCost    float64
	AssistanceCost float64
	CommissionCost float64
	ActionsCount   int
}

// ListFilter narrows case listings. Trashed cases never appear.
type ListFilter struct {
	Status    CaseStatus
	HandlerID int64
	Search    string
	Limit     int
	Offset    int
}
