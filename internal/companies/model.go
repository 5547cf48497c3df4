package companies

import (
	"time"
)

// Company is one of the business's own legal entities that issues invoices.
type Company struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	InvoicePrefix string     `json:"invoice_prefix"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	BankDetails   string     `json:"bank_details"`
	LogoKey       string     `json:"-"`
	LogoURL       string     `json:"logo_url"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CompanyInput carries create/update fields.
type CompanyInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	InvoicePrefix string `json:"invoice_prefix" validate:"omitempty,alphanum,uppercase,max=10"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address" validate:"max=500"`
	BankDetails   string `json:"bank_details" validate:"max=1000"`
}
