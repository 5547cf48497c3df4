package partners

import (
	"time"
)

// Partner is an insurance partner the business executes services for and
// invoices.
type Partner struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Country   string     `json:"country"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PartnerInput carries create/update fields.
type PartnerInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Country string `json:"country" validate:"max=100"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
}
