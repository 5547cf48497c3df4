// Package trash implements the soft-delete lifecycle: listing trashed
// records with their time left, restoring them, and permanent purges.
package trash

import "time"

// RetentionDays is how long a trashed record stays restorable before the
// sweeper purges it permanently.
const RetentionDays = 30

// ItemKind names the record types that participate in soft deletion.
type ItemKind string

const (
	KindCase    ItemKind = "case"
	KindInvoice ItemKind = "invoice"
	KindPartner ItemKind = "partner"
	KindCompany ItemKind = "company"
)

// ValidKind reports whether k names a known trashable record type.
func ValidKind(k ItemKind) bool {
	switch k {
	case KindCase, KindInvoice, KindPartner, KindCompany:
		return true
	}
	return false
}

// Item is one trashed record projected into a uniform shape.
type Item struct {
	Kind          ItemKind  `json:"kind"`
	ID            int64     `json:"id"`
	Label         string    `json:"label"`
	DeletedAt     time.Time `json:"deleted_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// daysRemaining computes how many whole days are left before the record
// crosses the retention boundary. Zero or less means purge-eligible.
func daysRemaining(deletedAt, now time.Time) int {
	elapsed := int(now.Sub(deletedAt).Hours() / 24)
	return RetentionDays - elapsed
}
