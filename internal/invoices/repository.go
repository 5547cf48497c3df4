package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-assist/meridian/internal/numbering"
	"github.com/meridian-assist/meridian/internal/platform/db"
	"github.com/meridian-assist/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices. Invoice
// and service-line writes share one transaction; the monthly number counter
// is incremented inside that same transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, number, case_id, company_id, partner_id, status,
	currency, subtotal, franchise_amount, total, language,
	email_subject, email_body, email_recipient, email_cc,
	attach_medical, attach_financial, attach_other,
	payment_reference, notes, paid_at, pdf_generated_at, deleted_at,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var paidAt, pdfAt, deletedAt pgtype.Timestamptz
	err := row.Scan(&inv.ID, &inv.Number, &inv.CaseID, &inv.CompanyID, &inv.PartnerID, &inv.Status,
		&inv.Currency, &inv.Subtotal, &inv.FranchiseAmount, &inv.Total, &inv.Language,
		&inv.EmailSubject, &inv.EmailBody, &inv.EmailRecipient, &inv.EmailCC,
		&inv.AttachMedical, &inv.AttachFinancial, &inv.AttachOther,
		&inv.PaymentReference, &inv.Notes, &paidAt, &pdfAt, &deletedAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	if pdfAt.Valid {
		inv.PDFGeneratedAt = &pdfAt.Time
	}
	if deletedAt.Valid {
		inv.DeletedAt = &deletedAt.Time
	}
	return &inv, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []ServiceLine) error {
	const query = `
		INSERT INTO invoice_services (invoice_id, description, quantity, unit_price, line_total, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, line := range lines {
		if _, err := tx.Exec(ctx, query,
			invoiceID, line.Description, line.Quantity, line.UnitPrice, line.LineTotal, line.SortOrder); err != nil {
			return fmt.Errorf("invoices: insert line: %w", err)
		}
	}
	return nil
}

// CreateInvoice allocates a number, inserts the invoice with its lines and
// bumps the case's invoice counter, all in one transaction.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice, lines []ServiceLine) (*Invoice, error) {
	var created *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var caseID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM cases WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, inv.CaseID).Scan(&caseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("case")
		}
		if err != nil {
			return err
		}

		var prefix pgtype.Text
		err = tx.QueryRow(ctx,
			`SELECT invoice_prefix FROM our_companies WHERE id = $1 AND deleted_at IS NULL`, inv.CompanyID).Scan(&prefix)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("company")
		}
		if err != nil {
			return err
		}

		number, err := numbering.NextInvoiceNumber(ctx, tx, inv.CompanyID, prefix.String, time.Now())
		if err != nil {
			return err
		}

		query := `
			INSERT INTO invoices (
				number, case_id, company_id, partner_id, status,
				currency, subtotal, franchise_amount, total, language,
				email_subject, email_body, email_recipient, email_cc,
				attach_medical, attach_financial, attach_other,
				payment_reference, notes, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW()
			)
			RETURNING ` + invoiceColumns
		created, err = scanInvoice(tx.QueryRow(ctx, query,
			number, inv.CaseID, inv.CompanyID, inv.PartnerID, inv.Status,
			inv.Currency, inv.Subtotal, inv.FranchiseAmount, inv.Total, inv.Language,
			inv.EmailSubject, inv.EmailBody, inv.EmailRecipient, inv.EmailCC,
			inv.AttachMedical, inv.AttachFinancial, inv.AttachOther,
			inv.PaymentReference, inv.Notes))
		if err != nil {
			return err
		}

		for i := range lines {
			lines[i].InvoiceID = created.ID
		}
		if err := insertLines(ctx, tx, created.ID, lines); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE cases SET invoices_count = invoices_count + 1, updated_at = NOW() WHERE id = $1`, inv.CaseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetInvoice returns an invoice by id. Trashed rows are invisible.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

// ListLines returns an invoice's service lines in display order.
func (r *Repository) ListLines(ctx context.Context, invoiceID int64) ([]ServiceLine, error) {
	const query = `
		SELECT id, invoice_id, description, quantity, unit_price, line_total, sort_order
		FROM invoice_services WHERE invoice_id = $1 ORDER BY sort_order`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceLine
	for rows.Next() {
		var line ServiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description,
			&line.Quantity, &line.UnitPrice, &line.LineTotal, &line.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// ListInvoices returns non-deleted invoices matching the filter.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE deleted_at IS NULL`
	args := []any{}
	if filter.CaseID > 0 {
		args = append(args, filter.CaseID)
		query += fmt.Sprintf(" AND case_id = $%d", len(args))
	}
	if filter.PartnerID > 0 {
		args = append(args, filter.PartnerID)
		query += fmt.Sprintf(" AND partner_id = $%d", len(args))
	}
	if filter.CompanyID > 0 {
		args = append(args, filter.CompanyID)
		query += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// UpdateInvoice overwrites mutable fields and, when replaceLines is set,
// swaps the full service-line set, in one transaction.
func (r *Repository) UpdateInvoice(ctx context.Context, inv Invoice, lines []ServiceLine, replaceLines bool) (*Invoice, error) {
	var updated *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE invoices SET
				currency = $2, subtotal = $3, franchise_amount = $4, total = $5, language = $6,
				email_subject = $7, email_body = $8, email_recipient = $9, email_cc = $10,
				attach_medical = $11, attach_financial = $12, attach_other = $13,
				notes = $14, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING ` + invoiceColumns
		var err error
		updated, err = scanInvoice(tx.QueryRow(ctx, query,
			inv.ID, inv.Currency, inv.Subtotal, inv.FranchiseAmount, inv.Total, inv.Language,
			inv.EmailSubject, inv.EmailBody, inv.EmailRecipient, inv.EmailCC,
			inv.AttachMedical, inv.AttachFinancial, inv.AttachOther, inv.Notes))
		if err != nil {
			return err
		}
		if !replaceLines {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_services WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, inv.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkPaid promotes an invoice to paid with payment metadata. The status
// predicate makes the transition atomic under concurrent requests.
func (r *Repository) MarkPaid(ctx context.Context, id int64, input MarkPaidInput) (*Invoice, error) {
	query := `
		UPDATE invoices SET
			status = 'paid', paid_at = NOW(), payment_reference = $2,
			notes = CASE WHEN $3 = '' THEN notes ELSE $3 END,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status IN ('draft', 'unpaid')
		RETURNING ` + invoiceColumns
	return scanInvoice(r.pool.QueryRow(ctx, query, id, input.PaymentReference, input.Notes))
}

// Cancel voids a draft or unpaid invoice.
func (r *Repository) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	query := `
		UPDATE invoices SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status IN ('draft', 'unpaid')
		RETURNING ` + invoiceColumns
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

// PromoteToUnpaid moves a draft invoice to unpaid after a successful send.
func (r *Repository) PromoteToUnpaid(ctx context.Context, id int64) (*Invoice, error) {
	query := `
		UPDATE invoices SET status = 'unpaid', updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND status = 'draft'
		RETURNING ` + invoiceColumns
	return scanInvoice(r.pool.QueryRow(ctx, query, id))
}

// SoftDelete marks the invoice trashed and decrements the case counter.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var caseID int64
		err := tx.QueryRow(ctx, `
			UPDATE invoices SET deleted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING case_id`, id).Scan(&caseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("invoice")
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE cases SET invoices_count = GREATEST(invoices_count - 1, 0), updated_at = NOW()
			WHERE id = $1`, caseID)
		return err
	})
}

// RecordSend appends one send-attempt log record.
func (r *Repository) RecordSend(ctx context.Context, send InvoiceSend) (*InvoiceSend, error) {
	const query = `
		INSERT INTO invoice_sends (invoice_id, actor_id, recipient, cc, subject, body, outcome, message_id, error_text, is_resend, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		send.InvoiceID, send.ActorID, send.To, send.CC, send.Subject, send.Body,
		send.Outcome, send.MessageID, send.ErrorText, send.IsResend).Scan(&send.ID, &send.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invoices: record send: %w", err)
	}
	return &send, nil
}

// ListSends returns an invoice's send history, newest first.
func (r *Repository) ListSends(ctx context.Context, invoiceID int64) ([]InvoiceSend, error) {
	const query = `
		SELECT id, invoice_id, actor_id, recipient, cc, subject, body, outcome, message_id, error_text, is_resend, created_at
		FROM invoice_sends WHERE invoice_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceSend
	for rows.Next() {
		var s InvoiceSend
		if err := rows.Scan(&s.ID, &s.InvoiceID, &s.ActorID, &s.To, &s.CC, &s.Subject, &s.Body,
			&s.Outcome, &s.MessageID, &s.ErrorText, &s.IsResend, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetPDFGenerated stamps the last successful PDF render time.
func (r *Repository) SetPDFGenerated(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET pdf_generated_at = $2 WHERE id = $1`, id, at)
	return err
}

// CompanyParty reads the issuing company's details.
func (r *Repository) CompanyParty(ctx context.Context, id int64) (*Party, error) {
	const query = `
		SELECT id, name, email, phone, address, bank_details, COALESCE(invoice_prefix, ''), COALESCE(logo_url, '')
		FROM our_companies WHERE id = $1 AND deleted_at IS NULL`
	var p Party
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.BankDetails, &p.InvoicePrefix, &p.LogoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("company")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PartnerParty reads the recipient partner's details.
func (r *Repository) PartnerParty(ctx context.Context, id int64) (*Party, error) {
	const query = `
		SELECT id, name, email, phone, address
		FROM partners WHERE id = $1 AND deleted_at IS NULL`
	var p Party
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("partner")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CaseSummaryByID reads the case fields the invoice flow needs.
func (r *Repository) CaseSummaryByID(ctx context.Context, id int64) (*CaseSummary, error) {
	const query = `SELECT id, number, patient_name FROM cases WHERE id = $1 AND deleted_at IS NULL`
	var c CaseSummary
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Number, &c.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("case")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CaseDocuments lists categorized case documents for attachment gathering.
func (r *Repository) CaseDocuments(ctx context.Context, caseID int64, categories []string) ([]DocumentRef, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	const query = `
		SELECT filename, object_key, category
		FROM case_documents WHERE case_id = $1 AND category = ANY($2)
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, caseID, categories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentRef
	for rows.Next() {
		var ref DocumentRef
		if err := rows.Scan(&ref.Filename, &ref.ObjectKey, &ref.Category); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
