package cases

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

// Repository provides PostgreSQL backed persistence for cases and their
// children. Action and document mutations run in one transaction with the
// reconciliation write, so a case row can never disagree with its children.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseColumns = `id, number, status, handler_id, patient_name, description,
	total_service_cost, total_assistance_cost, total_commission_cost,
	actions_count, documents_count, invoices_count,
	closed_at, deleted_at, created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	var closedAt, deletedAt pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.Number, &c.Status, &c.HandlerID, &c.PatientName, &c.Description,
		&c.TotalServiceCost, &c.TotalAssistanceCost, &c.TotalCommissionCost,
		&c.ActionsCount, &c.DocumentsCount, &c.InvoicesCount,
		&closedAt, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("case")
	}
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

// CreateCase allocates a case number and inserts the row in one transaction.
func (r *Repository) CreateCase(ctx context.Context, input CaseInput) (*Case, error) {
	var created *Case
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		number, err := numbering.NextCaseNumber(ctx, tx, time.Now())
		if err != nil {
			return err
		}
		query := `
			INSERT INTO cases (number, status, handler_id, patient_name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING ` + caseColumns
		created, err = scanCase(tx.QueryRow(ctx, query,
			number, input.Status, input.HandlerID, input.PatientName, input.Description))
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetCase returns a case by id. Trashed rows are invisible.
func (r *Repository) GetCase(ctx context.Context, id int64) (*Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 AND deleted_at IS NULL`
	return scanCase(r.pool.QueryRow(ctx, query, id))
}

// ListCases returns non-deleted cases, newest first.
func (r *Repository) ListCases(ctx context.Context, filter ListFilter) ([]Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE deleted_at IS NULL`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.HandlerID > 0 {
		args = append(args, filter.HandlerID)
		query += fmt.Sprintf(" AND handler_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (number ILIKE $%d OR patient_name ILIKE $%d)", len(args), len(args))
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

	var out []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCase overwrites mutable case fields. Derived totals are untouchable
// through this path. Moving into completed stamps closed_at; moving out
// clears it.
func (r *Repository) UpdateCase(ctx context.Context, id int64, input CaseInput) (*Case, error) {
	query := `
		UPDATE cases
		SET status = $2, handler_id = $3, patient_name = $4, description = $5,
			closed_at = CASE
				WHEN $2 = 'completed' THEN COALESCE(closed_at, NOW())
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + caseColumns

	return scanCase(r.pool.QueryRow(ctx, query,
		id, input.Status, input.HandlerID, input.PatientName, input.Description))
}

// SoftDeleteCase marks the case trashed. Children stay intact; only a
// permanent purge removes them.
func (r *Repository) SoftDeleteCase(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cases SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("case")
	}
	return nil
}

// reconcileTotals rewrites the case's derived cost fields and action count
// from the current action rows, inside the caller's transaction.
func reconcileTotals(ctx context.Context, tx pgx.Tx, caseID int64) error {
	const query = `
		UPDATE cases SET
			total_service_cost = agg.service,
			total_assistance_cost = agg.assistance,
			total_commission_cost = agg.commission,
			actions_count = agg.n,
			updated_at = NOW()
		FROM (
			SELECT
				COALESCE(SUM(service_cost), 0) AS service,
				COALESCE(SUM(assistance_cost), 0) AS assistance,
				COALESCE(SUM(commission_cost), 0) AS commission,
				COUNT(*) AS n
			FROM case_actions WHERE case_id = $1
		) agg
		WHERE cases.id = $1`

	if _, err := tx.Exec(ctx, query, caseID); err != nil {
		return fmt.Errorf("cases: reconcile totals for case %d: %w", caseID, err)
	}
	return nil
}

// reconcileDocumentsCount rewrites the derived document counter.
func reconcileDocumentsCount(ctx context.Context, tx pgx.Tx, caseID int64) error {
	const query = `
		UPDATE cases SET
			documents_count = (SELECT COUNT(*) FROM case_documents WHERE case_id = $1),
			updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.Exec(ctx, query, caseID); err != nil {
		return fmt.Errorf("cases: reconcile documents for case %d: %w", caseID, err)
	}
	return nil
}

// lockCase serializes concurrent child mutations on the same case so the
// reconciled totals always match one consistent snapshot of the action set.
func lockCase(ctx context.Context, tx pgx.Tx, caseID int64) error {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM cases WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, caseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFound("case")
	}
	return err
}

const actionColumns = `id, case_id, partner_id, service_name, comment,
	service_cost, service_currency, assistance_cost, assistance_currency,
	commission_cost, commission_currency, sort_order, service_date, created_at, updated_at`

func scanAction(row pgx.Row) (*CaseAction, error) {
	var a CaseAction
	err := row.Scan(&a.ID, &a.CaseID, &a.PartnerID, &a.ServiceName, &a.Comment,
		&a.ServiceCost, &a.ServiceCurrency, &a.AssistanceCost, &a.AssistanceCurrency,
		&a.CommissionCost, &a.CommissionCurrency, &a.SortOrder, &a.ServiceDate,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("case action")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AddAction inserts an action at the end of the case's sort order and
// reconciles the parent in the same transaction.
func (r *Repository) AddAction(ctx context.Context, caseID int64, input ActionInput) (*CaseAction, error) {
	var created *CaseAction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockCase(ctx, tx, caseID); err != nil {
			return err
		}
		query := `
			INSERT INTO case_actions (
				case_id, partner_id, service_name, comment,
				service_cost, service_currency, assistance_cost, assistance_currency,
				commission_cost, commission_currency, sort_order, service_date,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				(SELECT COALESCE(MAX(sort_order), 0) + 1 FROM case_actions WHERE case_id = $1),
				$11, NOW(), NOW()
			)
			RETURNING ` + actionColumns
		var err error
		created, err = scanAction(tx.QueryRow(ctx, query,
			caseID, input.PartnerID, input.ServiceName, input.Comment,
			input.ServiceCost, input.ServiceCurrency,
			input.AssistanceCost, input.AssistanceCurrency,
			input.CommissionCost, input.CommissionCurrency,
			input.ServiceDate))
		if err != nil {
			return err
		}
		return reconcileTotals(ctx, tx, caseID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateAction overwrites an action's fields and reconciles its parent.
func (r *Repository) UpdateAction(ctx context.Context, actionID int64, input ActionInput) (*CaseAction, error) {
	var updated *CaseAction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var caseID int64
		err := tx.QueryRow(ctx,
			`SELECT case_id FROM case_actions WHERE id = $1`, actionID).Scan(&caseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("case action")
		}
		if err != nil {
			return err
		}
		if err := lockCase(ctx, tx, caseID); err != nil {
			return err
		}
		query := `
			UPDATE case_actions SET
				partner_id = $2, service_name = $3, comment = $4,
				service_cost = $5, service_currency = $6,
				assistance_cost = $7, assistance_currency = $8,
				commission_cost = $9, commission_currency = $10,
				service_date = $11, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + actionColumns
		updated, err = scanAction(tx.QueryRow(ctx, query,
			actionID, input.PartnerID, input.ServiceName, input.Comment,
			input.ServiceCost, input.ServiceCurrency,
			input.AssistanceCost, input.AssistanceCurrency,
			input.CommissionCost, input.CommissionCurrency,
			input.ServiceDate))
		if err != nil {
			return err
		}
		return reconcileTotals(ctx, tx, caseID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAction removes an action, closes the sort-order gap and reconciles
// the parent, all in one transaction.
func (r *Repository) DeleteAction(ctx context.Context, actionID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var caseID int64
		err := tx.QueryRow(ctx,
			`SELECT case_id FROM case_actions WHERE id = $1`, actionID).Scan(&caseID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NotFound("case action")
		}
		if err != nil {
			return err
		}
		if err := lockCase(ctx, tx, caseID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM case_actions WHERE id = $1`, actionID); err != nil {
			return err
		}
		// keep sort order dense after removal
		resequence := `
			UPDATE case_actions ca SET sort_order = ranked.rn
			FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY sort_order) AS rn
				FROM case_actions WHERE case_id = $1
			) ranked
			WHERE ca.id = ranked.id AND ca.sort_order <> ranked.rn`
		if _, err := tx.Exec(ctx, resequence, caseID); err != nil {
			return err
		}
		return reconcileTotals(ctx, tx, caseID)
	})
}

// ListActions returns a case's actions in display order.
func (r *Repository) ListActions(ctx context.Context, caseID int64) ([]CaseAction, error) {
	query := `SELECT ` + actionColumns + ` FROM case_actions WHERE case_id = $1 ORDER BY sort_order`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaseAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Totals reads the current aggregate over a case's action rows. Used by
// integrity checks; normal reads use the already-reconciled case fields.
func (r *Repository) Totals(ctx context.Context, caseID int64) (Totals, error) {
	const query = `
		SELECT
			COALESCE(SUM(service_cost), 0),
			COALESCE(SUM(assistance_cost), 0),
			COALESCE(SUM(commission_cost), 0),
			COUNT(*)
		FROM case_actions WHERE case_id = $1`
	var t Totals
	err := r.pool.QueryRow(ctx, query, caseID).Scan(
		&t.ServiceCost, &t.AssistanceCost, &t.CommissionCost, &t.ActionsCount)
	return t, err
}

const documentColumns = `id, case_id, category, filename, object_key, url, content_type, size, uploaded_by, created_at`

func scanDocument(row pgx.Row) (*CaseDocument, error) {
	var d CaseDocument
	err := row.Scan(&d.ID, &d.CaseID, &d.Category, &d.Filename, &d.ObjectKey, &d.URL,
		&d.ContentType, &d.Size, &d.UploadedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("case document")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddDocument records an uploaded document and reconciles the counter.
func (r *Repository) AddDocument(ctx context.Context, doc CaseDocument) (*CaseDocument, error) {
	var created *CaseDocument
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockCase(ctx, tx, doc.CaseID); err != nil {
			return err
		}
		query := `
			INSERT INTO case_documents (case_id, category, filename, object_key, url, content_type, size, uploaded_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			RETURNING ` + documentColumns
		var err error
		created, err = scanDocument(tx.QueryRow(ctx, query,
			doc.CaseID, doc.Category, doc.Filename, doc.ObjectKey, doc.URL,
			doc.ContentType, doc.Size, doc.UploadedBy))
		if err != nil {
			return err
		}
		return reconcileDocumentsCount(ctx, tx, doc.CaseID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteDocument removes the row and reconciles the counter. The removed
// document is returned so the caller can clean up object storage.
func (r *Repository) DeleteDocument(ctx context.Context, docID int64) (*CaseDocument, error) {
	var removed *CaseDocument
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `DELETE FROM case_documents WHERE id = $1 RETURNING ` + documentColumns
		var err error
		removed, err = scanDocument(tx.QueryRow(ctx, query, docID))
		if err != nil {
			return err
		}
		return reconcileDocumentsCount(ctx, tx, removed.CaseID)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// ListDocuments returns a case's documents, optionally narrowed to
// categories, newest first.
func (r *Repository) ListDocuments(ctx context.Context, caseID int64, categories []DocumentCategory) ([]CaseDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM case_documents WHERE case_id = $1`
	args := []any{caseID}
	if len(categories) > 0 {
		cats := make([]string, 0, len(categories))
		for _, c := range categories {
			cats = append(cats, string(c))
		}
		args = append(args, cats)
		query += fmt.Sprintf(" AND category = ANY($%d)", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaseDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
