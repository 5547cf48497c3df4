package trash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-assist/meridian/internal/platform/db"
	"github.com/meridian-assist/meridian/internal/shared"
)

// Repository projects the deleted_at columns of the four trashable tables
// into one uniform trash view and performs restores and purges.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// trashQuery unions every trashable table. Labels are what a person would
// recognize the record by: numbers for cases and invoices, names otherwise.
const trashQuery = `
	SELECT 'case' AS kind, id, number AS label, deleted_at FROM cases WHERE deleted_at IS NOT NULL
	UNION ALL
	SELECT 'invoice', id, number, deleted_at FROM invoices WHERE deleted_at IS NOT NULL
	UNION ALL
	SELECT 'partner', id, name, deleted_at FROM partners WHERE deleted_at IS NOT NULL
	UNION ALL
	SELECT 'company', id, name, deleted_at FROM our_companies WHERE deleted_at IS NOT NULL`

// List returns trashed records deleted strictly after the cutoff, newest
// first. A record deleted exactly at the cutoff has no days left and
// belongs to the sweeper, not the listing.
func (r *Repository) List(ctx context.Context, cutoff time.Time) ([]Item, error) {
	query := `SELECT kind, id, label, deleted_at FROM (` + trashQuery + `) t
		WHERE deleted_at > $1 ORDER BY deleted_at DESC`
	return r.queryItems(ctx, query, cutoff)
}

// ListExpired returns trashed records at or past the cutoff. The sweeper
// feeds these into Purge.
func (r *Repository) ListExpired(ctx context.Context, cutoff time.Time) ([]Item, error) {
	query := `SELECT kind, id, label, deleted_at FROM (` + trashQuery + `) t
		WHERE deleted_at <= $1 ORDER BY deleted_at`
	return r.queryItems(ctx, query, cutoff)
}

func (r *Repository) queryItems(ctx context.Context, query string, cutoff time.Time) ([]Item, error) {
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Kind, &item.ID, &item.Label, &item.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

var restoreQueries = map[ItemKind]string{
	KindCase:    `UPDATE cases SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`,
	KindPartner: `UPDATE partners SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`,
	KindCompany: `UPDATE our_companies SET deleted_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NOT NULL`,
}

// Restore clears the deletion mark. Restoring an invoice gives its slot in
// the case counter back; everything else is a single-row update.
func (r *Repository) Restore(ctx context.Context, kind ItemKind, id int64) error {
	if kind == KindInvoice {
		return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			var caseID int64
			err := tx.QueryRow(ctx, `
				UPDATE invoices SET deleted_at = NULL, updated_at = NOW()
				WHERE id = $1 AND deleted_at IS NOT NULL
				RETURNING case_id`, id).Scan(&caseID)
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.NotFound("trashed invoice")
			}
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				UPDATE cases SET invoices_count = invoices_count + 1, updated_at = NOW()
				WHERE id = $1`, caseID)
			return err
		})
	}

	query, ok := restoreQueries[kind]
	if !ok {
		return shared.Validationf("unknown trash kind %q", kind)
	}
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(fmt.Sprintf("trashed %s", kind))
	}
	return nil
}

// Purge permanently removes a trashed record and its children. The returned
// object keys point at storage blobs the caller should delete afterwards;
// storage cleanup stays outside the transaction.
func (r *Repository) Purge(ctx context.Context, kind ItemKind, id int64) ([]string, error) {
	var keys []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		switch kind {
		case KindCase:
			keys, err = purgeCase(ctx, tx, id)
		case KindInvoice:
			err = purgeInvoice(ctx, tx, id)
		case KindPartner:
			err = purgeRow(ctx, tx, `DELETE FROM partners WHERE id = $1 AND deleted_at IS NOT NULL`, id, kind)
		case KindCompany:
			keys, err = purgeCompany(ctx, tx, id)
		default:
			err = shared.Validationf("unknown trash kind %q", kind)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func purgeRow(ctx context.Context, tx pgx.Tx, query string, id int64, kind ItemKind) error {
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound(fmt.Sprintf("trashed %s", kind))
	}
	return nil
}

// purgeCase removes the case with all actions, documents and invoices. Any
// invoice under the case goes with it, trashed or not; the case is the unit
// of retention.
func purgeCase(ctx context.Context, tx pgx.Tx, id int64) ([]string, error) {
	var exists int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM cases WHERE id = $1 AND deleted_at IS NOT NULL FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("trashed case")
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT object_key FROM case_documents WHERE case_id = $1`, id)
	if err != nil {
		return nil, err
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statements := []string{
		`DELETE FROM invoice_sends WHERE invoice_id IN (SELECT id FROM invoices WHERE case_id = $1)`,
		`DELETE FROM invoice_services WHERE invoice_id IN (SELECT id FROM invoices WHERE case_id = $1)`,
		`DELETE FROM invoices WHERE case_id = $1`,
		`DELETE FROM case_documents WHERE case_id = $1`,
		`DELETE FROM case_actions WHERE case_id = $1`,
		`DELETE FROM cases WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func purgeInvoice(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM invoices WHERE id = $1 AND deleted_at IS NOT NULL FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFound("trashed invoice")
	}
	if err != nil {
		return err
	}
	statements := []string{
		`DELETE FROM invoice_sends WHERE invoice_id = $1`,
		`DELETE FROM invoice_services WHERE invoice_id = $1`,
		`DELETE FROM invoices WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

func purgeCompany(ctx context.Context, tx pgx.Tx, id int64) ([]string, error) {
	var logoKey pgtype.Text
	err := tx.QueryRow(ctx,
		`SELECT logo_key FROM our_companies WHERE id = $1 AND deleted_at IS NOT NULL FOR UPDATE`, id).Scan(&logoKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("trashed company")
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM our_companies WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if logoKey.Valid && logoKey.String != "" {
		return []string{logoKey.String}, nil
	}
	return nil, nil
}
