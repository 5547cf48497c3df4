package partners

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-assist/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence for partners.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partnerColumns = `id, name, country, email, phone, address, deleted_at, created_at, updated_at`

func scanPartner(row pgx.Row) (*Partner, error) {
	var p Partner
	var deletedAt pgtype.Timestamptz
	err := row.Scan(&p.ID, &p.Name, &p.Country, &p.Email, &p.Phone, &p.Address,
		&deletedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("partner")
	}
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

// Create inserts a new partner.
func (r *Repository) Create(ctx context.Context, input PartnerInput) (*Partner, error) {
	query := `
		INSERT INTO partners (name, country, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + partnerColumns

	return scanPartner(r.pool.QueryRow(ctx, query,
		input.Name, input.Country, input.Email, input.Phone, input.Address))
}

// Get returns a partner by id. Soft-deleted rows are invisible here.
func (r *Repository) Get(ctx context.Context, id int64) (*Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1 AND deleted_at IS NULL`
	return scanPartner(r.pool.QueryRow(ctx, query, id))
}

// List returns non-deleted partners ordered by name.
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE deleted_at IS NULL`
	args := []any{}
	if search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args)+1)
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update overwrites mutable fields on a partner.
func (r *Repository) Update(ctx context.Context, id int64, input PartnerInput) (*Partner, error) {
	query := `
		UPDATE partners
		SET name = $2, country = $3, email = $4, phone = $5, address = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + partnerColumns

	return scanPartner(r.pool.QueryRow(ctx, query,
		id, input.Name, input.Country, input.Email, input.Phone, input.Address))
}

// SoftDelete marks the partner trashed.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE partners SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("partner")
	}
	return nil
}
