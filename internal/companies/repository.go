package companies

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-assist/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence for our companies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const companyColumns = `id, name, invoice_prefix, email, phone, address, bank_details,
	logo_key, logo_url, deleted_at, created_at, updated_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	var prefix, logoKey, logoURL pgtype.Text
	var deletedAt pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.Name, &prefix, &c.Email, &c.Phone, &c.Address, &c.BankDetails,
		&logoKey, &logoURL, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NotFound("company")
	}
	if err != nil {
		return nil, err
	}
	c.InvoicePrefix = prefix.String
	c.LogoKey = logoKey.String
	c.LogoURL = logoURL.String
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

// Create inserts a new company.
func (r *Repository) Create(ctx context.Context, input CompanyInput) (*Company, error) {
	query := `
		INSERT INTO our_companies (name, invoice_prefix, email, phone, address, bank_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + companyColumns

	return scanCompany(r.pool.QueryRow(ctx, query,
		input.Name, input.InvoicePrefix, input.Email, input.Phone, input.Address, input.BankDetails))
}

// Get returns a company by id, excluding trashed rows.
func (r *Repository) Get(ctx context.Context, id int64) (*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM our_companies WHERE id = $1 AND deleted_at IS NULL`
	return scanCompany(r.pool.QueryRow(ctx, query, id))
}

// List returns non-deleted companies ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Company, error) {
	query := `SELECT ` + companyColumns + ` FROM our_companies WHERE deleted_at IS NULL ORDER BY name`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites mutable fields on a company.
func (r *Repository) Update(ctx context.Context, id int64, input CompanyInput) (*Company, error) {
	query := `
		UPDATE our_companies
		SET name = $2, invoice_prefix = $3, email = $4, phone = $5, address = $6,
			bank_details = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + companyColumns

	return scanCompany(r.pool.QueryRow(ctx, query,
		id, input.Name, input.InvoicePrefix, input.Email, input.Phone, input.Address, input.BankDetails))
}

// SetLogo stores the logo object key and public URL.
func (r *Repository) SetLogo(ctx context.Context, id int64, key, url string) (*Company, error) {
	query := `
		UPDATE our_companies
		SET logo_key = $2, logo_url = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + companyColumns

	return scanCompany(r.pool.QueryRow(ctx, query, id, key, url))
}

// SoftDelete marks the company trashed.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE our_companies SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("company")
	}
	return nil
}
