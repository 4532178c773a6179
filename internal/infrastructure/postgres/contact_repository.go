package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

var _ repository.ContactRepository = (*ContactRepo)(nil)

// ContactRepo implements the party directory over PostgreSQL.
type ContactRepo struct {
	q Querier
}

// NewContactRepository builds the adapter. Pass pool or tx (Querier).
func NewContactRepository(q Querier) *ContactRepo {
	return &ContactRepo{q: q}
}

const contactColumns = `
	id, contact_type, company_name, contact_person, street, zip_code, city, country,
	tax_id, email, phone, website, notes, is_active, created_by, created_at, updated_at`

// Create persists a new contact.
func (r *ContactRepo) Create(ctx context.Context, c *entity.Contact) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO contacts (
			contact_type, company_name, contact_person, street, zip_code, city, country,
			tax_id, email, phone, website, notes, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`,
		c.ContactType, c.CompanyName, c.ContactPerson, c.Street, c.ZipCode, c.City, c.Country,
		c.TaxID, c.Email, c.Phone, c.Website, c.Notes, c.IsActive, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

// GetByID fetches a contact by id.
func (r *ContactRepo) GetByID(ctx context.Context, id int64) (*entity.Contact, error) {
	var c entity.Contact
	err := r.q.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.ContactType, &c.CompanyName, &c.ContactPerson, &c.Street, &c.ZipCode, &c.City, &c.Country,
		&c.TaxID, &c.Email, &c.Phone, &c.Website, &c.Notes, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: contact %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// List returns active contacts filtered by type and free-text query.
func (r *ContactRepo) List(ctx context.Context, contactType, query string, limit, offset int) ([]*entity.Contact, int, error) {
	where := ` WHERE is_active = TRUE`
	args := []any{}
	pos := 1
	if contactType != "" {
		where += fmt.Sprintf(" AND (contact_type = $%d OR contact_type = 'both')", pos)
		args = append(args, contactType)
		pos++
	}
	if query != "" {
		where += fmt.Sprintf(" AND (company_name ILIKE $%d OR contact_person ILIKE $%d OR email ILIKE $%d)", pos, pos, pos)
		args = append(args, "%"+query+"%")
		pos++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	sql := `SELECT ` + contactColumns + ` FROM contacts` + where +
		fmt.Sprintf(" ORDER BY company_name LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var list []*entity.Contact
	for rows.Next() {
		var c entity.Contact
		if err := rows.Scan(
			&c.ID, &c.ContactType, &c.CompanyName, &c.ContactPerson, &c.Street, &c.ZipCode, &c.City, &c.Country,
			&c.TaxID, &c.Email, &c.Phone, &c.Website, &c.Notes, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		list = append(list, &c)
	}
	return list, total, rows.Err()
}

// Update rewrites all editable fields of an active contact.
func (r *ContactRepo) Update(ctx context.Context, c *entity.Contact) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE contacts SET
			contact_type = $1, company_name = $2, contact_person = $3, street = $4,
			zip_code = $5, city = $6, country = $7, tax_id = $8, email = $9,
			phone = $10, website = $11, notes = $12, updated_at = NOW()
		WHERE id = $13 AND is_active = TRUE`,
		c.ContactType, c.CompanyName, c.ContactPerson, c.Street,
		c.ZipCode, c.City, c.Country, c.TaxID, c.Email,
		c.Phone, c.Website, c.Notes, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contact %d", domain.ErrNotFound, c.ID)
	}
	return nil
}

// Deactivate soft-deletes the contact. Invoices keep their party snapshots,
// so nothing issued is affected.
func (r *ContactRepo) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE contacts SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("deactivate contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contact %d", domain.ErrNotFound, id)
	}
	return nil
}
