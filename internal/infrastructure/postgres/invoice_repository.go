package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implements invoice persistence over PostgreSQL. Pass pool or
// tx (Querier); issuance always goes through the tx-bound variant so the
// metadata row and the audit entry land atomically.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository builds the adapter. Pass pool or tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, invoice_number, issue_date, delivery_date_start, delivery_date_end,
	seller_name, seller_street, seller_zip, seller_city, seller_country, seller_tax_id, seller_email, seller_phone,
	buyer_name, buyer_street, buyer_zip, buyer_city, buyer_country, buyer_tax_id, buyer_email, buyer_phone,
	currency, net_total, tax_total, gross_total,
	tax_exempt, tax_exempt_reason, notes, payment_terms,
	pdf_path, xml_path, pdf_hash, xml_hash, proof,
	status, version, is_immutable, created_by, created_at, updated_at`

// Create persists the invoice header and its line items.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice, lines []entity.LineItem) error {
	proofJSON, err := marshalProof(inv.Proof)
	if err != nil {
		return fmt.Errorf("marshal proof: %w", err)
	}

	err = r.q.QueryRow(ctx, `
		INSERT INTO invoices (
			invoice_number, issue_date, delivery_date_start, delivery_date_end,
			seller_name, seller_street, seller_zip, seller_city, seller_country, seller_tax_id, seller_email, seller_phone,
			buyer_name, buyer_street, buyer_zip, buyer_city, buyer_country, buyer_tax_id, buyer_email, buyer_phone,
			currency, net_total, tax_total, gross_total,
			tax_exempt, tax_exempt_reason, notes, payment_terms,
			pdf_path, xml_path, pdf_hash, xml_hash, proof,
			status, version, is_immutable, created_by
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24,
			$25, $26, $27, $28,
			$29, $30, $31, $32, $33,
			$34, $35, $36, $37
		) RETURNING id, created_at, updated_at`,
		inv.InvoiceNumber, inv.IssueDate, inv.DeliveryDateStart, inv.DeliveryDateEnd,
		inv.Seller.Name, inv.Seller.Street, inv.Seller.Zip, inv.Seller.City, inv.Seller.Country, inv.Seller.TaxID, inv.Seller.Email, inv.Seller.Phone,
		inv.Buyer.Name, inv.Buyer.Street, inv.Buyer.Zip, inv.Buyer.City, inv.Buyer.Country, inv.Buyer.TaxID, inv.Buyer.Email, inv.Buyer.Phone,
		inv.Currency, inv.NetTotal, inv.TaxTotal, inv.GrossTotal,
		inv.TaxExempt, inv.TaxExemptReason, inv.Notes, inv.PaymentTerms,
		inv.PDFPath, inv.XMLPath, inv.PDFHash, inv.XMLHash, proofJSON,
		inv.Status, inv.Version, inv.IsImmutable, inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice number %s already exists", domain.ErrConflict, inv.InvoiceNumber)
		}
		return fmt.Errorf("create invoice: %w", err)
	}

	for i := range lines {
		lines[i].InvoiceID = inv.ID
		err := r.q.QueryRow(ctx, `
			INSERT INTO invoice_line_items (
				invoice_id, position, description, quantity, unit,
				unit_price, line_net, tax_rate, tax_amount, line_gross
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			lines[i].InvoiceID, lines[i].Position, lines[i].Description, lines[i].Quantity, lines[i].Unit,
			lines[i].UnitPrice, lines[i].LineNet, lines[i].TaxRate, lines[i].TaxAmount, lines[i].LineGross,
		).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("create line item %d: %w", lines[i].Position, err)
		}
	}
	return nil
}

// GetByID fetches an invoice header by id.
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetByNumber fetches an invoice header by its invoice number.
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
	return scanInvoice(row)
}

// GetLines returns the line items ordered by position.
func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID int64) ([]entity.LineItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit,
		       unit_price, line_net, tax_rate, tax_amount, line_gross
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY position`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var lines []entity.LineItem
	for rows.Next() {
		var l entity.LineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPrice, &l.LineNet, &l.TaxRate, &l.TaxAmount, &l.LineGross); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// List returns a filtered page of invoices plus the total match count.
func (r *InvoiceRepo) List(ctx context.Context, f repository.InvoiceFilter) ([]*entity.Invoice, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	pos := 1
	if f.Year > 0 {
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM issue_date) = $%d", pos)
		args = append(args, f.Year)
		pos++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", pos)
		args = append(args, f.Status)
		pos++
	}
	if f.Query != "" {
		where += fmt.Sprintf(" AND (invoice_number ILIKE $%d OR buyer_name ILIKE $%d)", pos, pos)
		args = append(args, "%"+f.Query+"%")
		pos++
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where +
		fmt.Sprintf(" ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, inv)
	}
	return list, total, rows.Err()
}

// MarkCancelled transitions issued -> cancelled and bumps the record version.
// The guard on status in the UPDATE itself makes the transition race-free:
// two concurrent cancellations cannot both match the issued row.
func (r *InvoiceRepo) MarkCancelled(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		entity.StatusCancelled, id, entity.StatusIssued,
	)
	if err != nil {
		return fmt.Errorf("cancel invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := r.q.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("check invoice status: %w", err)
		}
		return fmt.Errorf("%w: invoice %d is %s, only issued invoices can be cancelled", domain.ErrConflict, id, status)
	}
	return nil
}

func marshalProof(p *entity.ProofToken) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var proofJSON []byte
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DeliveryDateStart, &inv.DeliveryDateEnd,
		&inv.Seller.Name, &inv.Seller.Street, &inv.Seller.Zip, &inv.Seller.City, &inv.Seller.Country, &inv.Seller.TaxID, &inv.Seller.Email, &inv.Seller.Phone,
		&inv.Buyer.Name, &inv.Buyer.Street, &inv.Buyer.Zip, &inv.Buyer.City, &inv.Buyer.Country, &inv.Buyer.TaxID, &inv.Buyer.Email, &inv.Buyer.Phone,
		&inv.Currency, &inv.NetTotal, &inv.TaxTotal, &inv.GrossTotal,
		&inv.TaxExempt, &inv.TaxExemptReason, &inv.Notes, &inv.PaymentTerms,
		&inv.PDFPath, &inv.XMLPath, &inv.PDFHash, &inv.XMLHash, &proofJSON,
		&inv.Status, &inv.Version, &inv.IsImmutable, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	if len(proofJSON) > 0 {
		var p entity.ProofToken
		if err := json.Unmarshal(proofJSON, &p); err != nil {
			return nil, fmt.Errorf("unmarshal proof: %w", err)
		}
		inv.Proof = &p
	}
	return &inv, nil
}
