package repository

import (
	"context"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// InvoiceFilter narrows List queries. Zero values mean "no filter".
type InvoiceFilter struct {
	Year   int
	Status string
	Query  string // matches invoice number or buyer name
	Limit  int
	Offset int
}

// InvoiceRepository defines the persistence port for invoices and their lines.
// Issued invoices are immutable: there is no Update, only MarkCancelled, which
// flips the status without touching any monetary or document field.
type InvoiceRepository interface {
	// Create persists the invoice header and all line items. Runs inside the
	// issuance transaction when called through the tx-bound repository.
	Create(ctx context.Context, inv *entity.Invoice, lines []entity.LineItem) error

	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*entity.Invoice, error)
	GetLines(ctx context.Context, invoiceID int64) ([]entity.LineItem, error)

	List(ctx context.Context, f InvoiceFilter) ([]*entity.Invoice, int, error)

	// MarkCancelled transitions issued → cancelled and bumps the record
	// version. Returns domain.ErrNotFound if the id does not exist and
	// domain.ErrConflict if the invoice is not in issued state.
	MarkCancelled(ctx context.Context, id int64) error
}
