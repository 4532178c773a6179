package repository

import (
	"context"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// ContactRepository defines the persistence port for the party directory.
type ContactRepository interface {
	Create(ctx context.Context, c *entity.Contact) error
	GetByID(ctx context.Context, id int64) (*entity.Contact, error)
	List(ctx context.Context, contactType, query string, limit, offset int) ([]*entity.Contact, int, error)
	Update(ctx context.Context, c *entity.Contact) error
	// Deactivate soft-deletes the contact so existing invoices keep their
	// snapshot of the party data.
	Deactivate(ctx context.Context, id int64) error
}
