package repository

import (
	"context"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// AuditRepository defines the persistence port for the append-only audit log.
// Entries are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, e *entity.AuditEntry) error
	ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error)
}
