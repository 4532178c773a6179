package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implements the append-only audit log over PostgreSQL. Pass pool
// or tx (Querier). There is no update or delete path, the table only grows.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository builds the adapter. Pass pool or tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append inserts a new audit entry.
func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO audit_log (actor_id, entity_type, entity_id, action, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.ActorID, e.EntityType, e.EntityID, e.Action, details,
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, oldest first.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, actor_id, entity_type, entity_id, action, details, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var list []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.EntityType, &e.EntityID, &e.Action, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
