package dto

import (
	"time"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// AuditEntryResponse one audit trail record for GET /api/invoices/:id/audit.
type AuditEntryResponse struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// FromAuditEntry maps a domain audit entry to its response form.
func FromAuditEntry(e *entity.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Details:    e.Details,
		Timestamp:  e.Timestamp,
	}
}
