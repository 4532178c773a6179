package entity

import "time"

// Audit actions.
const (
	AuditActionCreate = "create"
	AuditActionCancel = "cancel"
)

// AuditEntry is an append-only record of who did what to which entity and
// when. Entries are never mutated or deleted.
type AuditEntry struct {
	ID         int64
	ActorID    int64
	EntityType string // "invoice", "contact", "user"
	EntityID   int64
	Action     string
	Details    map[string]any
	Timestamp  time.Time
}
