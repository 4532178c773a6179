package entity

import "time"

// User roles.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
)

// User is an authenticated actor. Only its id reaches the issuance
// pipeline, as audit attribution.
type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}
