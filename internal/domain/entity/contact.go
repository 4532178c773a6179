package entity

import "time"

// Contact types.
const (
	ContactTypeCustomer = "customer"
	ContactTypeSupplier = "supplier"
	ContactTypeBoth     = "both"
)

// Contact is a directory entry used to prefill invoice party blocks.
// Issued invoices hold snapshots, never references to this record.
type Contact struct {
	ID            int64
	ContactType   string
	CompanyName   string
	ContactPerson string
	Street        string
	ZipCode       string
	City          string
	Country       string
	TaxID         string
	Email         string
	Phone         string
	Website       string
	Notes         string
	IsActive      bool
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
