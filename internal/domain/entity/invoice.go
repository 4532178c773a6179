package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice lifecycle states. StatusDraft exists only in memory while a request
// is being worked on: the pipeline persists an invoice directly in
// StatusIssued, and the only permitted transition afterwards is
// issued -> cancelled. There is no deletion, ever.
const (
	StatusDraft     = "draft"
	StatusIssued    = "issued"
	StatusCancelled = "cancelled"
)

// Party is a full snapshot of a trade party at issuance time. Invoices
// never reference the contact directory: a later contact edit must not
// retroactively alter an issued invoice.
type Party struct {
	Name    string
	Street  string
	Zip     string
	City    string
	Country string // ISO 3166-1 alpha-2
	TaxID   string // mandatory for the seller, optional for the buyer
	Email   string
	Phone   string
}

// Invoice is the persisted, immutable issuance record.
type Invoice struct {
	ID            int64
	InvoiceNumber string // {prefix}{number:06d}, e.g. RE010000
	IssueDate     time.Time

	DeliveryDateStart *time.Time
	DeliveryDateEnd   *time.Time

	Seller Party
	Buyer  Party

	Currency   string
	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrossTotal decimal.Decimal

	TaxExempt       bool
	TaxExemptReason string

	Notes        string
	PaymentTerms string

	// Archival artifacts. PDFHash is the SHA-256 of the final composed
	// document bytes as stored; XMLHash is the SHA-256 of the canonicalized
	// structured document.
	PDFPath string
	XMLPath string
	PDFHash string
	XMLHash string
	Proof   *ProofToken

	Status      string
	Version     int
	IsImmutable bool

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one computed invoice position. Monetary fields are rounded to
// two places at the line level; invoice totals are sums of these rounded
// values, never re-rounded aggregates.
type LineItem struct {
	ID        int64
	InvoiceID int64

	Position    int // 1-based, contiguous, unique per invoice
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	LineNet     decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	LineGross   decimal.Decimal
}

// NumberSequence backs the gapless invoice numbering per prefix. Concurrent
// allocations serialize through a row lock on this record.
type NumberSequence struct {
	ID            int64
	Prefix        string
	CurrentNumber int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
