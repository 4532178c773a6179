package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// PartyRequest full party snapshot in an issuance request.
type PartyRequest struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
	TaxID   string `json:"tax_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineItemRequest one invoice position in an issuance request.
type LineItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// CreateInvoiceRequest body for POST /api/invoices. The issue date is always
// server-assigned; line amounts and totals are always server-computed.
type CreateInvoiceRequest struct {
	Seller            PartyRequest      `json:"seller"`
	Buyer             PartyRequest      `json:"buyer"`
	Items             []LineItemRequest `json:"items"`
	Currency          string            `json:"currency,omitempty"` // default EUR
	DeliveryDateStart *time.Time        `json:"delivery_date_start,omitempty"`
	DeliveryDateEnd   *time.Time        `json:"delivery_date_end,omitempty"`
	TaxExempt         bool              `json:"tax_exempt,omitempty"`
	TaxExemptReason   string            `json:"tax_exempt_reason,omitempty"`
	PaymentTerms      string            `json:"payment_terms,omitempty"`
	Notes             string            `json:"notes,omitempty"`
}

// ProofResponse timestamp proof in invoice responses.
type ProofResponse struct {
	TSAURL        string    `json:"tsa_url,omitempty"`
	HashAlgorithm string    `json:"hash_algorithm"`
	DocumentHash  string    `json:"document_hash"`
	FinalHash     string    `json:"final_hash"`
	Timestamp     time.Time `json:"timestamp"`
	Degraded      bool      `json:"degraded"`
	Warning       string    `json:"warning,omitempty"`
}

// LineItemResponse one position in an invoice response.
type LineItemResponse struct {
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineNet     decimal.Decimal `json:"line_net"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	LineGross   decimal.Decimal `json:"line_gross"`
}

// InvoiceResponse invoice with artifacts for GET /api/invoices/:id.
type InvoiceResponse struct {
	ID                int64              `json:"id"`
	InvoiceNumber     string             `json:"invoice_number"`
	IssueDate         string             `json:"issue_date"` // yyyy-mm-dd
	DeliveryDateStart *time.Time         `json:"delivery_date_start,omitempty"`
	DeliveryDateEnd   *time.Time         `json:"delivery_date_end,omitempty"`
	Seller            PartyRequest       `json:"seller"`
	Buyer             PartyRequest       `json:"buyer"`
	Currency          string             `json:"currency"`
	NetTotal          decimal.Decimal    `json:"net_total"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	GrossTotal        decimal.Decimal    `json:"gross_total"`
	TaxExempt         bool               `json:"tax_exempt,omitempty"`
	TaxExemptReason   string             `json:"tax_exempt_reason,omitempty"`
	PaymentTerms      string             `json:"payment_terms,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	PDFPath           string             `json:"pdf_path,omitempty"`
	XMLPath           string             `json:"xml_path,omitempty"`
	PDFHash           string             `json:"pdf_hash,omitempty"`
	XMLHash           string             `json:"xml_hash,omitempty"`
	Proof             *ProofResponse     `json:"proof,omitempty"`
	Status            string             `json:"status"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	Items             []LineItemResponse `json:"items,omitempty"`
}

// VersionResponse one archived revision for GET /api/invoices/:id/versions.
type VersionResponse struct {
	Key         string    `json:"key"`
	Version     int       `json:"version"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Tombstone   bool      `json:"tombstone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToParty converts the request snapshot to the domain value.
func (p PartyRequest) ToParty() entity.Party {
	return entity.Party{
		Name:    p.Name,
		Street:  p.Street,
		Zip:     p.Zip,
		City:    p.City,
		Country: p.Country,
		TaxID:   p.TaxID,
		Email:   p.Email,
		Phone:   p.Phone,
	}
}

// FromParty converts a domain party to its response form.
func FromParty(p entity.Party) PartyRequest {
	return PartyRequest{
		Name:    p.Name,
		Street:  p.Street,
		Zip:     p.Zip,
		City:    p.City,
		Country: p.Country,
		TaxID:   p.TaxID,
		Email:   p.Email,
		Phone:   p.Phone,
	}
}

// FromInvoice maps a domain invoice (plus lines, possibly nil) to a response.
func FromInvoice(inv *entity.Invoice, lines []entity.LineItem) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		IssueDate:         inv.IssueDate.Format("2006-01-02"),
		DeliveryDateStart: inv.DeliveryDateStart,
		DeliveryDateEnd:   inv.DeliveryDateEnd,
		Seller:            FromParty(inv.Seller),
		Buyer:             FromParty(inv.Buyer),
		Currency:          inv.Currency,
		NetTotal:          inv.NetTotal,
		TaxTotal:          inv.TaxTotal,
		GrossTotal:        inv.GrossTotal,
		TaxExempt:         inv.TaxExempt,
		TaxExemptReason:   inv.TaxExemptReason,
		PaymentTerms:      inv.PaymentTerms,
		Notes:             inv.Notes,
		PDFPath:           inv.PDFPath,
		XMLPath:           inv.XMLPath,
		PDFHash:           inv.PDFHash,
		XMLHash:           inv.XMLHash,
		Status:            inv.Status,
		Version:           inv.Version,
		CreatedAt:         inv.CreatedAt,
	}
	if inv.Proof != nil {
		resp.Proof = &ProofResponse{
			TSAURL:        inv.Proof.TSAURL,
			HashAlgorithm: inv.Proof.HashAlgorithm,
			DocumentHash:  inv.Proof.DocumentHash,
			FinalHash:     inv.Proof.FinalHash,
			Timestamp:     inv.Proof.Timestamp,
			Degraded:      inv.Proof.Degraded,
			Warning:       inv.Proof.Warning,
		}
	}
	for _, l := range lines {
		resp.Items = append(resp.Items, LineItemResponse{
			Position:    l.Position,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitPrice:   l.UnitPrice,
			LineNet:     l.LineNet,
			TaxRate:     l.TaxRate,
			TaxAmount:   l.TaxAmount,
			LineGross:   l.LineGross,
		})
	}
	return resp
}
