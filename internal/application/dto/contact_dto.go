package dto

import (
	"time"

	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// ContactRequest body for POST/PUT /api/contacts.
type ContactRequest struct {
	ContactType   string `json:"contact_type"` // customer | supplier | both
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Street        string `json:"street,omitempty"`
	ZipCode       string `json:"zip_code,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Website       string `json:"website,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// ContactResponse directory entry in responses.
type ContactResponse struct {
	ID            int64     `json:"id"`
	ContactType   string    `json:"contact_type"`
	CompanyName   string    `json:"company_name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Street        string    `json:"street,omitempty"`
	ZipCode       string    `json:"zip_code,omitempty"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	TaxID         string    `json:"tax_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Website       string    `json:"website,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromContact maps a domain contact to its response form.
func FromContact(c *entity.Contact) ContactResponse {
	return ContactResponse{
		ID:            c.ID,
		ContactType:   c.ContactType,
		CompanyName:   c.CompanyName,
		ContactPerson: c.ContactPerson,
		Street:        c.Street,
		ZipCode:       c.ZipCode,
		City:          c.City,
		Country:       c.Country,
		TaxID:         c.TaxID,
		Email:         c.Email,
		Phone:         c.Phone,
		Website:       c.Website,
		Notes:         c.Notes,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
	}
}
