package billing

import (
	"context"
	"fmt"

	"github.com/okiehn/rechnung-api/internal/application/dto"
	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

// ContactUseCase manages the party directory used to prefill invoice forms.
type ContactUseCase struct {
	contactRepo repository.ContactRepository
}

// NewContactUseCase builds the use case.
func NewContactUseCase(contactRepo repository.ContactRepository) *ContactUseCase {
	return &ContactUseCase{contactRepo: contactRepo}
}

// Create validates and persists a directory entry.
func (uc *ContactUseCase) Create(ctx context.Context, req dto.ContactRequest, userID int64) (*entity.Contact, error) {
	if err := validateContact(req); err != nil {
		return nil, err
	}
	c := contactFromRequest(req)
	c.IsActive = true
	c.CreatedBy = userID
	if err := uc.contactRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns one contact.
func (uc *ContactUseCase) Get(ctx context.Context, id int64) (*entity.Contact, error) {
	return uc.contactRepo.GetByID(ctx, id)
}

// List returns active contacts filtered by type and query.
func (uc *ContactUseCase) List(ctx context.Context, contactType, query string, limit, offset int) ([]*entity.Contact, int, error) {
	switch contactType {
	case "", entity.ContactTypeCustomer, entity.ContactTypeSupplier, entity.ContactTypeBoth:
	default:
		return nil, 0, fmt.Errorf("%w: unknown contact type %q", domain.ErrValidation, contactType)
	}
	return uc.contactRepo.List(ctx, contactType, query, limit, offset)
}

// Update rewrites an existing contact. Issued invoices are unaffected, they
// carry party snapshots.
func (uc *ContactUseCase) Update(ctx context.Context, id int64, req dto.ContactRequest) (*entity.Contact, error) {
	if err := validateContact(req); err != nil {
		return nil, err
	}
	c := contactFromRequest(req)
	c.ID = id
	if err := uc.contactRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return uc.contactRepo.GetByID(ctx, id)
}

// Deactivate soft-deletes the contact.
func (uc *ContactUseCase) Deactivate(ctx context.Context, id int64) error {
	return uc.contactRepo.Deactivate(ctx, id)
}

func validateContact(req dto.ContactRequest) error {
	if req.CompanyName == "" {
		return fmt.Errorf("%w: company_name is required", domain.ErrValidation)
	}
	switch req.ContactType {
	case entity.ContactTypeCustomer, entity.ContactTypeSupplier, entity.ContactTypeBoth:
		return nil
	default:
		return fmt.Errorf("%w: contact_type must be customer, supplier or both", domain.ErrValidation)
	}
}

func contactFromRequest(req dto.ContactRequest) *entity.Contact {
	return &entity.Contact{
		ContactType:   req.ContactType,
		CompanyName:   req.CompanyName,
		ContactPerson: req.ContactPerson,
		Street:        req.Street,
		ZipCode:       req.ZipCode,
		City:          req.City,
		Country:       req.Country,
		TaxID:         req.TaxID,
		Email:         req.Email,
		Phone:         req.Phone,
		Website:       req.Website,
		Notes:         req.Notes,
	}
}
