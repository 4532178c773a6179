package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/application/dto"
)

// ContactHandler handles the customer/supplier directory (protected).
type ContactHandler struct {
	uc *billing.ContactUseCase
}

// NewContactHandler builds the handler.
func NewContactHandler(uc *billing.ContactUseCase) *ContactHandler {
	return &ContactHandler{uc: uc}
}

// Create registers a new contact.
// POST /api/contacts
func (h *ContactHandler) Create(c *fiber.Ctx) error {
	var in dto.ContactRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	contact, err := h.uc.Create(c.Context(), in, GetUserID(c))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromContact(contact))
}

// List returns active contacts filtered by type and a free-text query.
// GET /api/contacts?type=customer&q=acme&limit=20&offset=0
func (h *ContactHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid pagination"})
	}
	page.DefaultPage()

	contacts, total, err := h.uc.List(c.Context(), c.Query("type"), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]dto.ContactResponse, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, dto.FromContact(contact))
	}
	return c.JSON(fiber.Map{
		"contacts": out,
		"page":     dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	})
}

// GetByID returns a single contact.
// GET /api/contacts/:id
func (h *ContactHandler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	contact, err := h.uc.Get(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(dto.FromContact(contact))
}

// Update replaces the contact's editable fields.
// PUT /api/contacts/:id
func (h *ContactHandler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	var in dto.ContactRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	contact, err := h.uc.Update(c.Context(), int64(id), in)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(dto.FromContact(contact))
}

// Deactivate soft-deletes a contact. Invoices that reference it keep their
// party snapshot untouched.
// DELETE /api/contacts/:id
func (h *ContactHandler) Deactivate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	if err := h.uc.Deactivate(c.Context(), int64(id)); err != nil {
		return respondDomainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
