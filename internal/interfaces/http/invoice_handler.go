package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/application/dto"
	"github.com/okiehn/rechnung-api/internal/domain/repository"
)

// InvoiceHandler handles the invoice lifecycle (protected).
type InvoiceHandler struct {
	issueUC  *billing.IssueInvoiceUseCase
	cancelUC *billing.CancelInvoiceUseCase
	queryUC  *billing.QueryInvoiceUseCase
}

// NewInvoiceHandler builds the handler.
func NewInvoiceHandler(issueUC *billing.IssueInvoiceUseCase, cancelUC *billing.CancelInvoiceUseCase, queryUC *billing.QueryInvoiceUseCase) *InvoiceHandler {
	return &InvoiceHandler{issueUC: issueUC, cancelUC: cancelUC, queryUC: queryUC}
}

// Issue runs the full issuance pipeline and returns the finalized invoice.
// POST /api/invoices
func (h *InvoiceHandler) Issue(c *fiber.Ctx) error {
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	inv, lines, err := h.issueUC.Execute(c.Context(), in, GetUserID(c))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromInvoice(inv, lines))
}

// List returns invoices filtered by year, status and a free-text query.
// GET /api/invoices?year=2026&status=issued&q=RE01&limit=20&offset=0
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid pagination"})
	}
	page.DefaultPage()

	filter := repository.InvoiceFilter{
		Year:   c.QueryInt("year"),
		Status: c.Query("status"),
		Query:  c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	invoices, total, err := h.queryUC.List(c.Context(), filter)
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, dto.FromInvoice(inv, nil))
	}
	return c.JSON(fiber.Map{
		"invoices": out,
		"page":     dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	})
}

// GetByID returns a single invoice with its line items.
// GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	inv, lines, err := h.queryUC.Get(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(dto.FromInvoice(inv, lines))
}

// Preview streams the archived PDF inline after verifying its hash.
// GET /api/invoices/:id/preview
func (h *InvoiceHandler) Preview(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	pdf, inv, err := h.queryUC.Preview(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+inv.InvoiceNumber+`.pdf"`)
	return c.Send(pdf)
}

// Download streams a ZIP with the archived PDF and structured XML.
// GET /api/invoices/:id/download
func (h *InvoiceHandler) Download(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	archive, filename, err := h.queryUC.Download(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(archive)
}

// Versions returns the archived revisions per stored document.
// GET /api/invoices/:id/versions
func (h *InvoiceHandler) Versions(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	byKey, err := h.queryUC.Versions(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]dto.VersionResponse, 0, len(byKey))
	for key, versions := range byKey {
		for _, v := range versions {
			out = append(out, dto.VersionResponse{
				Key:         key,
				Version:     v.Version,
				Size:        v.Size,
				ContentType: v.ContentType,
				Tombstone:   v.Tombstone,
				CreatedAt:   v.CreatedAt,
			})
		}
	}
	return c.JSON(fiber.Map{"versions": out})
}

// AuditTrail returns the append-only audit entries of an invoice.
// GET /api/invoices/:id/audit
func (h *InvoiceHandler) AuditTrail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	entries, err := h.queryUC.AuditTrail(c.Context(), int64(id))
	if err != nil {
		return respondDomainError(c, err)
	}
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromAuditEntry(e))
	}
	return c.JSON(fiber.Map{"audit": out})
}

// Cancel marks an issued invoice as cancelled. The document itself is never
// deleted; the archived revisions stay readable.
// DELETE /api/invoices/:id?reason=...
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid id"})
	}
	reason := c.Query("reason")
	if err := h.cancelUC.Execute(c.Context(), int64(id), reason, GetUserID(c)); err != nil {
		return respondDomainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
