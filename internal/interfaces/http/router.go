package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/okiehn/rechnung-api/internal/application/auth"
	"github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
)

// RouterDeps dependencies for the router.
type RouterDeps struct {
	IssueUC   *billing.IssueInvoiceUseCase
	CancelUC  *billing.CancelInvoiceUseCase
	QueryUC   *billing.QueryInvoiceUseCase
	ContactUC *billing.ContactUseCase
	AuthUC    *auth.UseCase
	JWTSecret string
}

// Router registers the API routes.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (public)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Protected routes (Bearer token required)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Contacts (protected)
	contacts := protected.Group("/contacts")
	contactHandler := NewContactHandler(deps.ContactUC)
	contacts.Post("/", contactHandler.Create)
	contacts.Get("/", contactHandler.List)
	contacts.Get("/:id", contactHandler.GetByID)
	contacts.Put("/:id", contactHandler.Update)
	contacts.Delete("/:id", contactHandler.Deactivate)

	// Invoices (protected)
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.IssueUC, deps.CancelUC, deps.QueryUC)
	invoices.Post("/", invoiceHandler.Issue)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/preview", invoiceHandler.Preview)
	invoices.Get("/:id/download", invoiceHandler.Download)
	invoices.Get("/:id/versions", invoiceHandler.Versions)
	invoices.Get("/:id/audit", invoiceHandler.AuditTrail)
	// Cancellation is admin-only; the invoice itself is never deleted.
	invoices.Delete("/:id", RequireRole(entity.RoleAdmin), invoiceHandler.Cancel)
}
