package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/okiehn/rechnung-api/internal/application/auth"
	"github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/infrastructure/archive"
	infrapdf "github.com/okiehn/rechnung-api/internal/infrastructure/pdf"
	"github.com/okiehn/rechnung-api/internal/infrastructure/postgres"
	"github.com/okiehn/rechnung-api/internal/infrastructure/tsa"
	"github.com/okiehn/rechnung-api/internal/infrastructure/zugferd"
	httpRouter "github.com/okiehn/rechnung-api/internal/interfaces/http"
	"github.com/okiehn/rechnung-api/pkg/config"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("starting application")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Archival store: PostgreSQL when reachable, local filesystem otherwise.
	store, err := archive.Probe(ctx, cfg.Archive, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("archival store")
	}
	log.Info().Str("backend", store.Name()).Msg("archival store ready")

	// Issuance pipeline: XML encoder, PDF composer, attachment embedder,
	// RFC3161 timestamping (degrades to a mock proof without a TSA).
	encoder := zugferd.NewBuilder()
	composer := infrapdf.NewMarotoComposer()
	embedder := infrapdf.NewPDFCPUEmbedder()
	timestamper := tsa.NewClient(cfg.TSA, log)

	issueUC := billing.NewIssueInvoiceUseCase(
		txRunner, encoder, composer, embedder, timestamper, store, cfg.Invoice, log,
	)
	cancelUC := billing.NewCancelInvoiceUseCase(txRunner, log)
	queryUC := billing.NewQueryInvoiceUseCase(invoiceRepo, auditRepo, store, log)
	contactUC := billing.NewContactUseCase(contactRepo)
	authUC := auth.NewUseCase(userRepo, cfg.JWT)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		IssueUC:   issueUC,
		CancelUC:  cancelUC,
		QueryUC:   queryUC,
		ContactUC: contactUC,
		AuthUC:    authUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, closing server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("application stopped")
}
