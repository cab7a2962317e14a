package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docflow/docs"
	"docflow/internal/auth"
	"docflow/internal/config"
	"docflow/internal/database"
	"docflow/internal/database/migration"
	handlers "docflow/internal/http/handler"
	"docflow/internal/http/middleware"
	"docflow/internal/logging"
	"docflow/internal/metrics"
	"docflow/internal/notifier"
	"docflow/internal/otel"
	"docflow/internal/repository/postgres"
	"docflow/internal/service"
	"docflow/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title       Docflow API
// @version     1.0
// @description Document ingestion: upload, persist, notify.
// @BasePath    /
func main() {
	if err := run(); err != nil {
		slog.Error("server_exit", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	// .env is auto-loaded if present; real environment variables take precedence.
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		return err
	}

	store, err := storage.NewMinIO(cfg.MinIO, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	dispatcher, err := notifier.New(cfg.Notifier, logger, m)
	if err != nil {
		return err
	}

	var verifier auth.Verifier
	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	if jwtVerifier != nil {
		verifier = jwtVerifier
	} else {
		logger.Warn("auth_header_mode", "header", middleware.UserIDHeader)
	}

	docSvc := service.NewDocumentService(store, postgres.NewDocumentPostgres(db), dispatcher,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithNamespace(cfg.Ingest.Namespace),
		service.WithMaxUploadSize(cfg.Ingest.MaxUploadBytes()),
		service.WithTimeouts(cfg.Ingest.UploadTimeout(), cfg.Ingest.PersistTimeout()),
		service.WithPresignExpiry(time.Duration(cfg.MinIO.PresignExpirySec)*time.Second),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimit(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(cors.New())
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:            db,
		Docs:          docSvc,
		Verifier:      verifier,
		CallbackToken: cfg.Auth.CallbackToken,
		Gatherer:      reg,
		SwaggerInfo:   docs.SwaggerInfo,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", ":"+cfg.Port, "app_host", cfg.AppHost)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	var errs []error
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	// In-flight notifications get the same budget before the pool is dropped.
	if err := dispatcher.Release(shutdownTimeout); err != nil {
		logger.Warn("notifier_release_timeout", "error", err.Error())
	}

	tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(tctx); err != nil {
		errs = append(errs, err)
	}
	logger.Info("server_stopped")
	return errors.Join(errs...)
}
