package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/config"
	"github.com/cataloghq/catalog-engine/pkg/database"
	"github.com/cataloghq/catalog-engine/pkg/enricher"
	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/handlers"
	"github.com/cataloghq/catalog-engine/pkg/ingest"
	"github.com/cataloghq/catalog-engine/pkg/llm"
	"github.com/cataloghq/catalog-engine/pkg/middleware"
	"github.com/cataloghq/catalog-engine/pkg/repositories"
	"github.com/cataloghq/catalog-engine/pkg/retry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("catalog_database", cfg.Database.Database),
		zap.String("enrichment_provider", cfg.Enrichment.Provider),
		zap.Bool("enrichment_enabled", cfg.Enrichment.IsAvailable()))

	ctx := context.Background()

	// The catalog database may still be starting up alongside the service
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("failed to connect to catalog database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Enrichment backend is optional. Without an API key the enricher runs
	// in fallback mode and produces deterministic annotations.
	var llmClient llm.Client
	if cfg.Enrichment.IsAvailable() {
		llmClient, err = llm.NewClient(cfg.Enrichment.Provider, &llm.Config{
			Endpoint: cfg.Enrichment.Endpoint,
			Model:    cfg.Enrichment.Model,
			APIKey:   cfg.Enrichment.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create enrichment client", zap.Error(err))
		}
	} else {
		logger.Warn("no enrichment API key configured, semantic enrichment disabled")
	}
	enr := enricher.New(llmClient, cfg.Enrichment.Timeout(), logger)

	newExtractor := func(ctx context.Context, connString string) (extractor.Extractor, error) {
		return extractor.NewPostgresExtractor(ctx, connString, cfg.Ingestion.SampleLimit, logger)
	}
	pipeline := ingest.NewPipeline(newExtractor, enr, ingest.NewReconcilerFactory(db.Pool), logger)
	registry := ingest.NewRegistry()

	databases := repositories.NewDatabaseMetadataRepository(db.Pool)
	tables := repositories.NewTableMetadataRepository(db.Pool)
	columns := repositories.NewColumnMetadataRepository(db.Pool)
	audits := repositories.NewAuditLogRepository(db.Pool)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewIngestionHandler(pipeline, registry, newExtractor, cfg.Ingestion.DefaultSchema, logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(databases, tables, columns, audits, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting catalog-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations applies pending schema migrations. golang-migrate works over
// database/sql, so this opens its own short-lived connection.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
