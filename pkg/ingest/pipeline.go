package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/enricher"
	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

// Options configures one ingestion run.
type Options struct {
	// ConnString is the target database connection string. Required.
	ConnString string
	// Schema is the schema to ingest. Defaults to "public".
	Schema string
	// TablePattern is a SQL LIKE pattern filtering table names. Defaults to "%".
	TablePattern string
	// Enrich enables semantic enrichment. When false the run is purely
	// structural and existing semantic fields are left untouched.
	Enrich bool
	// Actor is recorded in the audit trail.
	Actor string
}

// ExtractorFactory opens a schema extractor against a target database.
type ExtractorFactory func(ctx context.Context, connString string) (extractor.Extractor, error)

// Pipeline runs metadata ingestion: extract, enrich, reconcile.
type Pipeline struct {
	newExtractor  ExtractorFactory
	enricher      enricher.Enricher
	newReconciler ReconcilerFactory
	logger        *zap.Logger
}

// NewPipeline creates a pipeline. All dependencies are required except
// logger, which defaults to a no-op logger.
func NewPipeline(newExtractor ExtractorFactory, enr enricher.Enricher, newReconciler ReconcilerFactory, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		newExtractor:  newExtractor,
		enricher:      enr,
		newReconciler: newReconciler,
		logger:        logger.Named("ingest"),
	}
}

// ValidateConnString rejects connection strings that are not PostgreSQL URLs.
// Validation happens before any network I/O.
func ValidateConnString(connString string) error {
	if strings.TrimSpace(connString) == "" {
		return fmt.Errorf("%w: empty connection string", apperrors.ErrInvalidConnString)
	}
	parsed, err := url.Parse(connString)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConnString, err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("%w: scheme %q is not supported", apperrors.ErrInvalidConnString, parsed.Scheme)
	}
	return nil
}

// Run executes one ingestion run against the target described by opts.
// Table failures are isolated: a failing table is recorded in the returned
// stats and the run continues with the next table. Only setup failures
// (unreachable target, failed transaction) abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*models.IngestionStats, error) {
	if err := ValidateConnString(opts.ConnString); err != nil {
		return nil, err
	}
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.TablePattern == "" {
		opts.TablePattern = "%"
	}

	p.logger.Info("starting metadata ingestion",
		zap.String("schema", opts.Schema),
		zap.String("pattern", opts.TablePattern),
		zap.Bool("enrich", opts.Enrich))

	start := time.Now()
	stats := &models.IngestionStats{Errors: []string{}}

	ext, err := p.newExtractor(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	defer ext.Close()

	dbInfo, err := ext.DatabaseInfo(ctx, opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("extract database info: %w", err)
	}

	rec, err := p.newReconciler(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := rec.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				p.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	var dbEnrichment *enricher.DatabaseEnrichment
	if opts.Enrich {
		dbEnrichment = p.enricher.EnrichDatabase(ctx, dbInfo)
	}

	databaseID, err := rec.UpsertDatabase(ctx, dbInfo, dbEnrichment)
	if err != nil {
		return nil, fmt.Errorf("upsert database: %w", err)
	}
	stats.DatabasesProcessed = 1

	tables, err := ext.Tables(ctx, opts.Schema, opts.TablePattern)
	if err != nil {
		return nil, fmt.Errorf("extract tables: %w", err)
	}
	p.logger.Info("found tables matching pattern", zap.Int("count", len(tables)))

	for i := range tables {
		table := &tables[i]
		if err := p.processTable(ctx, ext, rec, databaseID, table, opts.Enrich, stats); err != nil {
			errMsg := fmt.Sprintf("Error processing table %s: %v", table.TableName, err)
			p.logger.Error("table ingestion failed",
				zap.String("table", table.TableName),
				zap.Error(err))
			stats.Errors = append(stats.Errors, errMsg)
			continue
		}
		stats.TablesProcessed++
	}

	stats.DurationSeconds = time.Since(start).Seconds()

	if err := rec.RecordRun(ctx, opts.Actor, stats); err != nil {
		return nil, fmt.Errorf("record run audit entry: %w", err)
	}
	if err := rec.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	p.logger.Info("ingestion complete",
		zap.Int("databases", stats.DatabasesProcessed),
		zap.Int("tables", stats.TablesProcessed),
		zap.Int("columns", stats.ColumnsProcessed),
		zap.Int("errors", len(stats.Errors)),
		zap.Float64("duration_seconds", stats.DurationSeconds))

	return stats, nil
}

// processTable ingests one table with its columns. Column failures are
// logged and skipped; they never fail the table.
func (p *Pipeline) processTable(ctx context.Context, ext extractor.Extractor, rec Reconciler, databaseID uuid.UUID, table *extractor.TableInfo, enrich bool, stats *models.IngestionStats) error {
	columns, err := ext.Columns(ctx, table.Schema, table.TableName)
	if err != nil {
		return fmt.Errorf("extract columns: %w", err)
	}

	rels, err := ext.Relationships(ctx, table.Schema, table.TableName)
	if err != nil {
		return fmt.Errorf("extract relationships: %w", err)
	}

	var tableEnrichment *enricher.TableEnrichment
	if enrich {
		tableEnrichment = p.enricher.EnrichTable(ctx, table, columns, rels)
	}

	tableID, err := rec.UpsertTable(ctx, databaseID, table, columns, tableEnrichment, rels)
	if err != nil {
		return fmt.Errorf("upsert table: %w", err)
	}

	for i := range columns {
		column := &columns[i]

		var columnEnrichment *enricher.ColumnEnrichment
		if enrich {
			columnEnrichment = p.enricher.EnrichColumn(ctx, column, table.TechnicalName)
		}

		if _, err := rec.UpsertColumn(ctx, tableID, column, columnEnrichment); err != nil {
			p.logger.Error("column ingestion failed",
				zap.String("table", table.TableName),
				zap.String("column", column.ColumnName),
				zap.Error(err))
			continue
		}
		stats.ColumnsProcessed++
	}

	p.logger.Info("processed table",
		zap.String("table", table.TechnicalName),
		zap.Int("columns", len(columns)))
	return nil
}

func marshalStats(stats *models.IngestionStats) (string, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshal run stats: %w", err)
	}
	return string(data), nil
}
