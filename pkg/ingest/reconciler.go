// Package ingest orchestrates metadata extraction, enrichment, and
// reconciliation into the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/enricher"
	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/models"
	"github.com/cataloghq/catalog-engine/pkg/repositories"
)

// Reconciler merges extracted facts and enrichment results into catalog
// records. One reconciler is bound to one transaction: either Commit or
// Rollback must be called exactly once.
//
// The merge policy distinguishes two field classes. Structural fields
// (data types, nullability, cardinality, foreign keys) always reflect the
// latest extraction. Semantic fields (descriptions, display names, PII flags)
// are only overwritten by a non-empty enrichment value, so curated text
// survives re-ingestion without enrichment. A nil enrichment seeds newly
// created records from structural fallbacks and leaves existing semantic
// fields alone.
type Reconciler interface {
	UpsertDatabase(ctx context.Context, info *extractor.DatabaseInfo, enrichment *enricher.DatabaseEnrichment) (uuid.UUID, error)
	UpsertTable(ctx context.Context, databaseID uuid.UUID, info *extractor.TableInfo, columns []extractor.ColumnInfo, enrichment *enricher.TableEnrichment, rels *extractor.Relationships) (uuid.UUID, error)
	UpsertColumn(ctx context.Context, tableID uuid.UUID, info *extractor.ColumnInfo, enrichment *enricher.ColumnEnrichment) (uuid.UUID, error)
	RecordRun(ctx context.Context, actor string, stats *models.IngestionStats) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ReconcilerFactory opens a new transaction-bound reconciler.
type ReconcilerFactory func(ctx context.Context) (Reconciler, error)

type pgxReconciler struct {
	tx        pgx.Tx
	databases repositories.DatabaseMetadataRepository
	tables    repositories.TableMetadataRepository
	columns   repositories.ColumnMetadataRepository
	audits    repositories.AuditLogRepository
}

// Ensure pgxReconciler implements Reconciler at compile time.
var _ Reconciler = (*pgxReconciler)(nil)

// NewReconcilerFactory returns a factory that opens one transaction on pool
// per reconciler.
func NewReconcilerFactory(pool *pgxpool.Pool) ReconcilerFactory {
	return func(ctx context.Context) (Reconciler, error) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin reconciler transaction: %w", err)
		}
		return &pgxReconciler{
			tx:        tx,
			databases: repositories.NewDatabaseMetadataRepository(tx),
			tables:    repositories.NewTableMetadataRepository(tx),
			columns:   repositories.NewColumnMetadataRepository(tx),
			audits:    repositories.NewAuditLogRepository(tx),
		}, nil
	}
}

func (r *pgxReconciler) Commit(ctx context.Context) error {
	if err := r.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconciler transaction: %w", err)
	}
	return nil
}

func (r *pgxReconciler) Rollback(ctx context.Context) error {
	if err := r.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback reconciler transaction: %w", err)
	}
	return nil
}

// mergeText returns candidate unless it is empty, in which case existing wins.
func mergeText(existing, candidate string) string {
	if candidate != "" {
		return candidate
	}
	return existing
}

func (r *pgxReconciler) UpsertDatabase(ctx context.Context, info *extractor.DatabaseInfo, enrichment *enricher.DatabaseEnrichment) (uuid.UUID, error) {
	existing, err := r.databases.GetByName(ctx, info.DatabaseName)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return uuid.Nil, err
	}

	if existing == nil {
		fb := enricher.FallbackDatabaseEnrichment(info)
		record := &models.DatabaseMetadata{
			DatabaseName:   info.DatabaseName,
			BusinessDomain: fb.BusinessDomain,
			Description:    fb.Description,
			Sensitivity:    fb.Sensitivity,
		}
		if enrichment != nil {
			record.BusinessDomain = mergeText(record.BusinessDomain, enrichment.BusinessDomain)
			record.Description = mergeText(record.Description, enrichment.Description)
			if enrichment.Sensitivity != "" {
				record.Sensitivity = enrichment.Sensitivity
			}
		}
		if err := r.databases.Create(ctx, record); err != nil {
			return uuid.Nil, err
		}
		return record.ID, nil
	}

	if enrichment != nil {
		existing.BusinessDomain = mergeText(existing.BusinessDomain, enrichment.BusinessDomain)
		existing.Description = mergeText(existing.Description, enrichment.Description)
		if enrichment.Sensitivity != "" {
			existing.Sensitivity = enrichment.Sensitivity
		}
	}
	if err := r.databases.Update(ctx, existing); err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

func (r *pgxReconciler) UpsertTable(ctx context.Context, databaseID uuid.UUID, info *extractor.TableInfo, columns []extractor.ColumnInfo, enrichment *enricher.TableEnrichment, rels *extractor.Relationships) (uuid.UUID, error) {
	existing, err := r.tables.GetByTechnicalName(ctx, databaseID, info.TechnicalName)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return uuid.Nil, err
	}

	var fkText string
	if rels != nil {
		fkText = strings.Join(rels.ForeignKeys, "\n")
	}
	pkText := primaryKeyText(columns)
	overview := fmt.Sprintf("~%d rows", info.RowCount)

	if existing == nil {
		fb := enricher.FallbackTableEnrichment(info)
		record := &models.TableMetadata{
			DatabaseID:          databaseID,
			TechnicalName:       info.TechnicalName,
			DisplayName:         fb.DisplayName,
			Description:         fb.Description,
			TableType:           fb.TableType,
			BusinessPurpose:     fb.BusinessPurpose,
			DataSensitivity:     fb.Sensitivity,
			ForeignKeys:         fkText,
			PrimaryKey:          pkText,
			CardinalityOverview: overview,
		}
		if info.ExistingComment != "" {
			record.Description = info.ExistingComment
		}
		if enrichment != nil {
			record.DisplayName = mergeText(record.DisplayName, enrichment.DisplayName)
			record.Description = mergeText(record.Description, enrichment.Description)
			record.BusinessPurpose = mergeText(record.BusinessPurpose, enrichment.BusinessPurpose)
			if enrichment.TableType != "" {
				record.TableType = enrichment.TableType
			}
			if enrichment.Sensitivity != "" {
				record.DataSensitivity = enrichment.Sensitivity
			}
		}
		if err := r.tables.Create(ctx, record); err != nil {
			return uuid.Nil, err
		}
		return record.ID, nil
	}

	// Structural refresh applies regardless of enrichment.
	existing.ForeignKeys = fkText
	existing.PrimaryKey = pkText
	existing.CardinalityOverview = overview

	if enrichment != nil {
		existing.DisplayName = mergeText(existing.DisplayName, enrichment.DisplayName)
		existing.Description = mergeText(existing.Description, enrichment.Description)
		existing.BusinessPurpose = mergeText(existing.BusinessPurpose, enrichment.BusinessPurpose)
		if enrichment.TableType != "" {
			existing.TableType = enrichment.TableType
		}
		if enrichment.Sensitivity != "" {
			existing.DataSensitivity = enrichment.Sensitivity
		}
	}
	if err := r.tables.Update(ctx, existing); err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

func (r *pgxReconciler) UpsertColumn(ctx context.Context, tableID uuid.UUID, info *extractor.ColumnInfo, enrichment *enricher.ColumnEnrichment) (uuid.UUID, error) {
	existing, err := r.columns.GetByName(ctx, tableID, info.ColumnName)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return uuid.Nil, err
	}

	var exampleValue string
	if len(info.SampleValues) > 0 {
		exampleValue = info.SampleValues[0]
	}
	sampleText := strings.Join(capStrings(info.SampleValues, 10), ", ")

	if existing == nil {
		fb := enricher.FallbackColumnEnrichment(info)
		record := &models.ColumnMetadata{
			TableID:         tableID,
			ColumnName:      info.ColumnName,
			DataType:        info.DataType,
			Description:     fb.Description,
			DownstreamUsage: fb.DownstreamUsage,
			IsNullable:      info.IsNullable,
			IsPrimaryKey:    info.IsPrimaryKey,
			IsForeignKey:    info.IsForeignKey,
			Cardinality:     info.Cardinality,
			ValidValues:     sampleText,
			ExampleValue:    exampleValue,
		}
		if enrichment != nil {
			record.Description = mergeText(record.Description, enrichment.Description)
			record.ValidValues = mergeText(record.ValidValues, enrichment.ValidValues)
			record.DownstreamUsage = mergeText(record.DownstreamUsage, enrichment.DownstreamUsage)
			if enrichment.IsPII != nil {
				record.IsPII = *enrichment.IsPII
			}
		}
		if err := r.columns.Create(ctx, record); err != nil {
			return uuid.Nil, err
		}
		return record.ID, nil
	}

	// Structural refresh applies regardless of enrichment.
	existing.DataType = info.DataType
	existing.IsNullable = info.IsNullable
	existing.IsPrimaryKey = info.IsPrimaryKey
	existing.IsForeignKey = info.IsForeignKey
	existing.Cardinality = info.Cardinality
	existing.ExampleValue = exampleValue
	if existing.ValidValues == "" {
		existing.ValidValues = sampleText
	}

	if enrichment != nil {
		existing.Description = mergeText(existing.Description, enrichment.Description)
		existing.ValidValues = mergeText(existing.ValidValues, enrichment.ValidValues)
		existing.DownstreamUsage = mergeText(existing.DownstreamUsage, enrichment.DownstreamUsage)
		if enrichment.IsPII != nil {
			existing.IsPII = *enrichment.IsPII
		}
	}
	if err := r.columns.Update(ctx, existing); err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}

// RecordRun appends the run summary to the audit trail inside the same
// transaction as the catalog changes.
func (r *pgxReconciler) RecordRun(ctx context.Context, actor string, stats *models.IngestionStats) error {
	afterState, err := marshalStats(stats)
	if err != nil {
		return err
	}
	return r.audits.Create(ctx, &models.AuditLogEntry{
		Actor:      actor,
		ActionType: models.AuditActionIngestionRun,
		TargetType: "catalog",
		AfterState: afterState,
	})
}

// primaryKeyText joins the primary key column names in extraction order.
func primaryKeyText(columns []extractor.ColumnInfo) string {
	var names []string
	for _, col := range columns {
		if col.IsPrimaryKey {
			names = append(names, col.ColumnName)
		}
	}
	return strings.Join(names, ", ")
}

func capStrings(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
