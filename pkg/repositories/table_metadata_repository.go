package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/database"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

// TableMetadataRepository provides access to table_metadata records.
// Technical names are scoped to their owning database.
type TableMetadataRepository interface {
	Create(ctx context.Context, record *models.TableMetadata) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TableMetadata, error)
	GetByTechnicalName(ctx context.Context, databaseID uuid.UUID, technicalName string) (*models.TableMetadata, error)
	ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]models.TableMetadata, error)
	Update(ctx context.Context, record *models.TableMetadata) error
}

type tableMetadataRepository struct {
	db database.Querier
}

// NewTableMetadataRepository creates a repository backed by db.
func NewTableMetadataRepository(db database.Querier) TableMetadataRepository {
	return &tableMetadataRepository{db: db}
}

const tableMetadataColumns = `
	id, database_id, technical_name, display_name, description,
	table_type, business_purpose, status, refresh_frequency, sla_info,
	primary_key, foreign_keys, cardinality_overview, owner, data_sensitivity,
	created_at, updated_at
`

func scanTableMetadata(row pgx.Row) (*models.TableMetadata, error) {
	var record models.TableMetadata
	err := row.Scan(
		&record.ID,
		&record.DatabaseID,
		&record.TechnicalName,
		&record.DisplayName,
		&record.Description,
		&record.TableType,
		&record.BusinessPurpose,
		&record.Status,
		&record.RefreshFrequency,
		&record.SLAInfo,
		&record.PrimaryKey,
		&record.ForeignKeys,
		&record.CardinalityOverview,
		&record.Owner,
		&record.DataSensitivity,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *tableMetadataRepository) Create(ctx context.Context, record *models.TableMetadata) error {
	if record.Status == "" {
		record.Status = "active"
	}

	query := `
		INSERT INTO table_metadata (
			database_id, technical_name, display_name, description,
			table_type, business_purpose, status, refresh_frequency, sla_info,
			primary_key, foreign_keys, cardinality_overview, owner, data_sensitivity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		record.DatabaseID,
		record.TechnicalName,
		record.DisplayName,
		record.Description,
		record.TableType,
		record.BusinessPurpose,
		record.Status,
		record.RefreshFrequency,
		record.SLAInfo,
		record.PrimaryKey,
		record.ForeignKeys,
		record.CardinalityOverview,
		record.Owner,
		record.DataSensitivity,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create table metadata: %w", err)
	}
	return nil
}

func (r *tableMetadataRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TableMetadata, error) {
	query := `SELECT ` + tableMetadataColumns + ` FROM table_metadata WHERE id = $1`

	record, err := scanTableMetadata(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get table metadata: %w", err)
	}
	return record, nil
}

func (r *tableMetadataRepository) GetByTechnicalName(ctx context.Context, databaseID uuid.UUID, technicalName string) (*models.TableMetadata, error) {
	query := `SELECT ` + tableMetadataColumns + ` FROM table_metadata WHERE database_id = $1 AND technical_name = $2`

	record, err := scanTableMetadata(r.db.QueryRow(ctx, query, databaseID, technicalName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("table %q: %w", technicalName, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get table metadata by technical name: %w", err)
	}
	return record, nil
}

func (r *tableMetadataRepository) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]models.TableMetadata, error) {
	query := `SELECT ` + tableMetadataColumns + ` FROM table_metadata WHERE database_id = $1 ORDER BY technical_name`

	rows, err := r.db.Query(ctx, query, databaseID)
	if err != nil {
		return nil, fmt.Errorf("list table metadata: %w", err)
	}
	defer rows.Close()

	var records []models.TableMetadata
	for rows.Next() {
		record, err := scanTableMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table metadata: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table metadata: %w", err)
	}
	return records, nil
}

func (r *tableMetadataRepository) Update(ctx context.Context, record *models.TableMetadata) error {
	query := `
		UPDATE table_metadata SET
			display_name = $2,
			description = $3,
			table_type = $4,
			business_purpose = $5,
			status = $6,
			refresh_frequency = $7,
			sla_info = $8,
			primary_key = $9,
			foreign_keys = $10,
			cardinality_overview = $11,
			owner = $12,
			data_sensitivity = $13,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		record.ID,
		record.DisplayName,
		record.Description,
		record.TableType,
		record.BusinessPurpose,
		record.Status,
		record.RefreshFrequency,
		record.SLAInfo,
		record.PrimaryKey,
		record.ForeignKeys,
		record.CardinalityOverview,
		record.Owner,
		record.DataSensitivity,
	)
	if err != nil {
		return fmt.Errorf("update table metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("table %s: %w", record.ID, apperrors.ErrNotFound)
	}
	return nil
}
