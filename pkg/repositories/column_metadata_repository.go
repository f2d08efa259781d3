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

// ColumnMetadataRepository provides access to column_metadata records.
type ColumnMetadataRepository interface {
	Create(ctx context.Context, record *models.ColumnMetadata) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ColumnMetadata, error)
	GetByName(ctx context.Context, tableID uuid.UUID, columnName string) (*models.ColumnMetadata, error)
	ListByTable(ctx context.Context, tableID uuid.UUID) ([]models.ColumnMetadata, error)
	Update(ctx context.Context, record *models.ColumnMetadata) error
}

type columnMetadataRepository struct {
	db database.Querier
}

// NewColumnMetadataRepository creates a repository backed by db.
func NewColumnMetadataRepository(db database.Querier) ColumnMetadataRepository {
	return &columnMetadataRepository{db: db}
}

const columnMetadataColumns = `
	id, table_id, column_name, data_type, description,
	is_primary_key, is_foreign_key, is_nullable, is_pii,
	cardinality, valid_values, example_value,
	transformation_logic, downstream_usage, created_at, updated_at
`

func scanColumnMetadata(row pgx.Row) (*models.ColumnMetadata, error) {
	var record models.ColumnMetadata
	err := row.Scan(
		&record.ID,
		&record.TableID,
		&record.ColumnName,
		&record.DataType,
		&record.Description,
		&record.IsPrimaryKey,
		&record.IsForeignKey,
		&record.IsNullable,
		&record.IsPII,
		&record.Cardinality,
		&record.ValidValues,
		&record.ExampleValue,
		&record.TransformationLogic,
		&record.DownstreamUsage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *columnMetadataRepository) Create(ctx context.Context, record *models.ColumnMetadata) error {
	query := `
		INSERT INTO column_metadata (
			table_id, column_name, data_type, description,
			is_primary_key, is_foreign_key, is_nullable, is_pii,
			cardinality, valid_values, example_value,
			transformation_logic, downstream_usage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		record.TableID,
		record.ColumnName,
		record.DataType,
		record.Description,
		record.IsPrimaryKey,
		record.IsForeignKey,
		record.IsNullable,
		record.IsPII,
		record.Cardinality,
		record.ValidValues,
		record.ExampleValue,
		record.TransformationLogic,
		record.DownstreamUsage,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create column metadata: %w", err)
	}
	return nil
}

func (r *columnMetadataRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ColumnMetadata, error) {
	query := `SELECT ` + columnMetadataColumns + ` FROM column_metadata WHERE id = $1`

	record, err := scanColumnMetadata(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("column %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get column metadata: %w", err)
	}
	return record, nil
}

func (r *columnMetadataRepository) GetByName(ctx context.Context, tableID uuid.UUID, columnName string) (*models.ColumnMetadata, error) {
	query := `SELECT ` + columnMetadataColumns + ` FROM column_metadata WHERE table_id = $1 AND column_name = $2`

	record, err := scanColumnMetadata(r.db.QueryRow(ctx, query, tableID, columnName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("column %q: %w", columnName, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get column metadata by name: %w", err)
	}
	return record, nil
}

func (r *columnMetadataRepository) ListByTable(ctx context.Context, tableID uuid.UUID) ([]models.ColumnMetadata, error) {
	query := `SELECT ` + columnMetadataColumns + ` FROM column_metadata WHERE table_id = $1 ORDER BY column_name`

	rows, err := r.db.Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("list column metadata: %w", err)
	}
	defer rows.Close()

	var records []models.ColumnMetadata
	for rows.Next() {
		record, err := scanColumnMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column metadata: %w", err)
	}
	return records, nil
}

func (r *columnMetadataRepository) Update(ctx context.Context, record *models.ColumnMetadata) error {
	query := `
		UPDATE column_metadata SET
			data_type = $2,
			description = $3,
			is_primary_key = $4,
			is_foreign_key = $5,
			is_nullable = $6,
			is_pii = $7,
			cardinality = $8,
			valid_values = $9,
			example_value = $10,
			transformation_logic = $11,
			downstream_usage = $12,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		record.ID,
		record.DataType,
		record.Description,
		record.IsPrimaryKey,
		record.IsForeignKey,
		record.IsNullable,
		record.IsPII,
		record.Cardinality,
		record.ValidValues,
		record.ExampleValue,
		record.TransformationLogic,
		record.DownstreamUsage,
	)
	if err != nil {
		return fmt.Errorf("update column metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("column %s: %w", record.ID, apperrors.ErrNotFound)
	}
	return nil
}
