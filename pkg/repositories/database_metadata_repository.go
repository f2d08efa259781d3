// Package repositories provides data access for catalog records.
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

// DatabaseMetadataRepository provides access to database_metadata records.
type DatabaseMetadataRepository interface {
	Create(ctx context.Context, record *models.DatabaseMetadata) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DatabaseMetadata, error)
	GetByName(ctx context.Context, databaseName string) (*models.DatabaseMetadata, error)
	List(ctx context.Context) ([]models.DatabaseMetadata, error)
	Update(ctx context.Context, record *models.DatabaseMetadata) error
}

type databaseMetadataRepository struct {
	db database.Querier
}

// NewDatabaseMetadataRepository creates a repository backed by db, which may
// be a pool for standalone reads or a transaction for reconciler writes.
func NewDatabaseMetadataRepository(db database.Querier) DatabaseMetadataRepository {
	return &databaseMetadataRepository{db: db}
}

const databaseMetadataColumns = `
	id, database_name, business_domain, description, sensitivity,
	owner, refresh_frequency, source_systems, created_at, updated_at
`

func scanDatabaseMetadata(row pgx.Row) (*models.DatabaseMetadata, error) {
	var record models.DatabaseMetadata
	err := row.Scan(
		&record.ID,
		&record.DatabaseName,
		&record.BusinessDomain,
		&record.Description,
		&record.Sensitivity,
		&record.Owner,
		&record.RefreshFrequency,
		&record.SourceSystems,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *databaseMetadataRepository) Create(ctx context.Context, record *models.DatabaseMetadata) error {
	query := `
		INSERT INTO database_metadata (
			database_name, business_domain, description, sensitivity,
			owner, refresh_frequency, source_systems
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		record.DatabaseName,
		record.BusinessDomain,
		record.Description,
		record.Sensitivity,
		record.Owner,
		record.RefreshFrequency,
		record.SourceSystems,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("create database metadata: %w", err)
	}
	return nil
}

func (r *databaseMetadataRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DatabaseMetadata, error) {
	query := `SELECT ` + databaseMetadataColumns + ` FROM database_metadata WHERE id = $1`

	record, err := scanDatabaseMetadata(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("database %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get database metadata: %w", err)
	}
	return record, nil
}

func (r *databaseMetadataRepository) GetByName(ctx context.Context, databaseName string) (*models.DatabaseMetadata, error) {
	query := `SELECT ` + databaseMetadataColumns + ` FROM database_metadata WHERE database_name = $1`

	record, err := scanDatabaseMetadata(r.db.QueryRow(ctx, query, databaseName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("database %q: %w", databaseName, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get database metadata by name: %w", err)
	}
	return record, nil
}

func (r *databaseMetadataRepository) List(ctx context.Context) ([]models.DatabaseMetadata, error) {
	query := `SELECT ` + databaseMetadataColumns + ` FROM database_metadata ORDER BY database_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list database metadata: %w", err)
	}
	defer rows.Close()

	var records []models.DatabaseMetadata
	for rows.Next() {
		record, err := scanDatabaseMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan database metadata: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate database metadata: %w", err)
	}
	return records, nil
}

func (r *databaseMetadataRepository) Update(ctx context.Context, record *models.DatabaseMetadata) error {
	query := `
		UPDATE database_metadata SET
			business_domain = $2,
			description = $3,
			sensitivity = $4,
			owner = $5,
			refresh_frequency = $6,
			source_systems = $7,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		record.ID,
		record.BusinessDomain,
		record.Description,
		record.Sensitivity,
		record.Owner,
		record.RefreshFrequency,
		record.SourceSystems,
	)
	if err != nil {
		return fmt.Errorf("update database metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("database %s: %w", record.ID, apperrors.ErrNotFound)
	}
	return nil
}
