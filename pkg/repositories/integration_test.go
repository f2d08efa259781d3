//go:build integration

package repositories_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/models"
	"github.com/cataloghq/catalog-engine/pkg/repositories"
	"github.com/cataloghq/catalog-engine/pkg/testhelpers"
)

func TestDatabaseMetadataRepository_RoundTrip(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)
	ctx := context.Background()
	repo := repositories.NewDatabaseMetadataRepository(db.DB.Pool)

	record := &models.DatabaseMetadata{
		DatabaseName:   "integration_salesdb",
		BusinessDomain: "Sales",
		Description:    "Database: integration_salesdb",
		Sensitivity:    models.SensitivityInternal,
	}
	require.NoError(t, repo.Create(ctx, record))
	require.NotEqual(t, record.ID.String(), "00000000-0000-0000-0000-000000000000")

	byName, err := repo.GetByName(ctx, "integration_salesdb")
	require.NoError(t, err)
	assert.Equal(t, record.ID, byName.ID)
	assert.Equal(t, "Sales", byName.BusinessDomain)

	byName.Owner = "data-platform"
	require.NoError(t, repo.Update(ctx, byName))

	updated, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "data-platform", updated.Owner)
	assert.NotNil(t, updated.UpdatedAt)
}

func TestTableMetadataRepository_CompositeUniqueness(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)
	ctx := context.Background()
	databases := repositories.NewDatabaseMetadataRepository(db.DB.Pool)
	tables := repositories.NewTableMetadataRepository(db.DB.Pool)

	first := &models.DatabaseMetadata{DatabaseName: "uniq_db_one", Sensitivity: models.SensitivityInternal}
	second := &models.DatabaseMetadata{DatabaseName: "uniq_db_two", Sensitivity: models.SensitivityInternal}
	require.NoError(t, databases.Create(ctx, first))
	require.NoError(t, databases.Create(ctx, second))

	// The same technical name may exist once per database.
	tableOne := &models.TableMetadata{
		DatabaseID:    first.ID,
		TechnicalName: "public.orders",
		DisplayName:   "Orders",
		TableType:     models.TableTypeFact,
	}
	tableTwo := &models.TableMetadata{
		DatabaseID:    second.ID,
		TechnicalName: "public.orders",
		DisplayName:   "Orders",
		TableType:     models.TableTypeFact,
	}
	require.NoError(t, tables.Create(ctx, tableOne))
	require.NoError(t, tables.Create(ctx, tableTwo))
	assert.NotEqual(t, tableOne.ID, tableTwo.ID)

	scoped, err := tables.GetByTechnicalName(ctx, first.ID, "public.orders")
	require.NoError(t, err)
	assert.Equal(t, tableOne.ID, scoped.ID)

	_, err = tables.GetByTechnicalName(ctx, first.ID, "public.missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestColumnMetadataRepository_RoundTrip(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)
	ctx := context.Background()
	databases := repositories.NewDatabaseMetadataRepository(db.DB.Pool)
	tables := repositories.NewTableMetadataRepository(db.DB.Pool)
	columns := repositories.NewColumnMetadataRepository(db.DB.Pool)

	database := &models.DatabaseMetadata{DatabaseName: "columns_db", Sensitivity: models.SensitivityInternal}
	require.NoError(t, databases.Create(ctx, database))
	table := &models.TableMetadata{
		DatabaseID:    database.ID,
		TechnicalName: "public.customers",
		TableType:     models.TableTypeDimension,
	}
	require.NoError(t, tables.Create(ctx, table))

	column := &models.ColumnMetadata{
		TableID:     table.ID,
		ColumnName:  "email",
		DataType:    "text",
		IsNullable:  true,
		Cardinality: models.CardinalityHigh,
	}
	require.NoError(t, columns.Create(ctx, column))

	column.IsPII = true
	column.Description = "Customer contact email."
	require.NoError(t, columns.Update(ctx, column))

	listed, err := columns.ListByTable(ctx, table.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].IsPII)
	assert.Equal(t, models.CardinalityHigh, listed[0].Cardinality)
}

func TestAuditLogRepository_ListByTarget(t *testing.T) {
	db := testhelpers.GetCatalogDB(t)
	ctx := context.Background()
	databases := repositories.NewDatabaseMetadataRepository(db.DB.Pool)
	audits := repositories.NewAuditLogRepository(db.DB.Pool)

	database := &models.DatabaseMetadata{DatabaseName: "audit_db", Sensitivity: models.SensitivityInternal}
	require.NoError(t, databases.Create(ctx, database))

	entry := &models.AuditLogEntry{
		Actor:      "curator@example.com",
		ActionType: models.AuditActionCuratorEdit,
		TargetType: "database",
		TargetID:   &database.ID,
		AfterState: `{"owner":"data-platform"}`,
	}
	require.NoError(t, audits.Create(ctx, entry))

	entries, err := audits.ListByTarget(ctx, "database", database.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "curator@example.com", entries[0].Actor)
}
