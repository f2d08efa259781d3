package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/enricher"
	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/llm"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

// In-memory repositories backing merge policy tests.

type memDatabaseRepo struct {
	byID map[uuid.UUID]*models.DatabaseMetadata
}

func newMemDatabaseRepo() *memDatabaseRepo {
	return &memDatabaseRepo{byID: map[uuid.UUID]*models.DatabaseMetadata{}}
}

func (m *memDatabaseRepo) Create(ctx context.Context, record *models.DatabaseMetadata) error {
	record.ID = uuid.New()
	record.CreatedAt = time.Now().UTC()
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

func (m *memDatabaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DatabaseMetadata, error) {
	if record, ok := m.byID[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, fmt.Errorf("database %s: %w", id, apperrors.ErrNotFound)
}

func (m *memDatabaseRepo) GetByName(ctx context.Context, databaseName string) (*models.DatabaseMetadata, error) {
	for _, record := range m.byID {
		if record.DatabaseName == databaseName {
			copied := *record
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("database %q: %w", databaseName, apperrors.ErrNotFound)
}

func (m *memDatabaseRepo) List(ctx context.Context) ([]models.DatabaseMetadata, error) {
	var records []models.DatabaseMetadata
	for _, record := range m.byID {
		records = append(records, *record)
	}
	return records, nil
}

func (m *memDatabaseRepo) Update(ctx context.Context, record *models.DatabaseMetadata) error {
	if _, ok := m.byID[record.ID]; !ok {
		return fmt.Errorf("database %s: %w", record.ID, apperrors.ErrNotFound)
	}
	now := time.Now().UTC()
	record.UpdatedAt = &now
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

type memTableRepo struct {
	byID map[uuid.UUID]*models.TableMetadata
}

func newMemTableRepo() *memTableRepo {
	return &memTableRepo{byID: map[uuid.UUID]*models.TableMetadata{}}
}

func (m *memTableRepo) Create(ctx context.Context, record *models.TableMetadata) error {
	record.ID = uuid.New()
	record.CreatedAt = time.Now().UTC()
	if record.Status == "" {
		record.Status = "active"
	}
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

func (m *memTableRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TableMetadata, error) {
	if record, ok := m.byID[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, fmt.Errorf("table %s: %w", id, apperrors.ErrNotFound)
}

func (m *memTableRepo) GetByTechnicalName(ctx context.Context, databaseID uuid.UUID, technicalName string) (*models.TableMetadata, error) {
	for _, record := range m.byID {
		if record.DatabaseID == databaseID && record.TechnicalName == technicalName {
			copied := *record
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("table %q: %w", technicalName, apperrors.ErrNotFound)
}

func (m *memTableRepo) ListByDatabase(ctx context.Context, databaseID uuid.UUID) ([]models.TableMetadata, error) {
	var records []models.TableMetadata
	for _, record := range m.byID {
		if record.DatabaseID == databaseID {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (m *memTableRepo) Update(ctx context.Context, record *models.TableMetadata) error {
	if _, ok := m.byID[record.ID]; !ok {
		return fmt.Errorf("table %s: %w", record.ID, apperrors.ErrNotFound)
	}
	now := time.Now().UTC()
	record.UpdatedAt = &now
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

type memColumnRepo struct {
	byID map[uuid.UUID]*models.ColumnMetadata
}

func newMemColumnRepo() *memColumnRepo {
	return &memColumnRepo{byID: map[uuid.UUID]*models.ColumnMetadata{}}
}

func (m *memColumnRepo) Create(ctx context.Context, record *models.ColumnMetadata) error {
	record.ID = uuid.New()
	record.CreatedAt = time.Now().UTC()
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

func (m *memColumnRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ColumnMetadata, error) {
	if record, ok := m.byID[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, fmt.Errorf("column %s: %w", id, apperrors.ErrNotFound)
}

func (m *memColumnRepo) GetByName(ctx context.Context, tableID uuid.UUID, columnName string) (*models.ColumnMetadata, error) {
	for _, record := range m.byID {
		if record.TableID == tableID && record.ColumnName == columnName {
			copied := *record
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("column %q: %w", columnName, apperrors.ErrNotFound)
}

func (m *memColumnRepo) ListByTable(ctx context.Context, tableID uuid.UUID) ([]models.ColumnMetadata, error) {
	var records []models.ColumnMetadata
	for _, record := range m.byID {
		if record.TableID == tableID {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (m *memColumnRepo) Update(ctx context.Context, record *models.ColumnMetadata) error {
	if _, ok := m.byID[record.ID]; !ok {
		return fmt.Errorf("column %s: %w", record.ID, apperrors.ErrNotFound)
	}
	now := time.Now().UTC()
	record.UpdatedAt = &now
	stored := *record
	m.byID[record.ID] = &stored
	return nil
}

type memAuditRepo struct {
	entries []models.AuditLogEntry
}

func (m *memAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAuditRepo) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	return m.entries, nil
}

func newMemReconciler() (*pgxReconciler, *memTableRepo, *memColumnRepo, *memAuditRepo) {
	tables := newMemTableRepo()
	columns := newMemColumnRepo()
	audits := &memAuditRepo{}
	rec := &pgxReconciler{
		databases: newMemDatabaseRepo(),
		tables:    tables,
		columns:   columns,
		audits:    audits,
	}
	return rec, tables, columns, audits
}

func TestReconciler_UpsertDatabaseDefaults(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	id, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	record, err := rec.databases.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", record.BusinessDomain)
	assert.Equal(t, "Database: salesdb", record.Description)
	assert.Equal(t, models.SensitivityInternal, record.Sensitivity)
}

func TestReconciler_UpsertDatabaseIsStable(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()
	info := &extractor.DatabaseInfo{DatabaseName: "salesdb"}

	first, err := rec.UpsertDatabase(ctx, info, nil)
	require.NoError(t, err)
	second, err := rec.UpsertDatabase(ctx, info, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReconciler_MergeDoesNotClobberCuratedText(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	require.NoError(t, err)

	info := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}

	tableID, err := rec.UpsertTable(ctx, databaseID, info, nil, &enricher.TableEnrichment{
		DisplayName: "Customer Orders",
		Description: "Order transactions.",
		TableType:   models.TableTypeFact,
		Sensitivity: models.SensitivityConfidential,
	}, nil)
	require.NoError(t, err)

	// Structural re-ingestion without enrichment keeps all semantic fields.
	rels := &extractor.Relationships{ForeignKeys: []string{"customer_id -> public.customers.id"}}
	sameID, err := rec.UpsertTable(ctx, databaseID, info, nil, nil, rels)
	require.NoError(t, err)
	assert.Equal(t, tableID, sameID)

	record, err := rec.tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "Customer Orders", record.DisplayName)
	assert.Equal(t, "Order transactions.", record.Description)
	assert.Equal(t, models.TableTypeFact, record.TableType)
	assert.Equal(t, models.SensitivityConfidential, record.DataSensitivity)
	// Structural fields always refresh.
	assert.Equal(t, "customer_id -> public.customers.id", record.ForeignKeys)
}

func TestReconciler_EmptyEnrichmentFieldsDoNotOverwrite(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	info := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}

	tableID, err := rec.UpsertTable(ctx, databaseID, info, nil, &enricher.TableEnrichment{
		DisplayName: "Customer Orders",
		Description: "Curated description.",
	}, nil)
	require.NoError(t, err)

	// Second enrichment supplies only a display name; description must survive.
	_, err = rec.UpsertTable(ctx, databaseID, info, nil, &enricher.TableEnrichment{
		DisplayName: "Orders (v2)",
	}, nil)
	require.NoError(t, err)

	record, err := rec.tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "Orders (v2)", record.DisplayName)
	assert.Equal(t, "Curated description.", record.Description)
}

func TestReconciler_TechnicalNameScopedPerDatabase(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	firstDB, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	require.NoError(t, err)
	secondDB, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "inventorydb"}, nil)
	require.NoError(t, err)

	info := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}

	firstTable, err := rec.UpsertTable(ctx, firstDB, info, nil, nil, nil)
	require.NoError(t, err)
	secondTable, err := rec.UpsertTable(ctx, secondDB, info, nil, nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, firstTable, secondTable)
}

func TestReconciler_TableCommentSeedsDescription(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	info := &extractor.TableInfo{
		TableName:       "orders",
		Schema:          "public",
		TechnicalName:   "public.orders",
		ExistingComment: "One row per placed order.",
	}

	tableID, err := rec.UpsertTable(ctx, databaseID, info, nil, nil, nil)
	require.NoError(t, err)

	record, err := rec.tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "One row per placed order.", record.Description)
}

func TestReconciler_TableStructuralOverviewRefreshed(t *testing.T) {
	rec, tables, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	info := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders", RowCount: 1200}
	columns := []extractor.ColumnInfo{
		{ColumnName: "id", DataType: "integer", IsPrimaryKey: true},
		{ColumnName: "status", DataType: "text"},
	}

	tableID, err := rec.UpsertTable(ctx, databaseID, info, columns, nil, nil)
	require.NoError(t, err)

	record, err := tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "id", record.PrimaryKey)
	assert.Equal(t, "~1200 rows", record.CardinalityOverview)

	// The source grows and gains a composite key; re-ingestion reflects both.
	info.RowCount = 5400
	columns = append(columns, extractor.ColumnInfo{ColumnName: "region", DataType: "text", IsPrimaryKey: true})
	_, err = rec.UpsertTable(ctx, databaseID, info, columns, nil, nil)
	require.NoError(t, err)

	record, err = tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "id, region", record.PrimaryKey)
	assert.Equal(t, "~5400 rows", record.CardinalityOverview)
}

func TestReconciler_ColumnStructuralRefresh(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	tableID, err := rec.UpsertTable(ctx, databaseID,
		&extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}, nil, nil, nil)
	require.NoError(t, err)

	isPII := true
	columnID, err := rec.UpsertColumn(ctx, tableID, &extractor.ColumnInfo{
		ColumnName:   "status",
		DataType:     "character varying",
		IsNullable:   true,
		Cardinality:  models.CardinalityLow,
		SampleValues: []string{"pending", "shipped"},
	}, &enricher.ColumnEnrichment{
		Description: "Order lifecycle status.",
		IsPII:       &isPII,
	})
	require.NoError(t, err)

	// Type migration on the source side flows through on re-ingestion while
	// the curated description and PII flag stay put.
	sameID, err := rec.UpsertColumn(ctx, tableID, &extractor.ColumnInfo{
		ColumnName:   "status",
		DataType:     "text",
		IsNullable:   false,
		IsForeignKey: true,
		Cardinality:  models.CardinalityMedium,
		SampleValues: []string{"pending", "shipped", "returned"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, columnID, sameID)

	record, err := rec.columns.GetByID(ctx, columnID)
	require.NoError(t, err)
	assert.Equal(t, "text", record.DataType)
	assert.False(t, record.IsNullable)
	assert.True(t, record.IsForeignKey)
	assert.Equal(t, models.CardinalityMedium, record.Cardinality)
	assert.Equal(t, "pending", record.ExampleValue)
	assert.Equal(t, "Order lifecycle status.", record.Description)
	assert.True(t, record.IsPII)
}

func TestReconciler_ColumnDefaultsWithoutEnrichment(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	tableID, _ := rec.UpsertTable(ctx, databaseID,
		&extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}, nil, nil, nil)

	columnID, err := rec.UpsertColumn(ctx, tableID, &extractor.ColumnInfo{
		ColumnName:   "status",
		DataType:     "text",
		SampleValues: []string{"pending", "shipped"},
	}, nil)
	require.NoError(t, err)

	record, err := rec.columns.GetByID(ctx, columnID)
	require.NoError(t, err)
	assert.Equal(t, "Column: status (text)", record.Description)
	assert.Equal(t, "General purpose column", record.DownstreamUsage)
	assert.False(t, record.IsPII)
	assert.Equal(t, "pending, shipped", record.ValidValues)
	assert.Equal(t, "pending", record.ExampleValue)
}

func TestReconciler_FailedEnrichmentLeavesCuratedEditsUntouched(t *testing.T) {
	rec, _, _, _ := newMemReconciler()
	ctx := context.Background()

	databaseID, _ := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	tableInfo := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders"}
	columnInfo := &extractor.ColumnInfo{ColumnName: "email", DataType: "text", SampleValues: []string{"a@example.com"}}

	isPII := true
	tableID, err := rec.UpsertTable(ctx, databaseID, tableInfo, nil, &enricher.TableEnrichment{
		DisplayName: "Customer Orders",
		Description: "Order transactions, curated by hand.",
		TableType:   models.TableTypeFact,
		Sensitivity: models.SensitivityConfidential,
	}, nil)
	require.NoError(t, err)
	columnID, err := rec.UpsertColumn(ctx, tableID, columnInfo, &enricher.ColumnEnrichment{
		Description: "Customer email address.",
		IsPII:       &isPII,
	})
	require.NoError(t, err)

	// Re-ingest with enrichment enabled but the backend rejecting every call.
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64, maxTokens int) (string, error) {
		return "", errors.New("401 unauthorized")
	}
	enr := enricher.New(mock, time.Second, nil)

	_, err = rec.UpsertTable(ctx, databaseID, tableInfo, nil, enr.EnrichTable(ctx, tableInfo, nil, nil), nil)
	require.NoError(t, err)
	_, err = rec.UpsertColumn(ctx, tableID, columnInfo, enr.EnrichColumn(ctx, columnInfo, tableInfo.TechnicalName))
	require.NoError(t, err)

	table, err := rec.tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "Customer Orders", table.DisplayName)
	assert.Equal(t, "Order transactions, curated by hand.", table.Description)
	assert.Equal(t, models.TableTypeFact, table.TableType)
	assert.Equal(t, models.SensitivityConfidential, table.DataSensitivity)

	column, err := rec.columns.GetByID(ctx, columnID)
	require.NoError(t, err)
	assert.Equal(t, "Customer email address.", column.Description)
	assert.True(t, column.IsPII)
}

func TestReconciler_RecordRun(t *testing.T) {
	rec, _, _, audits := newMemReconciler()

	stats := &models.IngestionStats{TablesProcessed: 2, Errors: []string{}}
	require.NoError(t, rec.RecordRun(context.Background(), "curator@example.com", stats))

	require.Len(t, audits.entries, 1)
	entry := audits.entries[0]
	assert.Equal(t, models.AuditActionIngestionRun, entry.ActionType)
	assert.Equal(t, "curator@example.com", entry.Actor)
	assert.Contains(t, entry.AfterState, `"tables_processed":2`)
}

func TestReconciler_StructuralRerunIsIdempotent(t *testing.T) {
	rec, tables, columns, _ := newMemReconciler()
	ctx := context.Background()

	table := &extractor.TableInfo{TableName: "orders", Schema: "public", TechnicalName: "public.orders", RowCount: 120}
	column := &extractor.ColumnInfo{
		ColumnName:   "status",
		DataType:     "text",
		SampleValues: []string{"pending", "shipped"},
		Cardinality:  models.CardinalityLow,
	}

	databaseID, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	require.NoError(t, err)
	tableID, err := rec.UpsertTable(ctx, databaseID, table, nil, nil, nil)
	require.NoError(t, err)
	columnID, err := rec.UpsertColumn(ctx, tableID, column, nil)
	require.NoError(t, err)

	firstTable, err := tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	firstColumn, err := columns.GetByID(ctx, columnID)
	require.NoError(t, err)

	// Second structural-only run touches nothing but timestamps.
	databaseID2, err := rec.UpsertDatabase(ctx, &extractor.DatabaseInfo{DatabaseName: "salesdb"}, nil)
	require.NoError(t, err)
	tableID2, err := rec.UpsertTable(ctx, databaseID2, table, nil, nil, nil)
	require.NoError(t, err)
	columnID2, err := rec.UpsertColumn(ctx, tableID2, column, nil)
	require.NoError(t, err)

	assert.Equal(t, tableID, tableID2)
	assert.Equal(t, columnID, columnID2)

	secondTable, err := tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	secondColumn, err := columns.GetByID(ctx, columnID)
	require.NoError(t, err)

	assert.Equal(t, firstTable.DisplayName, secondTable.DisplayName)
	assert.Equal(t, firstTable.Description, secondTable.Description)
	assert.Equal(t, firstTable.TableType, secondTable.TableType)
	assert.Equal(t, firstColumn.Description, secondColumn.Description)
	assert.Equal(t, firstColumn.ValidValues, secondColumn.ValidValues)
	assert.Equal(t, firstColumn.Cardinality, secondColumn.Cardinality)
}
