// Package extractor reads raw schema facts from a target PostgreSQL database.
package extractor

import (
	"context"

	"github.com/cataloghq/catalog-engine/pkg/models"
)

// DatabaseInfo holds high-level facts about the target database.
type DatabaseInfo struct {
	DatabaseName string `json:"database_name"`
	Schema       string `json:"schema"`
	TableCount   int    `json:"table_count"`
	Version      string `json:"version,omitempty"`
}

// TableInfo holds structural facts about one base table.
type TableInfo struct {
	TableName       string `json:"table_name"`
	Schema          string `json:"schema"`
	TechnicalName   string `json:"technical_name"` // "<schema>.<table>"
	RowCount        int64  `json:"row_count"`      // planner estimate, not exact
	ExistingComment string `json:"existing_comment,omitempty"`
}

// ColumnInfo holds structural and profiling facts about one column.
type ColumnInfo struct {
	ColumnName    string             `json:"column_name"`
	DataType      string             `json:"data_type"`
	IsNullable    bool               `json:"is_nullable"`
	IsPrimaryKey  bool               `json:"is_primary_key"`
	IsForeignKey  bool               `json:"is_foreign_key"`
	DefaultValue  string             `json:"default_value,omitempty"`
	SampleValues  []string           `json:"sample_values"`
	Cardinality   models.Cardinality `json:"cardinality"`
	DistinctCount int64              `json:"distinct_count"`
}

// Relationships holds foreign key edges for one table, rendered as
// human-readable strings for downstream enrichment prompts.
type Relationships struct {
	ForeignKeys  []string `json:"foreign_keys"`  // "<column> -> <schema>.<table>.<column>"
	ReferencedBy []string `json:"referenced_by"` // "<schema>.<table>.<column>"
}

// Extractor defines read-only schema discovery against a target database.
// Use this interface for dependency injection to enable mocking in tests.
type Extractor interface {
	// DatabaseInfo returns the target database name and table count for schema.
	DatabaseInfo(ctx context.Context, schema string) (*DatabaseInfo, error)

	// Tables returns base tables in schema whose names match the SQL LIKE
	// pattern, ordered by name.
	Tables(ctx context.Context, schema, pattern string) ([]TableInfo, error)

	// Columns returns columns for one table in ordinal position order,
	// including sample values and a cardinality classification.
	Columns(ctx context.Context, schema, tableName string) ([]ColumnInfo, error)

	// Relationships returns foreign key edges from and to one table.
	Relationships(ctx context.Context, schema, tableName string) (*Relationships, error)

	// TestConnection verifies the target database is reachable.
	TestConnection(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close()
}

// ClassifyCardinality buckets a column by its distinct-to-total value counts.
func ClassifyCardinality(distinctCount, totalCount int64) models.Cardinality {
	switch {
	case totalCount == 0:
		return models.CardinalityEmpty
	case distinctCount == totalCount:
		return models.CardinalityUnique
	case distinctCount < 10:
		return models.CardinalityLow
	case distinctCount < 100:
		return models.CardinalityMedium
	default:
		return models.CardinalityHigh
	}
}
