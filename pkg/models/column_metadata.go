package models

import (
	"time"

	"github.com/google/uuid"
)

// ColumnMetadata is the catalog record for one column of a catalogued table.
// ColumnName is unique within the owning table.
type ColumnMetadata struct {
	ID      uuid.UUID `json:"id"`
	TableID uuid.UUID `json:"table_id"`

	ColumnName  string `json:"column_name"`
	DataType    string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`

	IsPrimaryKey bool `json:"is_primary_key"`
	IsForeignKey bool `json:"is_foreign_key"`
	IsNullable   bool `json:"is_nullable"`
	IsPII        bool `json:"is_pii"`

	Cardinality  Cardinality `json:"cardinality,omitempty"`
	ValidValues  string      `json:"valid_values,omitempty"`
	ExampleValue string      `json:"example_value,omitempty"`

	TransformationLogic string `json:"transformation_logic,omitempty"`
	DownstreamUsage     string `json:"downstream_usage,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
