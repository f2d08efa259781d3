package models

import (
	"time"

	"github.com/google/uuid"
)

// TableMetadata is the catalog record for one table of an ingested database.
// TechnicalName is the physical schema-qualified identifier from the source
// system (e.g. "public.orders"), unique within the owning database but not
// globally: two catalogued databases may each contain public.orders.
type TableMetadata struct {
	ID         uuid.UUID `json:"id"`
	DatabaseID uuid.UUID `json:"database_id"`

	TechnicalName string `json:"technical_name"`
	DisplayName   string `json:"display_name,omitempty"`
	Description   string `json:"description,omitempty"`

	TableType       TableType `json:"table_type"`
	BusinessPurpose string    `json:"business_purpose,omitempty"`
	Status          string    `json:"status"`

	RefreshFrequency string `json:"refresh_frequency,omitempty"`
	SLAInfo          string `json:"sla_info,omitempty"`

	PrimaryKey          string `json:"primary_key,omitempty"`
	ForeignKeys         string `json:"foreign_keys,omitempty"`
	CardinalityOverview string `json:"cardinality_overview,omitempty"`

	Owner           string      `json:"owner,omitempty"`
	DataSensitivity Sensitivity `json:"data_sensitivity"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
