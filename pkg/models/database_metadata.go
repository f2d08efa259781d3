package models

import (
	"time"

	"github.com/google/uuid"
)

// DatabaseMetadata is the catalog record for one ingested database.
// Deleting it cascades to its tables and their columns at the storage layer.
type DatabaseMetadata struct {
	ID               uuid.UUID   `json:"id"`
	DatabaseName     string      `json:"database_name"`
	BusinessDomain   string      `json:"business_domain,omitempty"`
	Description      string      `json:"description,omitempty"`
	Sensitivity      Sensitivity `json:"sensitivity"`
	Owner            string      `json:"owner,omitempty"`
	RefreshFrequency string      `json:"refresh_frequency,omitempty"`
	SourceSystems    string      `json:"source_systems,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
}
