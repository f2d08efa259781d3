package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks the lifecycle of an ingestion run.
// Completed and failed are terminal.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestionStats aggregates the outcome of one pipeline run.
// TablesProcessed counts only tables that completed end-to-end; tables that
// failed appear in Errors instead.
type IngestionStats struct {
	DatabasesProcessed int      `json:"databases_processed"`
	TablesProcessed    int      `json:"tables_processed"`
	ColumnsProcessed   int      `json:"columns_processed"`
	DurationSeconds    float64  `json:"duration_seconds"`
	Errors             []string `json:"errors"`
}

// IngestionRun is the registry entry for one triggered run.
type IngestionRun struct {
	ID          uuid.UUID       `json:"run_id"`
	Status      RunStatus       `json:"status"`
	Actor       string          `json:"actor,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Stats       *IngestionStats `json:"stats,omitempty"`
	Error       string          `json:"error,omitempty"`
}
