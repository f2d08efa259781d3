package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit action types written by the engine.
const (
	AuditActionIngestionRun = "ingestion.run"
	AuditActionCuratorEdit  = "catalog.edit"
)

// AuditLogEntry is an append-only record of a state-changing action.
// BeforeState/AfterState hold JSON snapshots of the affected record.
type AuditLogEntry struct {
	ID          uuid.UUID  `json:"id"`
	Actor       string     `json:"actor,omitempty"`
	ActionType  string     `json:"action_type"`
	TargetType  string     `json:"target_type"`
	TargetID    *uuid.UUID `json:"target_id,omitempty"`
	BeforeState string     `json:"before_state,omitempty"`
	AfterState  string     `json:"after_state,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
