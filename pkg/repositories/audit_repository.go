package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cataloghq/catalog-engine/pkg/database"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

// AuditLogRepository provides append and read access to the audit trail.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]models.AuditLogEntry, error)
}

type auditLogRepository struct {
	db database.Querier
}

// NewAuditLogRepository creates a repository backed by db.
func NewAuditLogRepository(db database.Querier) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (
			actor, action_type, target_type, target_id, before_state, after_state
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.Actor,
		entry.ActionType,
		entry.TargetType,
		entry.TargetID,
		entry.BeforeState,
		entry.AfterState,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit log entry: %w", err)
	}
	return nil
}

func (r *auditLogRepository) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT id, actor, action_type, target_type, target_id, before_state, after_state, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&entry.ActionType,
			&entry.TargetType,
			&entry.TargetID,
			&entry.BeforeState,
			&entry.AfterState,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log entries: %w", err)
	}
	return entries, nil
}
