package ingest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

// Registry tracks ingestion runs in memory. Run state does not survive a
// restart; the durable record of each run is its audit trail entry.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.IngestionRun
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[uuid.UUID]*models.IngestionRun)}
}

// Create registers a new pending run and returns a snapshot of it.
func (r *Registry) Create(actor string) models.IngestionRun {
	run := &models.IngestionRun{
		ID:        uuid.New(),
		Status:    models.RunStatusPending,
		Actor:     actor,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()

	return *run
}

// MarkRunning transitions a run from pending to running.
func (r *Registry) MarkRunning(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, apperrors.ErrRunNotFound)
	}
	if run.Status != models.RunStatusPending {
		return fmt.Errorf("run %s is %s, not pending: %w", id, run.Status, apperrors.ErrConflict)
	}
	run.Status = models.RunStatusRunning
	return nil
}

// Complete transitions a run to completed and attaches its stats.
func (r *Registry) Complete(id uuid.UUID, stats *models.IngestionStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, apperrors.ErrRunNotFound)
	}
	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	run.Stats = stats
	return nil
}

// Fail transitions a run to failed with the given error message.
func (r *Registry) Fail(id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, apperrors.ErrRunNotFound)
	}
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	run.Error = message
	return nil
}

// Get returns a snapshot of one run.
func (r *Registry) Get(id uuid.UUID) (models.IngestionRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return models.IngestionRun{}, fmt.Errorf("run %s: %w", id, apperrors.ErrRunNotFound)
	}
	return *run, nil
}

// List returns snapshots of all runs, newest first.
func (r *Registry) List() []models.IngestionRun {
	r.mu.RLock()
	runs := make([]models.IngestionRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, *run)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}
