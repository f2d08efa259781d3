package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/ingest"
)

// IngestionRequest is the request body for triggering an ingestion run.
type IngestionRequest struct {
	ConnString   string `json:"connection_string"`
	Schema       string `json:"schema,omitempty"`
	TablePattern string `json:"table_pattern,omitempty"`
	Enrich       *bool  `json:"enrich,omitempty"`
	Actor        string `json:"actor,omitempty"`
}

// TestConnectionResponse is returned by the pre-flight connection check.
type TestConnectionResponse struct {
	DatabaseName string `json:"database_name"`
	Version      string `json:"version,omitempty"`
	TableCount   int    `json:"table_count"`
}

// IngestionHandler exposes the ingestion trigger surface.
type IngestionHandler struct {
	pipeline      *ingest.Pipeline
	registry      *ingest.Registry
	newExtractor  ingest.ExtractorFactory
	defaultSchema string
	logger        *zap.Logger
}

// NewIngestionHandler creates a new IngestionHandler. defaultSchema fills in
// for requests that omit a schema; empty means "public".
func NewIngestionHandler(pipeline *ingest.Pipeline, registry *ingest.Registry, newExtractor ingest.ExtractorFactory, defaultSchema string, logger *zap.Logger) *IngestionHandler {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &IngestionHandler{
		pipeline:      pipeline,
		registry:      registry,
		newExtractor:  newExtractor,
		defaultSchema: defaultSchema,
		logger:        logger.Named("ingestion_handler"),
	}
}

// RegisterRoutes registers the ingestion handler's routes on the given mux.
func (h *IngestionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingestion/run", h.RunAsync)
	mux.HandleFunc("POST /api/ingestion/run-sync", h.RunSync)
	mux.HandleFunc("GET /api/ingestion/runs", h.ListRuns)
	mux.HandleFunc("GET /api/ingestion/runs/{id}", h.GetRun)
	mux.HandleFunc("POST /api/ingestion/test-connection", h.TestConnection)
}

func (h *IngestionHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*IngestionRequest, bool) {
	var req IngestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return nil, false
	}
	if err := ingest.ValidateConnString(req.ConnString); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_connection_string", err.Error())
		return nil, false
	}
	if req.Schema == "" {
		req.Schema = h.defaultSchema
	}
	return &req, true
}

func (req *IngestionRequest) options() ingest.Options {
	enrich := true
	if req.Enrich != nil {
		enrich = *req.Enrich
	}
	return ingest.Options{
		ConnString:   req.ConnString,
		Schema:       req.Schema,
		TablePattern: req.TablePattern,
		Enrich:       enrich,
		Actor:        req.Actor,
	}
}

// RunAsync handles POST /api/ingestion/run.
// Returns 202 with a run id immediately; the run executes in the background
// and its outcome is visible through the status endpoints.
func (h *IngestionHandler) RunAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	run := h.registry.Create(req.Actor)
	opts := req.options()

	go func() {
		// The run outlives the HTTP request.
		ctx := context.Background()

		if err := h.registry.MarkRunning(run.ID); err != nil {
			h.logger.Error("failed to mark run running", zap.String("run_id", run.ID.String()), zap.Error(err))
			return
		}

		stats, err := h.pipeline.Run(ctx, opts)
		if err != nil {
			h.logger.Error("background ingestion run failed",
				zap.String("run_id", run.ID.String()),
				zap.Error(err))
			if failErr := h.registry.Fail(run.ID, err.Error()); failErr != nil {
				h.logger.Error("failed to record run failure", zap.Error(failErr))
			}
			return
		}

		if err := h.registry.Complete(run.ID, stats); err != nil {
			h.logger.Error("failed to record run completion", zap.Error(err))
		}
	}()

	_ = WriteJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID.String(),
		"status": string(run.Status),
	})
}

// RunSync handles POST /api/ingestion/run-sync.
// Blocks until the run finishes and returns its stats.
func (h *IngestionHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	run := h.registry.Create(req.Actor)
	if err := h.registry.MarkRunning(run.ID); err != nil {
		h.logger.Error("failed to mark run running", zap.Error(err))
	}

	stats, err := h.pipeline.Run(r.Context(), req.options())
	if err != nil {
		_ = h.registry.Fail(run.ID, err.Error())
		status := http.StatusBadGateway
		if errors.Is(err, apperrors.ErrInvalidConnString) {
			status = http.StatusBadRequest
		}
		_ = ErrorResponse(w, status, "ingestion_failed", err.Error())
		return
	}
	_ = h.registry.Complete(run.ID, stats)

	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"run_id": run.ID.String(),
		"stats":  stats,
	})
}

// GetRun handles GET /api/ingestion/runs/{id}.
func (h *IngestionHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_run_id", "run id must be a UUID")
		return
	}

	run, err := h.registry.Get(id)
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "run_not_found", err.Error())
		return
	}
	_ = WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/ingestion/runs.
func (h *IngestionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{"runs": h.registry.List()})
}

// TestConnection handles POST /api/ingestion/test-connection.
// Validates the connection string, connects, and reports basic facts about
// the target without ingesting anything.
func (h *IngestionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	ext, err := h.newExtractor(r.Context(), req.ConnString)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadGateway, "target_unreachable", err.Error())
		return
	}
	defer ext.Close()

	if err := ext.TestConnection(r.Context()); err != nil {
		_ = ErrorResponse(w, http.StatusBadGateway, "target_unreachable", err.Error())
		return
	}

	info, err := ext.DatabaseInfo(r.Context(), req.Schema)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadGateway, "target_unreachable", err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, TestConnectionResponse{
		DatabaseName: info.DatabaseName,
		Version:      info.Version,
		TableCount:   info.TableCount,
	})
}
