package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/models"
	"github.com/cataloghq/catalog-engine/pkg/repositories"
)

// CatalogHandler exposes read and curation endpoints over catalog records.
type CatalogHandler struct {
	databases repositories.DatabaseMetadataRepository
	tables    repositories.TableMetadataRepository
	columns   repositories.ColumnMetadataRepository
	audits    repositories.AuditLogRepository
	logger    *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(
	databases repositories.DatabaseMetadataRepository,
	tables repositories.TableMetadataRepository,
	columns repositories.ColumnMetadataRepository,
	audits repositories.AuditLogRepository,
	logger *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		databases: databases,
		tables:    tables,
		columns:   columns,
		audits:    audits,
		logger:    logger.Named("catalog_handler"),
	}
}

// RegisterRoutes registers the catalog handler's routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog/databases", h.ListDatabases)
	mux.HandleFunc("GET /api/catalog/databases/{id}", h.GetDatabase)
	mux.HandleFunc("GET /api/catalog/databases/{id}/tables", h.ListTables)
	mux.HandleFunc("GET /api/catalog/tables/{id}", h.GetTable)
	mux.HandleFunc("PATCH /api/catalog/tables/{id}", h.PatchTable)
	mux.HandleFunc("GET /api/catalog/tables/{id}/columns", h.ListColumns)
	mux.HandleFunc("PATCH /api/catalog/columns/{id}", h.PatchColumn)
	mux.HandleFunc("GET /api/catalog/tables/{id}/audit", h.TableAudit)
	mux.HandleFunc("GET /api/export/json", h.ExportJSON)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CatalogHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	h.logger.Error("catalog lookup failed", zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "catalog lookup failed")
}

// ListDatabases handles GET /api/catalog/databases.
func (h *CatalogHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	records, err := h.databases.List(r.Context())
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"databases": records})
}

// GetDatabase handles GET /api/catalog/databases/{id}.
func (h *CatalogHandler) GetDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.databases.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, record)
}

// ListTables handles GET /api/catalog/databases/{id}/tables.
func (h *CatalogHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.databases.GetByID(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}
	records, err := h.tables.ListByDatabase(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"tables": records})
}

// GetTable handles GET /api/catalog/tables/{id}.
func (h *CatalogHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.tables.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, record)
}

// ListColumns handles GET /api/catalog/tables/{id}/columns.
func (h *CatalogHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.tables.GetByID(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}
	records, err := h.columns.ListByTable(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"columns": records})
}

// TableAudit handles GET /api/catalog/tables/{id}/audit.
func (h *CatalogHandler) TableAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.audits.ListByTarget(r.Context(), "table", id, 50)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ExportColumn is one column in the catalog export payload.
type ExportColumn struct {
	ColumnName      string `json:"column_name"`
	DataType        string `json:"data_type"`
	IsNullable      bool   `json:"is_nullable"`
	IsPII           bool   `json:"is_pii"`
	Description     string `json:"description"`
	ValidValues     string `json:"valid_values,omitempty"`
	ExampleValue    string `json:"example_value,omitempty"`
	DownstreamUsage string `json:"downstream_usage,omitempty"`
}

// ExportTable is one table with its columns in the catalog export payload.
type ExportTable struct {
	ID            uuid.UUID      `json:"id"`
	DatabaseID    uuid.UUID      `json:"database_id"`
	TechnicalName string         `json:"technical_name"`
	DisplayName   string         `json:"display_name"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
	Columns       []ExportColumn `json:"columns"`
}

// ExportJSON handles GET /api/export/json.
// The optional table_ids query parameter narrows the export to a
// comma-separated list of table ids; unknown ids are skipped. Without it
// every table in the catalog is exported.
func (h *CatalogHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	var tables []models.TableMetadata
	if raw := r.URL.Query().Get("table_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				_ = ErrorResponse(w, http.StatusBadRequest, "invalid_table_ids", "table_ids must be comma-separated UUIDs")
				return
			}
			record, err := h.tables.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					continue
				}
				h.writeLookupError(w, err)
				return
			}
			tables = append(tables, *record)
		}
	} else {
		databases, err := h.databases.List(r.Context())
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		for _, db := range databases {
			records, err := h.tables.ListByDatabase(r.Context(), db.ID)
			if err != nil {
				h.writeLookupError(w, err)
				return
			}
			tables = append(tables, records...)
		}
	}

	payload := make([]ExportTable, 0, len(tables))
	for i := range tables {
		entry, err := h.exportTable(r.Context(), &tables[i])
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		payload = append(payload, *entry)
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"tables": payload})
}

func (h *CatalogHandler) exportTable(ctx context.Context, table *models.TableMetadata) (*ExportTable, error) {
	columns, err := h.columns.ListByTable(ctx, table.ID)
	if err != nil {
		return nil, err
	}

	entry := &ExportTable{
		ID:            table.ID,
		DatabaseID:    table.DatabaseID,
		TechnicalName: table.TechnicalName,
		DisplayName:   table.DisplayName,
		Description:   table.Description,
		CreatedAt:     table.CreatedAt,
		UpdatedAt:     table.UpdatedAt,
		Columns:       make([]ExportColumn, 0, len(columns)),
	}
	for _, col := range columns {
		entry.Columns = append(entry.Columns, ExportColumn{
			ColumnName:      col.ColumnName,
			DataType:        col.DataType,
			IsNullable:      col.IsNullable,
			IsPII:           col.IsPII,
			Description:     col.Description,
			ValidValues:     col.ValidValues,
			ExampleValue:    col.ExampleValue,
			DownstreamUsage: col.DownstreamUsage,
		})
	}
	return entry, nil
}

// PatchTableRequest carries curator edits to table metadata. Absent fields
// are left unchanged.
type PatchTableRequest struct {
	Actor            string  `json:"actor,omitempty"`
	DisplayName      *string `json:"display_name,omitempty"`
	Description      *string `json:"description,omitempty"`
	TableType        *string `json:"table_type,omitempty"`
	BusinessPurpose  *string `json:"business_purpose,omitempty"`
	Status           *string `json:"status,omitempty"`
	RefreshFrequency *string `json:"refresh_frequency,omitempty"`
	SLAInfo          *string `json:"sla_info,omitempty"`
	Owner            *string `json:"owner,omitempty"`
	DataSensitivity  *string `json:"data_sensitivity,omitempty"`
}

// strictTableType validates a curator-supplied table type.
// Unlike enrichment decoding, curator input is rejected rather than defaulted.
func strictTableType(value string) (models.TableType, error) {
	parsed := models.ParseTableType(value)
	if !strings.EqualFold(string(parsed), strings.TrimSpace(value)) {
		return "", fmt.Errorf("unknown table_type %q", value)
	}
	return parsed, nil
}

func strictSensitivity(value string) (models.Sensitivity, error) {
	parsed := models.ParseSensitivity(value)
	if !strings.EqualFold(string(parsed), strings.TrimSpace(value)) {
		return "", fmt.Errorf("unknown sensitivity %q", value)
	}
	return parsed, nil
}

// PatchTable handles PATCH /api/catalog/tables/{id}.
// Applies curator edits and records a before/after audit entry.
func (h *CatalogHandler) PatchTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req PatchTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	record, err := h.tables.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	before, _ := json.Marshal(record)

	if req.DisplayName != nil {
		record.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		record.Description = *req.Description
	}
	if req.TableType != nil {
		parsed, err := strictTableType(*req.TableType)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_table_type", err.Error())
			return
		}
		record.TableType = parsed
	}
	if req.BusinessPurpose != nil {
		record.BusinessPurpose = *req.BusinessPurpose
	}
	if req.Status != nil {
		record.Status = *req.Status
	}
	if req.RefreshFrequency != nil {
		record.RefreshFrequency = *req.RefreshFrequency
	}
	if req.SLAInfo != nil {
		record.SLAInfo = *req.SLAInfo
	}
	if req.Owner != nil {
		record.Owner = *req.Owner
	}
	if req.DataSensitivity != nil {
		parsed, err := strictSensitivity(*req.DataSensitivity)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_sensitivity", err.Error())
			return
		}
		record.DataSensitivity = parsed
	}

	if err := h.tables.Update(r.Context(), record); err != nil {
		h.writeLookupError(w, err)
		return
	}

	after, _ := json.Marshal(record)
	h.recordEdit(r, req.Actor, "table", record.ID, string(before), string(after))

	_ = WriteJSON(w, http.StatusOK, record)
}

// PatchColumnRequest carries curator edits to column metadata. Absent fields
// are left unchanged.
type PatchColumnRequest struct {
	Actor               string  `json:"actor,omitempty"`
	Description         *string `json:"description,omitempty"`
	IsPII               *bool   `json:"is_pii,omitempty"`
	ValidValues         *string `json:"valid_values,omitempty"`
	TransformationLogic *string `json:"transformation_logic,omitempty"`
	DownstreamUsage     *string `json:"downstream_usage,omitempty"`
}

// PatchColumn handles PATCH /api/catalog/columns/{id}.
func (h *CatalogHandler) PatchColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req PatchColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	record, err := h.columns.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	before, _ := json.Marshal(record)

	if req.Description != nil {
		record.Description = *req.Description
	}
	if req.IsPII != nil {
		record.IsPII = *req.IsPII
	}
	if req.ValidValues != nil {
		record.ValidValues = *req.ValidValues
	}
	if req.TransformationLogic != nil {
		record.TransformationLogic = *req.TransformationLogic
	}
	if req.DownstreamUsage != nil {
		record.DownstreamUsage = *req.DownstreamUsage
	}

	if err := h.columns.Update(r.Context(), record); err != nil {
		h.writeLookupError(w, err)
		return
	}

	after, _ := json.Marshal(record)
	h.recordEdit(r, req.Actor, "column", record.ID, string(before), string(after))

	_ = WriteJSON(w, http.StatusOK, record)
}

// recordEdit appends a curator edit to the audit trail. Audit failures are
// logged, not surfaced: the edit itself already succeeded.
func (h *CatalogHandler) recordEdit(r *http.Request, actor, targetType string, targetID uuid.UUID, before, after string) {
	err := h.audits.Create(r.Context(), &models.AuditLogEntry{
		Actor:       actor,
		ActionType:  models.AuditActionCuratorEdit,
		TargetType:  targetType,
		TargetID:    &targetID,
		BeforeState: before,
		AfterState:  after,
	})
	if err != nil {
		h.logger.Error("failed to write audit entry",
			zap.String("target_type", targetType),
			zap.String("target_id", targetID.String()),
			zap.Error(err))
	}
}
