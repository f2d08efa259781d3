// Package enricher derives semantic metadata from structural schema facts
// using a text-generation backend, with deterministic fallbacks.
package enricher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/llm"
	"github.com/cataloghq/catalog-engine/pkg/models"
	"github.com/cataloghq/catalog-engine/pkg/retry"
)

// Prompt bounds. Larger tables are summarized, never truncated mid-field.
const (
	maxPromptColumns   = 15
	maxPromptRelations = 5
	maxPromptSamples   = 5

	enrichmentTemperature = 0.3

	databaseMaxTokens = 300
	tableMaxTokens    = 500
	columnMaxTokens   = 300
)

const systemMessage = "You are a data catalog expert. Respond ONLY with valid JSON."

// DatabaseEnrichment holds semantic metadata for one database.
type DatabaseEnrichment struct {
	BusinessDomain string             `json:"business_domain"`
	Description    string             `json:"description"`
	Sensitivity    models.Sensitivity `json:"sensitivity"`
}

// TableEnrichment holds semantic metadata for one table.
type TableEnrichment struct {
	DisplayName     string             `json:"display_name"`
	Description     string             `json:"description"`
	TableType       models.TableType   `json:"table_type"`
	BusinessPurpose string             `json:"business_purpose"`
	Sensitivity     models.Sensitivity `json:"sensitivity"`
}

// ColumnEnrichment holds semantic metadata for one column.
// IsPII is a pointer so callers can distinguish an explicit classification
// from no classification at all.
type ColumnEnrichment struct {
	Description     string `json:"description"`
	IsPII           *bool  `json:"is_pii"`
	ValidValues     string `json:"valid_values"`
	DownstreamUsage string `json:"downstream_usage"`
}

// Enricher produces semantic metadata for extracted schema facts.
// Implementations never return errors: a disabled or failing backend yields
// nil, and callers decide what nil means. The reconciler treats nil as
// "no semantic information", so curator-entered values stay untouched and
// only newly created records pick up structural fallbacks.
type Enricher interface {
	EnrichDatabase(ctx context.Context, info *extractor.DatabaseInfo) *DatabaseEnrichment
	EnrichTable(ctx context.Context, info *extractor.TableInfo, columns []extractor.ColumnInfo, rels *extractor.Relationships) *TableEnrichment
	EnrichColumn(ctx context.Context, info *extractor.ColumnInfo, tableContext string) *ColumnEnrichment
}

type llmEnricher struct {
	client   llm.Client
	breaker  *llm.CircuitBreaker
	retryCfg *retry.Config
	timeout  time.Duration
	logger   *zap.Logger
}

// Ensure llmEnricher implements Enricher at compile time.
var _ Enricher = (*llmEnricher)(nil)

// New creates an enricher backed by client. If client is nil the enricher is
// disabled: every call returns nil without network I/O.
// timeout caps each backend call; values below 1s fall back to 30s.
func New(client llm.Client, timeout time.Duration, logger *zap.Logger) Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout < time.Second {
		timeout = 30 * time.Second
	}
	return &llmEnricher{
		client:   client,
		breaker:  llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
		retryCfg: retry.DefaultConfig(),
		timeout:  timeout,
		logger:   logger.Named("enricher"),
	}
}

// generate runs one guarded backend call and parses the JSON response into
// target. It returns an error only to its callers, which convert to nil.
func (e *llmEnricher) generate(ctx context.Context, prompt string, maxTokens int, target any) error {
	if e.client == nil {
		return fmt.Errorf("enrichment backend not configured")
	}

	if allowed, err := e.breaker.Allow(); !allowed {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Transient backend failures (rate limits, connection drops) retry with
	// backoff; permanent ones (auth, unknown model) surface immediately.
	var response string
	err := retry.DoIfRetryable(callCtx, e.retryCfg, func() error {
		resp, callErr := e.client.GenerateResponse(callCtx, prompt, systemMessage, enrichmentTemperature, maxTokens)
		if callErr != nil {
			return llm.ClassifyError(callErr)
		}
		response = resp
		return nil
	})
	if err != nil {
		e.breaker.RecordFailure()
		return err
	}
	e.breaker.RecordSuccess()

	return llm.ParseJSONResponse(response, target)
}

// EnrichDatabase produces database-level semantic metadata.
func (e *llmEnricher) EnrichDatabase(ctx context.Context, info *extractor.DatabaseInfo) *DatabaseEnrichment {
	prompt := fmt.Sprintf(`Analyze this database and provide semantic metadata:

Database Name: %s
Schema: %s
Table Count: %d

Respond with ONLY valid JSON (no markdown, no explanation):
{
    "business_domain": "Primary business domain (e.g., Sales, Finance, Operations)",
    "description": "2-3 sentence description of database purpose",
    "sensitivity": "internal|confidential|pii|public"
}`, info.DatabaseName, info.Schema, info.TableCount)

	var raw struct {
		BusinessDomain string `json:"business_domain"`
		Description    string `json:"description"`
		Sensitivity    string `json:"sensitivity"`
	}
	if err := e.generate(ctx, prompt, databaseMaxTokens, &raw); err != nil {
		e.logger.Warn("database enrichment failed",
			zap.String("database", info.DatabaseName),
			zap.Error(err))
		return nil
	}

	return &DatabaseEnrichment{
		BusinessDomain: raw.BusinessDomain,
		Description:    raw.Description,
		Sensitivity:    models.ParseSensitivity(raw.Sensitivity),
	}
}

// EnrichTable produces table-level semantic metadata. Column and relationship
// context is bounded before prompting.
func (e *llmEnricher) EnrichTable(ctx context.Context, info *extractor.TableInfo, columns []extractor.ColumnInfo, rels *extractor.Relationships) *TableEnrichment {
	columnSummary := make([]string, 0, maxPromptColumns)
	for _, col := range columns {
		if len(columnSummary) == maxPromptColumns {
			break
		}
		columnSummary = append(columnSummary, fmt.Sprintf("%s (%s)", col.ColumnName, col.DataType))
	}

	var foreignKeys, referencedBy []string
	if rels != nil {
		foreignKeys = capSlice(rels.ForeignKeys, maxPromptRelations)
		referencedBy = capSlice(rels.ReferencedBy, maxPromptRelations)
	}

	prompt := fmt.Sprintf(`Analyze this database table and provide semantic metadata:

Table: %s
Row Count: %d
Columns: %s
Foreign Keys: %s
Referenced By: %s

Respond with ONLY valid JSON (no markdown, no explanation):
{
    "display_name": "User-friendly table name",
    "description": "2-3 sentence description of table purpose",
    "table_type": "fact|dimension|reference|staging|raw|view",
    "business_purpose": "How this table supports business operations",
    "sensitivity": "internal|confidential|pii|public"
}`, info.TechnicalName, info.RowCount,
		strings.Join(columnSummary, ", "),
		strings.Join(foreignKeys, ", "),
		strings.Join(referencedBy, ", "))

	var raw struct {
		DisplayName     string `json:"display_name"`
		Description     string `json:"description"`
		TableType       string `json:"table_type"`
		BusinessPurpose string `json:"business_purpose"`
		Sensitivity     string `json:"sensitivity"`
	}
	if err := e.generate(ctx, prompt, tableMaxTokens, &raw); err != nil {
		e.logger.Warn("table enrichment failed",
			zap.String("table", info.TableName),
			zap.Error(err))
		return nil
	}

	return &TableEnrichment{
		DisplayName:     raw.DisplayName,
		Description:     raw.Description,
		TableType:       models.ParseTableType(raw.TableType),
		BusinessPurpose: raw.BusinessPurpose,
		Sensitivity:     models.ParseSensitivity(raw.Sensitivity),
	}
}

// EnrichColumn produces column-level semantic metadata.
func (e *llmEnricher) EnrichColumn(ctx context.Context, info *extractor.ColumnInfo, tableContext string) *ColumnEnrichment {
	samples := capSlice(info.SampleValues, maxPromptSamples)

	prompt := fmt.Sprintf(`Analyze this database column and provide semantic metadata:

Table Context: %s
Column: %s
Data Type: %s
Nullable: %t
Cardinality: %s
Sample Values: %s

Respond with ONLY valid JSON (no markdown, no explanation):
{
    "description": "Clear 1-2 sentence description of what this column represents",
    "is_pii": true|false,
    "valid_values": "Description of valid values or range (if applicable)",
    "downstream_usage": "How analytics/reports typically use this column"
}`, tableContext, info.ColumnName, info.DataType, info.IsNullable,
		info.Cardinality, strings.Join(samples, ", "))

	var raw struct {
		Description     string `json:"description"`
		IsPII           bool   `json:"is_pii"`
		ValidValues     string `json:"valid_values"`
		DownstreamUsage string `json:"downstream_usage"`
	}
	if err := e.generate(ctx, prompt, columnMaxTokens, &raw); err != nil {
		e.logger.Warn("column enrichment failed",
			zap.String("column", info.ColumnName),
			zap.Error(err))
		return nil
	}

	return &ColumnEnrichment{
		Description:     raw.Description,
		IsPII:           &raw.IsPII,
		ValidValues:     raw.ValidValues,
		DownstreamUsage: raw.DownstreamUsage,
	}
}

func capSlice(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
