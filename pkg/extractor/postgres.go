package extractor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cataloghq/catalog-engine/pkg/apperrors"
	"github.com/cataloghq/catalog-engine/pkg/models"
	enginesql "github.com/cataloghq/catalog-engine/pkg/sql"
)

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	quotedSchema := pgx.Identifier{schemaName}.Sanitize()
	return quotedSchema + "." + quotedTable
}

// screenInput rejects operator-supplied values that carry SQL injection
// patterns. Values still travel as bind parameters; this is an early reject
// for inputs that later get echoed into identifier positions.
func screenInput(name, value string) error {
	if result := enginesql.CheckParameterForInjection(name, value); result != nil {
		return fmt.Errorf("%w: %s (fingerprint %s)", apperrors.ErrUnsafeIdentifier, name, result.Fingerprint)
	}
	return nil
}

// PostgresExtractor discovers schema facts from a target PostgreSQL database.
type PostgresExtractor struct {
	pool        *pgxpool.Pool
	sampleLimit int
	logger      *zap.Logger
}

// Ensure PostgresExtractor implements Extractor at compile time.
var _ Extractor = (*PostgresExtractor)(nil)

// NewPostgresExtractor connects to the target database described by connString.
// sampleLimit caps how many distinct sample values are read per column; values
// below 1 fall back to 5. If logger is nil, a no-op logger is used.
func NewPostgresExtractor(ctx context.Context, connString string, sampleLimit int, logger *zap.Logger) (*PostgresExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sampleLimit < 1 {
		sampleLimit = 5
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to target database: %w", err)
	}

	return &PostgresExtractor{
		pool:        pool,
		sampleLimit: sampleLimit,
		logger:      logger.Named("extractor"),
	}, nil
}

// TestConnection verifies the target database is reachable.
func (e *PostgresExtractor) TestConnection(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTargetUnreachable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (e *PostgresExtractor) Close() {
	e.pool.Close()
}

// DatabaseInfo returns the target database name and the count of base tables
// in the given schema.
func (e *PostgresExtractor) DatabaseInfo(ctx context.Context, schema string) (*DatabaseInfo, error) {
	if err := screenInput("schema", schema); err != nil {
		return nil, err
	}

	var dbName string
	if err := e.pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return nil, fmt.Errorf("query database name: %w", err)
	}

	const countQuery = `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
	`
	var tableCount int
	if err := e.pool.QueryRow(ctx, countQuery, schema).Scan(&tableCount); err != nil {
		return nil, fmt.Errorf("query table count: %w", err)
	}

	var version string
	if err := e.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		e.logger.Warn("could not read server version", zap.Error(err))
	}

	return &DatabaseInfo{
		DatabaseName: dbName,
		Schema:       schema,
		TableCount:   tableCount,
		Version:      version,
	}, nil
}

// Tables returns base tables in schema matching the SQL LIKE pattern.
// Row count estimates and table comments degrade to zero values when their
// lookups fail; a missing estimate never fails discovery.
func (e *PostgresExtractor) Tables(ctx context.Context, schema, pattern string) ([]TableInfo, error) {
	if err := screenInput("schema", schema); err != nil {
		return nil, err
	}
	if err := screenInput("pattern", pattern); err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = "%"
	}

	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_name LIKE $2
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.pool.Query(ctx, query, schema, pattern)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{
			TableName:     name,
			Schema:        schema,
			TechnicalName: schema + "." + name,
		}

		const estimateQuery = `
			SELECT COALESCE(c.reltuples::bigint, 0)
			FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1 AND n.nspname = $2
		`
		if err := e.pool.QueryRow(ctx, estimateQuery, name, schema).Scan(&info.RowCount); err != nil {
			e.logger.Warn("could not get row count estimate",
				zap.String("table", name),
				zap.Error(err))
			info.RowCount = 0
		}
		if info.RowCount < 0 {
			// reltuples is -1 for never-analyzed tables
			info.RowCount = 0
		}

		const commentQuery = `
			SELECT obj_description(
				(quote_ident($1) || '.' || quote_ident($2))::regclass,
				'pg_class'
			)
		`
		var comment *string
		if err := e.pool.QueryRow(ctx, commentQuery, schema, name).Scan(&comment); err != nil {
			comment = nil
		}
		if comment != nil {
			info.ExistingComment = *comment
		}

		tables = append(tables, info)
	}

	return tables, nil
}

// Columns returns columns for one table in ordinal position order.
// Sample collection and cardinality profiling degrade independently: a failed
// sample query yields an empty sample list, a failed profile yields
// CardinalityUnknown, and neither fails the call.
func (e *PostgresExtractor) Columns(ctx context.Context, schema, tableName string) ([]ColumnInfo, error) {
	if err := screenInput("schema", schema); err != nil {
		return nil, err
	}
	if err := screenInput("table", tableName); err != nil {
		return nil, err
	}

	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.pool.Query(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col          ColumnInfo
			isNullable   string
			defaultValue *string
		)
		if err := rows.Scan(&col.ColumnName, &col.DataType, &isNullable, &defaultValue); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = isNullable == "YES"
		if defaultValue != nil {
			col.DefaultValue = *defaultValue
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	primaryKeys, foreignKeys := e.keyColumns(ctx, schema, tableName)

	qualified := qualifiedTableName(schema, tableName)
	for i := range columns {
		columns[i].IsPrimaryKey = primaryKeys[columns[i].ColumnName]
		columns[i].IsForeignKey = foreignKeys[columns[i].ColumnName]
		columns[i].SampleValues = e.sampleValues(ctx, qualified, tableName, columns[i].ColumnName)
		columns[i].Cardinality, columns[i].DistinctCount = e.profileCardinality(ctx, qualified, tableName, columns[i].ColumnName)
	}

	return columns, nil
}

// keyColumns returns the table's primary key and foreign key column sets.
// A failed lookup degrades to empty sets and logs.
func (e *PostgresExtractor) keyColumns(ctx context.Context, schema, tableName string) (map[string]bool, map[string]bool) {
	const query = `
		SELECT kcu.column_name, tc.constraint_type
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')
	`

	primaryKeys := map[string]bool{}
	foreignKeys := map[string]bool{}

	rows, err := e.pool.Query(ctx, query, schema, tableName)
	if err != nil {
		e.logger.Warn("could not read key columns",
			zap.String("table", tableName),
			zap.Error(err))
		return primaryKeys, foreignKeys
	}
	defer rows.Close()

	for rows.Next() {
		var column, constraintType string
		if err := rows.Scan(&column, &constraintType); err != nil {
			continue
		}
		if constraintType == "PRIMARY KEY" {
			primaryKeys[column] = true
		} else {
			foreignKeys[column] = true
		}
	}
	return primaryKeys, foreignKeys
}

// sampleValues reads up to sampleLimit distinct non-null values as text.
func (e *PostgresExtractor) sampleValues(ctx context.Context, qualified, tableName, columnName string) []string {
	quotedCol := pgx.Identifier{columnName}.Sanitize()
	query := fmt.Sprintf(`
		SELECT DISTINCT %s::text
		FROM %s
		WHERE %s IS NOT NULL
		LIMIT %d
	`, quotedCol, qualified, quotedCol, e.sampleLimit)

	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		e.logger.Warn("could not get sample values",
			zap.String("table", tableName),
			zap.String("column", columnName),
			zap.Error(err))
		return nil
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			continue
		}
		if value != "" {
			samples = append(samples, value)
		}
	}
	return samples
}

// profileCardinality counts distinct and total values for one column.
func (e *PostgresExtractor) profileCardinality(ctx context.Context, qualified, tableName, columnName string) (models.Cardinality, int64) {
	quotedCol := pgx.Identifier{columnName}.Sanitize()
	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT %s), COUNT(*)
		FROM %s
	`, quotedCol, qualified)

	var distinctCount, totalCount int64
	if err := e.pool.QueryRow(ctx, query).Scan(&distinctCount, &totalCount); err != nil {
		e.logger.Warn("could not profile cardinality",
			zap.String("table", tableName),
			zap.String("column", columnName),
			zap.Error(err))
		return models.CardinalityUnknown, 0
	}

	return ClassifyCardinality(distinctCount, totalCount), distinctCount
}

// Relationships returns foreign key edges from and to one table.
func (e *PostgresExtractor) Relationships(ctx context.Context, schema, tableName string) (*Relationships, error) {
	if err := screenInput("schema", schema); err != nil {
		return nil, err
	}
	if err := screenInput("table", tableName); err != nil {
		return nil, err
	}

	rels := &Relationships{
		ForeignKeys:  []string{},
		ReferencedBy: []string{},
	}

	const fkQuery = `
		SELECT
			kcu.column_name,
			ccu.table_schema AS foreign_table_schema,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
	`

	rows, err := e.pool.Query(ctx, fkQuery, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column, foreignSchema, foreignTable, foreignColumn string
		if err := rows.Scan(&column, &foreignSchema, &foreignTable, &foreignColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		rels.ForeignKeys = append(rels.ForeignKeys,
			fmt.Sprintf("%s -> %s.%s.%s", column, foreignSchema, foreignTable, foreignColumn))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	const refQuery = `
		SELECT
			tc.table_schema,
			tc.table_name,
			kcu.column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND ccu.table_schema = $1
			AND ccu.table_name = $2
	`

	refRows, err := e.pool.Query(ctx, refQuery, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("query referencing tables: %w", err)
	}
	defer refRows.Close()

	for refRows.Next() {
		var refSchema, refTable, refColumn string
		if err := refRows.Scan(&refSchema, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan referencing table: %w", err)
		}
		rels.ReferencedBy = append(rels.ReferencedBy,
			fmt.Sprintf("%s.%s.%s", refSchema, refTable, refColumn))
	}
	if err := refRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referencing tables: %w", err)
	}

	return rels, nil
}
