package extractor

import "context"

// MockExtractor is a configurable mock for testing ingestion behavior.
// Set the function fields to control behavior in tests.
type MockExtractor struct {
	DatabaseInfoFunc   func(ctx context.Context, schema string) (*DatabaseInfo, error)
	TablesFunc         func(ctx context.Context, schema, pattern string) ([]TableInfo, error)
	ColumnsFunc        func(ctx context.Context, schema, tableName string) ([]ColumnInfo, error)
	RelationshipsFunc  func(ctx context.Context, schema, tableName string) (*Relationships, error)
	TestConnectionFunc func(ctx context.Context) error

	// Call tracking for verification
	DatabaseInfoCalls   int
	TablesCalls         int
	ColumnsCalls        int
	RelationshipsCalls  int
	TestConnectionCalls int
	CloseCalls          int
}

// Ensure MockExtractor implements Extractor at compile time.
var _ Extractor = (*MockExtractor)(nil)

// NewMockExtractor creates a new mock extractor.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// DatabaseInfo implements Extractor.
func (m *MockExtractor) DatabaseInfo(ctx context.Context, schema string) (*DatabaseInfo, error) {
	m.DatabaseInfoCalls++
	if m.DatabaseInfoFunc != nil {
		return m.DatabaseInfoFunc(ctx, schema)
	}
	return &DatabaseInfo{DatabaseName: "mockdb", Schema: schema}, nil
}

// Tables implements Extractor.
func (m *MockExtractor) Tables(ctx context.Context, schema, pattern string) ([]TableInfo, error) {
	m.TablesCalls++
	if m.TablesFunc != nil {
		return m.TablesFunc(ctx, schema, pattern)
	}
	return nil, nil
}

// Columns implements Extractor.
func (m *MockExtractor) Columns(ctx context.Context, schema, tableName string) ([]ColumnInfo, error) {
	m.ColumnsCalls++
	if m.ColumnsFunc != nil {
		return m.ColumnsFunc(ctx, schema, tableName)
	}
	return nil, nil
}

// Relationships implements Extractor.
func (m *MockExtractor) Relationships(ctx context.Context, schema, tableName string) (*Relationships, error) {
	m.RelationshipsCalls++
	if m.RelationshipsFunc != nil {
		return m.RelationshipsFunc(ctx, schema, tableName)
	}
	return &Relationships{ForeignKeys: []string{}, ReferencedBy: []string{}}, nil
}

// TestConnection implements Extractor.
func (m *MockExtractor) TestConnection(ctx context.Context) error {
	m.TestConnectionCalls++
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return nil
}

// Close implements Extractor.
func (m *MockExtractor) Close() {
	m.CloseCalls++
}
