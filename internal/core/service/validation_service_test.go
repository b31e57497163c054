package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sqlverdict/sqlverdict/internal/core/domain"
	"github.com/sqlverdict/sqlverdict/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAnalyzer implements port.QueryAnalyzer with a pluggable func.
type mockAnalyzer struct {
	analyzeFunc func(sql string) (*domain.QueryFacts, error)
}

func (m *mockAnalyzer) Analyze(sql string) (*domain.QueryFacts, error) {
	return m.analyzeFunc(sql)
}

// recordingAuditor captures audit entries for assertions.
type recordingAuditor struct {
	entries []port.AuditEntry
}

func (r *recordingAuditor) Record(_ context.Context, entry port.AuditEntry) {
	r.entries = append(r.entries, entry)
}

func (r *recordingAuditor) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSchema() domain.SchemaMapping {
	return domain.ExtractSchema("CREATE TABLE customers (customer_id INT, first_name VARCHAR(50), email VARCHAR(100));")
}

func TestValidate_Accepted(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return &domain.QueryFacts{
			Tables:  []string{"customers"},
			Columns: []string{"first_name", "email"},
		}, nil
	}}
	auditor := &recordingAuditor{}
	svc := NewValidationService(analyzer, auditor, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "SELECT first_name, email FROM customers;", testSchema())

	assert.True(t, verdict.Accepted)
	assert.Equal(t, "SELECT first_name, email FROM customers;", verdict.String())

	require.Len(t, auditor.entries, 1)
	assert.True(t, auditor.entries[0].Accepted)
}

func TestValidate_SafetyShortCircuitsAnalyzer(t *testing.T) {
	t.Parallel()
	called := false
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		called = true
		return &domain.QueryFacts{}, nil
	}}
	svc := NewValidationService(analyzer, &recordingAuditor{}, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "DROP TABLE customers", testSchema())

	assert.False(t, verdict.Accepted)
	assert.Equal(t, domain.CategorySafety, verdict.Category)
	assert.False(t, called, "analyzer must not run for unsafe queries")
}

func TestValidate_ParseFailure(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return nil, fmt.Errorf("%w: syntax error at or near \"FROM\"", domain.ErrParseFailed)
	}}
	svc := NewValidationService(analyzer, &recordingAuditor{}, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "SELECT FROM WHERE", testSchema())

	assert.False(t, verdict.Accepted)
	assert.Equal(t, domain.CategoryParse, verdict.Category)
	require.Len(t, verdict.Issues, 1)
	assert.Contains(t, verdict.Issues[0], "Failed to parse the query structure. Check syntax.")
	assert.Contains(t, verdict.Issues[0], "syntax error")
}

func TestValidate_UnexpectedError(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return nil, errors.New("out of memory")
	}}
	svc := NewValidationService(analyzer, &recordingAuditor{}, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "SELECT 1", testSchema())

	assert.False(t, verdict.Accepted)
	assert.Equal(t, domain.CategoryUnexpected, verdict.Category)
	require.Len(t, verdict.Issues, 1)
	assert.Contains(t, verdict.Issues[0], "An unexpected issue occurred during validation.")
}

func TestValidate_AnalyzerPanicBecomesUnexpected(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		panic("index out of range")
	}}
	svc := NewValidationService(analyzer, &recordingAuditor{}, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "SELECT 1", testSchema())

	assert.False(t, verdict.Accepted)
	assert.Equal(t, domain.CategoryUnexpected, verdict.Category)
	assert.Contains(t, verdict.Issues[0], "index out of range")
}

func TestValidate_SchemaRejection(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return &domain.QueryFacts{
			Tables:  []string{"customers"},
			Columns: []string{"discount_rate"},
		}, nil
	}}
	auditor := &recordingAuditor{}
	svc := NewValidationService(analyzer, auditor, testLogger(), nil, nil)

	verdict := svc.Validate(context.Background(), "SELECT discount_rate FROM customers", testSchema())

	assert.False(t, verdict.Accepted)
	assert.Equal(t, domain.CategorySchema, verdict.Category)

	require.Len(t, auditor.entries, 1)
	assert.False(t, auditor.entries[0].Accepted)
	assert.Equal(t, "schema", auditor.entries[0].Category)
}

func TestValidate_AuditCarriesToolName(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return &domain.QueryFacts{Tables: []string{"customers"}, Columns: []string{"email"}}, nil
	}}
	auditor := &recordingAuditor{}
	svc := NewValidationService(analyzer, auditor, testLogger(), nil, nil)

	ctx := WithToolName(context.Background(), "validate_query")
	svc.Validate(ctx, "SELECT email FROM customers", testSchema())

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "validate_query", auditor.entries[0].Tool)
}

func TestValidateAgainstDDL(t *testing.T) {
	t.Parallel()
	analyzer := &mockAnalyzer{analyzeFunc: func(string) (*domain.QueryFacts, error) {
		return &domain.QueryFacts{Tables: []string{"products"}, Columns: []string{"sku"}}, nil
	}}
	svc := NewValidationService(analyzer, &recordingAuditor{}, testLogger(), nil, nil)

	verdict := svc.ValidateAgainstDDL(context.Background(),
		"SELECT sku FROM products",
		"CREATE TABLE products (sku INT, name TEXT);")

	assert.True(t, verdict.Accepted)
}
