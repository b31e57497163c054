package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerSchema() SchemaMapping {
	return ExtractSchema(`CREATE TABLE customers (
		customer_id INT PRIMARY KEY,
		first_name VARCHAR(50),
		email VARCHAR(100)
	);`)
}

func TestCheck_ValidColumns(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Columns: []string{"first_name", "email"},
	}, customerSchema())

	assert.True(t, ok)
	assert.Empty(t, issues)
}

func TestCheck_UndefinedColumn(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Columns: []string{"customer_id", "discount_rate"},
	}, customerSchema())

	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "Columns [discount_rate] are not defined for the referenced tables [customers]", issues[0])
}

func TestCheck_UndefinedTable(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"inventory"},
		Columns: []string{"*"},
	}, customerSchema())

	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "Query references undefined tables: [inventory]", issues[0])
}

func TestCheck_UndefinedTableSkipsColumnValidation(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	// Both a bad table and a bad column: only the table issue is reported.
	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"customers", "inventory"},
		Columns: []string{"discount_rate"},
	}, customerSchema())

	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "undefined tables")
}

func TestCheck_AliasQualifiedColumns(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, _ := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Aliases: map[string]string{"c": "customers"},
		Columns: []string{"c.first_name", "c.email"},
	}, customerSchema())

	assert.True(t, ok)
}

func TestCheck_StarNeverValidated(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, _ := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Columns: []string{"*"},
	}, customerSchema())

	assert.True(t, ok)
}

func TestCheck_AggregatesSkipped(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, _ := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Columns: []string{"count(*)", "SUM(nonexistent)", "customer_id"},
	}, customerSchema())

	// Aggregate arguments are not validated, only plain columns are.
	assert.True(t, ok)
}

func TestCheck_TableNamesCaseInsensitive(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, _ := c.Check(&QueryFacts{
		Tables:  []string{"Customers"},
		Columns: []string{"First_Name"},
	}, customerSchema())

	assert.True(t, ok)
}

func TestCheck_MultipleInvalidColumnsSorted(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Columns: []string{"zzz", "aaa"},
	}, customerSchema())

	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "Columns [aaa, zzz] are not defined for the referenced tables [customers]", issues[0])
}

func TestCheck_CTEUnqualifiedColumnsNotValidated(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	// With a CTE present, unqualified columns are assumed to come from it.
	ok, _ := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		CTEs:    []string{"recent"},
		Columns: []string{"anything_at_all", "customer_id"},
	}, customerSchema())

	assert.True(t, ok)
}

func TestCheck_CTEKnownPrefixStillValidated(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, issues := c.Check(&QueryFacts{
		Tables:  []string{"customers"},
		Aliases: map[string]string{"c": "customers"},
		CTEs:    []string{"recent"},
		Columns: []string{"c.discount_rate"},
	}, customerSchema())

	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "discount_rate")
}

func TestCheck_TableFreeQuery(t *testing.T) {
	t.Parallel()
	c := NewConformanceChecker()

	ok, _ := c.Check(&QueryFacts{Columns: []string{"1"}}, customerSchema())
	assert.True(t, ok)

	ok, _ = c.Check(&QueryFacts{Columns: []string{"count(*)"}}, customerSchema())
	assert.True(t, ok)

	ok, _ = c.Check(&QueryFacts{Columns: []string{"now()"}}, customerSchema())
	assert.True(t, ok)

	ok, issues := c.Check(&QueryFacts{Columns: []string{"first_name"}}, customerSchema())
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "Columns specified without a valid table or CTE reference.", issues[0])
}
