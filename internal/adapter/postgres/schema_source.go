package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlverdict/sqlverdict/internal/core/domain"
)

const queryTableColumns = `
	SELECT c.table_name, c.column_name
	FROM information_schema.columns c
	JOIN information_schema.tables t
	  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE t.table_type IN ('BASE TABLE', 'VIEW')
	  AND %s
	ORDER BY c.table_name, c.ordinal_position`

// SchemaSource introspects a live database into a SchemaMapping.
type SchemaSource struct {
	pool    *pgxpool.Pool
	schemas []string // empty means all non-system schemas
}

func NewSchemaSource(pool *pgxpool.Pool, schemas []string) *SchemaSource {
	return &SchemaSource{pool: pool, schemas: schemas}
}

// Snapshot returns the current table-to-columns mapping. Each table gets a
// leading "*" entry so unqualified star selects validate, matching the shape
// produced by DDL extraction.
func (s *SchemaSource) Snapshot(ctx context.Context) (domain.SchemaMapping, error) {
	filter, args := schemaFilter(s.schemas, "c.table_schema", 1)
	query := fmt.Sprintf(queryTableColumns, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns: %w", err)
	}
	defer rows.Close()

	mapping := make(domain.SchemaMapping)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		table = strings.ToLower(table)
		if _, ok := mapping[table]; !ok {
			mapping[table] = []string{"*"}
		}
		mapping[table] = append(mapping[table], strings.ToLower(column))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading column rows: %w", err)
	}

	return mapping, nil
}

// schemaFilter returns a SQL WHERE clause fragment and args for filtering by
// schema. paramOffset is the starting $N parameter index (1-based). When
// schemas is empty, it excludes system schemas.
func schemaFilter(schemas []string, column string, paramOffset int) (clause string, args []any) {
	if len(schemas) == 0 {
		return fmt.Sprintf("%s NOT IN ('pg_catalog', 'information_schema')", column), nil
	}
	placeholders := make([]string, len(schemas))
	args = make([]any, len(schemas))
	for i, s := range schemas {
		placeholders[i] = fmt.Sprintf("$%d", paramOffset+i)
		args[i] = s
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}
