package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/rzpsarthak13/tablesync/internal/schema"
)

// catalogColumn is one row of a catalog query.
type catalogColumn struct {
	Name       string
	DataType   string
	MaxLength  sql.NullInt64
	PrimaryKey bool
	Identity   bool
}

const sqlServerColumnsQuery = `SELECT
    c.COLUMN_NAME,
    c.DATA_TYPE,
    c.CHARACTER_MAXIMUM_LENGTH,
    CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS PrimaryKey,
    COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') AS IsIdentity
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT ku.TABLE_CATALOG, ku.TABLE_SCHEMA, ku.TABLE_NAME, ku.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS AS tc
    INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE AS ku
        ON tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
        AND tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
) pk ON c.TABLE_CATALOG = pk.TABLE_CATALOG
    AND c.TABLE_SCHEMA = pk.TABLE_SCHEMA
    AND c.TABLE_NAME = pk.TABLE_NAME
    AND c.COLUMN_NAME = pk.COLUMN_NAME
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`

const postgresColumnsQuery = `SELECT
    c.column_name,
    c.data_type,
    c.character_maximum_length,
    CASE WHEN pk.column_name IS NOT NULL THEN 1 ELSE 0 END AS primary_key,
    CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 1 ELSE 0 END AS is_identity
FROM information_schema.columns c
LEFT JOIN (
    SELECT ku.table_schema, ku.table_name, ku.column_name
    FROM information_schema.table_constraints tc
    INNER JOIN information_schema.key_column_usage ku
        ON tc.constraint_type = 'PRIMARY KEY'
        AND tc.constraint_name = ku.constraint_name
        AND tc.table_schema = ku.table_schema
) pk ON c.table_schema = pk.table_schema
    AND c.table_name = pk.table_name
    AND c.column_name = pk.column_name
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const mysqlColumnsQuery = `SELECT
    COLUMN_NAME,
    DATA_TYPE,
    CHARACTER_MAXIMUM_LENGTH,
    CASE WHEN COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END,
    CASE WHEN EXTRA LIKE '%auto_increment%' THEN 1 ELSE 0 END
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

// loadColumns reads the column list of table from the backend catalog.
func (a *SQLAdapter) loadColumns(ctx context.Context, table string) ([]catalogColumn, error) {
	if a.dialect.name == "sqlite" {
		return a.loadSQLiteColumns(ctx, table)
	}

	schemaName, tableName := a.dialect.splitTable(table)
	var query string
	switch a.dialect.name {
	case "sqlserver":
		query = sqlServerColumnsQuery
	case "postgres":
		query = postgresColumnsQuery
	default:
		query = mysqlColumnsQuery
	}

	log.Printf("[SQL] Loading schema of %s.%s", schemaName, tableName)
	rows, err := a.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []catalogColumn
	for rows.Next() {
		var col catalogColumn
		var pk, identity sql.NullInt64
		if err := rows.Scan(&col.Name, &col.DataType, &col.MaxLength, &pk, &identity); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.PrimaryKey = pk.Int64 == 1
		col.Identity = identity.Int64 == 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return columns, nil
}

// loadSQLiteColumns uses PRAGMA table_info. A single INTEGER primary key is
// an alias of the rowid and therefore assigned by the backend.
func (a *SQLAdapter) loadSQLiteColumns(ctx context.Context, table string) ([]catalogColumn, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", a.dialect.quoteTable(table))
	log.Printf("[SQL] Loading schema: %s", query)
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []catalogColumn
	pkCount := 0
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		if pk > 0 {
			pkCount++
		}
		columns = append(columns, catalogColumn{Name: name, DataType: dataType, PrimaryKey: pk > 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	if pkCount == 1 {
		for i := range columns {
			if columns[i].PrimaryKey && strings.EqualFold(columns[i].DataType, "INTEGER") {
				columns[i].Identity = true
			}
		}
	}
	return columns, nil
}

// discoverSchema builds a TableSchema from the backend catalog. It returns
// nil when the table has no columns, which means it does not exist.
func (a *SQLAdapter) discoverSchema(ctx context.Context, table string) (*schema.TableSchema, error) {
	columns, err := a.loadColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}

	ts := schema.NewTableSchema(table)
	for _, col := range columns {
		field := schema.NewField(col.Name, schema.SQLTypeFromName(col.DataType).FieldType())
		if col.MaxLength.Valid && col.MaxLength.Int64 > 0 {
			field.Length = int(col.MaxLength.Int64)
		}
		field.IsPrimaryKey = col.PrimaryKey
		field.IsIdentity = col.Identity
		if _, err := ts.AddField(field); err != nil {
			return nil, fmt.Errorf("failed to add column %s of %s: %w", col.Name, table, err)
		}
	}
	log.Printf("[SQL] Discovered %d columns for %s (primary keys: %v)", len(columns), table, ts.PrimaryKeyNames())
	return ts, nil
}
