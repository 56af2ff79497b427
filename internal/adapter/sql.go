package adapter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/matching"
	"github.com/rzpsarthak13/tablesync/internal/schema"
)

const defaultConnectionTimeout = 5 * time.Second

// SQLAdapter implements core.Adapter on a relational database through
// database/sql. Writes are validated against the table schema, which is
// taken from the schema repository or discovered from the catalog.
//
// Rows are written one statement at a time so that a failing row never
// aborts the rest of the batch.
type SQLAdapter struct {
	cfg     core.AdapterConfig
	db      *sql.DB
	dialect *dialect
	schemas *schema.Repository
	mapper  *schema.TypeMapper
	limiter *rate.Limiter

	mu     sync.Mutex
	cache  map[string]*schema.TableSchema
	closed bool
}

// NewSQLAdapter creates an unconfigured adapter. schemas may be nil, in which
// case discovered schemas are only cached in memory.
func NewSQLAdapter(schemas *schema.Repository) *SQLAdapter {
	return &SQLAdapter{
		schemas: schemas,
		mapper:  schema.NewTypeMapper(),
		cache:   make(map[string]*schema.TableSchema),
	}
}

// Configure opens the connection pool and tests it.
func (a *SQLAdapter) Configure(ctx context.Context, cfg core.AdapterConfig) *core.OperationResponse {
	resp := core.NewOperationResponse()

	d, err := lookupDialect(cfg.Dialect)
	if err != nil {
		resp.AddGeneral(core.SeverityError, "Invalid configuration type for SqlAdapter: %v", err)
		return resp
	}
	dsn, err := d.dataSourceName(cfg)
	if err != nil {
		resp.AddGeneral(core.SeverityError, "Invalid configuration type for SqlAdapter: %v", err)
		return resp
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		resp.AddGeneral(core.SeverityError, "SetConfiguration cannot connect to database. %v", err)
		return resp
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	a.cfg = cfg
	a.db = db
	a.dialect = d
	if cfg.WriteRate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.WriteRate), cfg.WriteRate)
	}

	if !a.TestConnection(ctx) {
		resp.AddGeneral(core.SeverityError, "SetConfiguration cannot connect to database.")
		return resp
	}

	log.Printf("[SQL] Connected to %s database %s", d.name, cfg.Name)
	resp.AddGeneral(core.SeverityInfo, "SetConfiguration completed successfully.")
	return resp
}

// DB returns the underlying connection pool.
func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

// databaseName is the schema repository container for this connection.
func (a *SQLAdapter) databaseName() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	if a.cfg.Database != "" {
		return a.cfg.Database
	}
	return "default"
}

// TableSchema returns the schema of table. The repository wins over the
// catalog; a discovered schema is registered in the repository. It returns
// nil and no error when the table does not exist.
func (a *SQLAdapter) TableSchema(ctx context.Context, table string) (*schema.TableSchema, error) {
	key := strings.ToLower(table)

	a.mu.Lock()
	cached, ok := a.cache[key]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	if a.schemas != nil {
		ts, err := a.schemas.GetTableSchemaByName(ctx, a.databaseName(), table)
		switch {
		case err == nil && len(ts.Fields()) > 0:
			a.remember(key, ts)
			return ts, nil
		case err != nil && !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}

	ts, err := a.discoverSchema(ctx, table)
	if err != nil || ts == nil {
		return nil, err
	}
	if a.schemas != nil {
		if err := a.schemas.RegisterTableSchema(ctx, a.databaseName(), ts); err != nil {
			log.Printf("[SQL] WARNING: Failed to register schema of %s: %v", table, err)
		}
	}
	a.remember(key, ts)
	return ts, nil
}

func (a *SQLAdapter) remember(key string, ts *schema.TableSchema) {
	a.mu.Lock()
	a.cache[key] = ts
	a.mu.Unlock()
}

func (a *SQLAdapter) checkOpen() error {
	if a.closed {
		return core.ErrClosed
	}
	if a.db == nil {
		return core.ErrNotConfigured
	}
	return nil
}

// Read selects rows from table. Filter is used as a WHERE clause; a leading
// "where " is stripped. All columns are returned as data fields.
func (a *SQLAdapter) Read(ctx context.Context, table string, opts core.ReadOptions) ([]*core.Item, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	where := strings.TrimSpace(opts.Filter)
	if len(where) >= 6 && strings.EqualFold(where[:6], "where ") {
		where = strings.TrimSpace(where[6:])
	}

	query := a.dialect.selectStatement(table, opts.Top, opts.Fields, where)
	rows, err := a.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	ts, _ := a.TableSchema(ctx, table)
	items := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, &core.Item{Data: a.fromDB(row, ts)})
	}
	return items, nil
}

// fromDB applies the schema's type conversions to a scanned row.
func (a *SQLAdapter) fromDB(row core.Fields, ts *schema.TableSchema) core.Fields {
	if ts == nil {
		return row
	}
	var out core.Fields
	row.Range(func(k string, v interface{}) bool {
		if f, ok := ts.Field(k); ok {
			if converted, err := a.mapper.ConvertFromDBValue(v, f.Type); err == nil {
				v = converted
			}
		}
		out.Set(k, v)
		return true
	})
	return out
}

// toDB renames fields to their schema spelling and converts the values.
func (a *SQLAdapter) toDB(fields core.Fields, ts *schema.TableSchema) (core.Fields, error) {
	var out core.Fields
	var convErr error
	fields.Range(func(k string, v interface{}) bool {
		f, ok := ts.Field(k)
		if !ok {
			out.Set(k, v)
			return true
		}
		converted, err := a.mapper.ConvertToDBValue(v, f.Type)
		if err != nil {
			convErr = fmt.Errorf("field %s: %w", f.Name, err)
			return false
		}
		out.Set(f.Name, converted)
		return true
	})
	return out, convErr
}

func (a *SQLAdapter) query(ctx context.Context, query string, args ...interface{}) ([]core.Fields, error) {
	log.Printf("[SQL] Executing query: %s with args: %v", query, args)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// scanRows materializes rows as field maps. Byte slices of text columns are
// turned into strings.
func scanRows(rows *sql.Rows) ([]core.Fields, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	var out []core.Fields
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var row core.Fields
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok && !isBinaryColumn(types[i].DatabaseTypeName()) {
				v = string(b)
			}
			row.Set(col, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func isBinaryColumn(typeName string) bool {
	t := strings.ToUpper(typeName)
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || t == "BYTEA" || t == "IMAGE" || t == "UNIQUEIDENTIFIER"
}

// waitWrite blocks until the write limiter admits one statement.
func (a *SQLAdapter) waitWrite(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

// isConnectionError reports whether err means the backend is unreachable
// rather than that one statement was rejected.
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func missingSchema(resp *core.OperationResponse, table string) {
	resp.AddGeneral(core.SeverityError, "Table schema %s doesn't exist. Cannot validate inputs.", table)
}

// Insert writes each item and pairs it with the full row the backend returned.
func (a *SQLAdapter) Insert(ctx context.Context, table string, items []*core.Item) (*core.InsertResult, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewInsertResult()
	ts, err := a.TableSchema(ctx, table)
	if err != nil {
		result.Response.AddGeneral(core.SeverityError, "Unexpected error inserting data for table %s. Exception message: %v", table, err)
		return result, nil
	}
	if ts == nil {
		missingSchema(result.Response, table)
		return result, nil
	}

	for _, item := range items {
		fields, itemErr := ts.InsertFields(item)
		if itemErr != nil {
			result.Response.ItemErrors = append(result.Response.ItemErrors, *itemErr)
			continue
		}
		fields, err := a.toDB(fields, ts)
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("INSERT failed %v", err), item)
			continue
		}
		if err := a.waitWrite(ctx); err != nil {
			result.Response.AddGeneral(core.SeverityError, "Unexpected error inserting data for table %s. Exception message: %v", table, err)
			return result, nil
		}

		rows, err := a.insertRow(ctx, ts, table, fields)
		if err != nil {
			if isConnectionError(err) {
				result.Response.AddGeneral(core.SeverityError, "Unexpected error inserting data for table %s. Exception message: %v", table, err)
				return result, nil
			}
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("INSERT failed %v", err), item)
			continue
		}

		switch len(rows) {
		case 0:
			result.Response.AddItemError(core.SeverityError, "Inserting item failed. No Output Keys received.", item)
		case 1:
			output := &core.Item{Data: a.fromDB(rows[0], ts)}
			result.Inserted = append(result.Inserted, core.InsertedItem{Input: item, Output: output})
			result.Response.AddSuccess(output)
		default:
			result.Response.AddItemError(core.SeverityError, "Inserting item failed. Multiple Output Keys received.", item)
		}
	}

	log.Printf("[SQL] Inserted %d of %d rows into %s", len(result.Inserted), len(items), table)
	return result, nil
}

// insertRow runs one INSERT and returns the rows the backend reports.
func (a *SQLAdapter) insertRow(ctx context.Context, ts *schema.TableSchema, table string, fields core.Fields) ([]core.Fields, error) {
	stmtArgs := &args{d: a.dialect}
	stmt := a.dialect.insertStatement(table, fields, stmtArgs)
	if a.dialect.output != reselect {
		return a.query(ctx, stmt, stmtArgs.values...)
	}

	log.Printf("[SQL] Executing query: %s with args: %v", stmt, stmtArgs.values)
	res, err := a.db.ExecContext(ctx, stmt, stmtArgs.values...)
	if err != nil {
		return nil, err
	}

	// Select the written row back by its generated id or its primary keys.
	var keys core.Fields
	if identity := ts.IdentityFields(); len(identity) == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		keys.Set(identity[0].Name, id)
	} else {
		for _, pk := range ts.PrimaryKeyNames() {
			v, ok := fields.Get(pk)
			if !ok {
				return nil, nil
			}
			keys.Set(pk, v)
		}
	}
	if keys.Len() == 0 {
		return nil, nil
	}
	selArgs := &args{d: a.dialect}
	return a.query(ctx, a.dialect.selectStatement(table, 0, nil, a.dialect.whereClause(keys, selArgs)), selArgs.values...)
}

// Update writes the non-key fields of each item, addressed by its primary
// keys, and copies the key values the backend returns onto the item.
// More than one row answering for a single item means the key configuration
// is wrong and aborts the call with core.ErrConfiguration.
func (a *SQLAdapter) Update(ctx context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewItemsResult()
	ts, err := a.TableSchema(ctx, table)
	if err != nil {
		result.Response.AddGeneral(core.SeverityError, "Unexpected error updating data for table %s. Exception message: %v", table, err)
		return result, nil
	}
	if ts == nil {
		missingSchema(result.Response, table)
		return result, nil
	}

	for _, item := range items {
		hasKeys, err := ts.ItemHasPrimaryKeys(item)
		if err != nil {
			return nil, err
		}
		if !hasKeys {
			result.Response.AddItemError(core.SeverityError, "Item doesn't have primary keys according to schema", item)
			continue
		}

		fields, itemErr := ts.MatchingSchemaFields(item)
		if itemErr != nil {
			result.Response.ItemErrors = append(result.Response.ItemErrors, *itemErr)
			continue
		}

		pkNames := core.NewKeySet(ts.PrimaryKeyNames()...)
		var set core.Fields
		fields.Range(func(k string, v interface{}) bool {
			if !pkNames.Contains(k) {
				set.Set(k, v)
			}
			return true
		})
		if set.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Updating item failed. No fields to update.", item)
			continue
		}

		set, err = a.toDB(set, ts)
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("UPDATE failed %v", err), item)
			continue
		}
		keys, err := a.toDB(ts.PrimaryKeyValues(item), ts)
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("UPDATE failed %v", err), item)
			continue
		}
		if err := a.waitWrite(ctx); err != nil {
			result.Response.AddGeneral(core.SeverityError, "Unexpected error updating data for table %s. Exception message: %v", table, err)
			return result, nil
		}

		rows, err := a.updateRow(ctx, table, set, keys)
		if err != nil {
			if isConnectionError(err) {
				result.Response.AddGeneral(core.SeverityError, "Unexpected error updating data for table %s. Exception message: %v", table, err)
				return result, nil
			}
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("UPDATE failed %v", err), item)
			continue
		}

		switch len(rows) {
		case 0:
			result.Response.AddItemError(core.SeverityError, "Updating item failed. No Output Keys received.", item)
		case 1:
			outputKeys := a.fromDB(rows[0], ts)
			outputKeys.Range(func(k string, v interface{}) bool {
				item.Data.Delete(k)
				item.Identifiers.Set(k, v)
				return true
			})
			result.Items = append(result.Items, item)
			result.Response.AddSuccess(item)
		default:
			return nil, fmt.Errorf("%w: multiple rows updated in %s for keys %s. Identity field configuration has been invalid",
				core.ErrConfiguration, table, keys)
		}
	}

	log.Printf("[SQL] Updated %d of %d rows in %s", len(result.Items), len(items), table)
	return result, nil
}

// updateRow runs one UPDATE and returns the key columns of the touched rows.
func (a *SQLAdapter) updateRow(ctx context.Context, table string, set, keys core.Fields) ([]core.Fields, error) {
	stmtArgs := &args{d: a.dialect}
	stmt := a.dialect.updateStatement(table, set, keys, stmtArgs)
	if a.dialect.output != reselect {
		return a.query(ctx, stmt, stmtArgs.values...)
	}

	log.Printf("[SQL] Executing query: %s with args: %v", stmt, stmtArgs.values)
	if _, err := a.db.ExecContext(ctx, stmt, stmtArgs.values...); err != nil {
		return nil, err
	}
	selArgs := &args{d: a.dialect}
	return a.query(ctx, a.dialect.selectStatement(table, 0, keys.Keys(), a.dialect.whereClause(keys, selArgs)), selArgs.values...)
}

// Delete removes each item addressed by its identifier fields.
func (a *SQLAdapter) Delete(ctx context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewItemsResult()
	for _, item := range items {
		keys := item.Identifiers
		if keys.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Deleting item failed. No primary keys found.", item)
			continue
		}
		if err := a.waitWrite(ctx); err != nil {
			result.Response.AddGeneral(core.SeverityError, "Unexpected error deleting data for table %s. Exception message: %v", table, err)
			return result, nil
		}

		stmtArgs := &args{d: a.dialect}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", a.dialect.quoteTable(table), a.dialect.whereClause(keys, stmtArgs))
		log.Printf("[SQL] Executing query: %s with args: %v", stmt, stmtArgs.values)
		res, err := a.db.ExecContext(ctx, stmt, stmtArgs.values...)
		if err != nil {
			result.Response.AddGeneral(core.SeverityError, "Unexpected error deleting data for table %s. Exception message: %v", table, err)
			return result, nil
		}
		affected, err := res.RowsAffected()
		if err != nil {
			result.Response.AddGeneral(core.SeverityError, "Unexpected error deleting data for table %s. Exception message: %v", table, err)
			return result, nil
		}
		if affected == 0 {
			result.Response.AddItemError(core.SeverityError, "Deleting item failed. No rows affected.", item)
			continue
		}
		result.Items = append(result.Items, item)
		result.Response.AddSuccess(item)
	}

	log.Printf("[SQL] Deleted %d of %d rows from %s", len(result.Items), len(items), table)
	return result, nil
}

func (a *SQLAdapter) Upsert(ctx context.Context, table string, items []*core.Item, identifierKeys []string) (*core.ItemsResult, error) {
	if len(identifierKeys) == 0 {
		identifierKeys = a.cfg.Identifiers()
	}
	return Upsert(ctx, a, table, items, identifierKeys)
}

// GetItemsByIdentifiers selects the rows addressed by the identifier fields
// of items in one statement and pairs each input with its row. Inputs
// without a matching row are returned as unmatched.
func (a *SQLAdapter) GetItemsByIdentifiers(ctx context.Context, table string, items []*core.Item, fields []string) (*matching.RowMap, *core.OperationResponse, error) {
	resp := core.NewOperationResponse()
	if err := a.checkOpen(); err != nil {
		return nil, resp, err
	}
	if len(items) == 0 {
		resp.AddGeneral(core.SeverityError, "No input identifiers provided.")
		return nil, resp, nil
	}

	ts, err := a.TableSchema(ctx, table)
	if err != nil {
		return nil, resp, err
	}

	selArgs := &args{d: a.dialect}
	var groups []string
	var inputs []*core.Item
	seen := make(map[string]bool)
	var keyNames []string
	for _, item := range items {
		if item.Identifiers.Len() == 0 {
			resp.AddItemError(core.SeverityError, "GetItemsByIdentifiers got item with no values", item)
			continue
		}
		keys := item.Identifiers
		if ts != nil {
			if keys, err = a.toDB(keys, ts); err != nil {
				resp.AddItemError(core.SeverityError, err.Error(), item)
				continue
			}
		}
		for _, k := range keys.Keys() {
			if !seen[strings.ToLower(k)] {
				seen[strings.ToLower(k)] = true
				keyNames = append(keyNames, k)
			}
		}
		groups = append(groups, "("+a.dialect.whereClause(keys, selArgs)+")")
		inputs = append(inputs, item)
	}
	if len(inputs) == 0 {
		return &matching.RowMap{}, resp, nil
	}

	rows, err := a.query(ctx, a.dialect.selectStatement(table, 0, fields, strings.Join(groups, " OR ")), selArgs.values...)
	if err != nil {
		resp.AddGeneral(core.SeverityError, "Unexpected error reading data for table %s. Exception message: %v", table, err)
		return nil, resp, nil
	}
	found := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		found = append(found, &core.Item{Data: a.fromDB(row, ts)})
	}

	rowMap, err := matching.FindMatchingRowMap(inputs, found, keyNames)
	if err != nil {
		return nil, resp, err
	}
	return rowMap, resp, nil
}

// TestConnection pings the database and runs SELECT 1.
func (a *SQLAdapter) TestConnection(ctx context.Context) bool {
	if a.checkOpen() != nil {
		return false
	}
	timeout := a.cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = defaultConnectionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		log.Printf("[SQL] ERROR: TestConnection could not connect to database. %v", err)
		return false
	}
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		log.Printf("[SQL] ERROR: TestConnection could not connect to database. %v", err)
		return false
	}
	return one == 1
}

func (a *SQLAdapter) Type() string {
	return "sql"
}

func (a *SQLAdapter) Close() error {
	if a.closed || a.db == nil {
		a.closed = true
		return nil
	}
	a.closed = true
	log.Printf("[SQL] Closing connection %s", a.cfg.Name)
	return a.db.Close()
}

// SQLAdapterFactory creates relational adapters.
type SQLAdapterFactory struct{}

func (f *SQLAdapterFactory) Type() string {
	return "sql"
}

func (f *SQLAdapterFactory) Validate(cfg core.AdapterConfig) error {
	if cfg.Type != "sql" {
		return fmt.Errorf("invalid type for SQL factory: %s", cfg.Type)
	}
	d, err := lookupDialect(cfg.Dialect)
	if err != nil {
		return err
	}
	if cfg.DSN == "" {
		if d.name == "sqlite" && cfg.Database == "" {
			return fmt.Errorf("dsn or database is required for sqlite")
		}
		if d.name != "sqlite" && cfg.Host == "" {
			return fmt.Errorf("dsn or host is required")
		}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got: %d", cfg.Port)
	}
	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must be non-negative")
	}
	if cfg.WriteRate < 0 {
		return fmt.Errorf("write_rate must be non-negative, got: %d", cfg.WriteRate)
	}
	return nil
}

func (f *SQLAdapterFactory) New(deps Dependencies) core.Adapter {
	return NewSQLAdapter(deps.Schemas)
}

func init() {
	RegisterFactory(&SQLAdapterFactory{})
}
