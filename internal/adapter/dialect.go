package adapter

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/rzpsarthak13/tablesync/internal/core"
)

// outputStyle is how a dialect returns the rows touched by a DML statement.
type outputStyle int

const (
	// outputClause is SQL Server's "OUTPUT INSERTED.*" between the target and the values.
	outputClause outputStyle = iota
	// returningClause is "RETURNING ..." at the end of the statement.
	returningClause
	// reselect means the backend returns nothing and rows are selected again.
	reselect
)

// dialect holds the SQL spelling differences between backends.
type dialect struct {
	name          string
	driver        string
	defaultSchema string
	output        outputStyle
	placeholder   func(n int) string
	quote         func(ident string) string
}

var dialects = map[string]*dialect{
	"sqlserver": {
		name:          "sqlserver",
		driver:        "sqlserver",
		defaultSchema: "dbo",
		output:        outputClause,
		placeholder:   func(n int) string { return "@p" + strconv.Itoa(n) },
		quote:         func(s string) string { return "[" + strings.ReplaceAll(s, "]", "]]") + "]" },
	},
	"postgres": {
		name:          "postgres",
		driver:        "pgx",
		defaultSchema: "public",
		output:        returningClause,
		placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		quote:         doubleQuote,
	},
	"sqlite": {
		name:        "sqlite",
		driver:      "sqlite3",
		output:      returningClause,
		placeholder: func(int) string { return "?" },
		quote:       doubleQuote,
	},
	"mysql": {
		name:        "mysql",
		driver:      "mysql",
		output:      reselect,
		placeholder: func(int) string { return "?" },
		quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	},
}

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func lookupDialect(name string) (*dialect, error) {
	if name == "" {
		name = "sqlserver"
	}
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL dialect: %s", name)
	}
	return d, nil
}

// quoteTable quotes every dot-separated part of a table name.
func (d *dialect) quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

// splitTable returns the schema and table parts of a possibly qualified name.
func (d *dialect) splitTable(table string) (string, string) {
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		return table[:idx], table[idx+1:]
	}
	return d.defaultSchema, table
}

// args collects positional statement arguments.
type args struct {
	d      *dialect
	values []interface{}
}

func (a *args) add(v interface{}) string {
	a.values = append(a.values, v)
	return a.d.placeholder(len(a.values))
}

// selectStatement builds a SELECT with an optional row limit and WHERE clause.
func (d *dialect) selectStatement(table string, top int, fields []string, where string) string {
	cols := "*"
	if len(fields) > 0 {
		quoted := make([]string, len(fields))
		for i, f := range fields {
			quoted[i] = d.quote(f)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if top > 0 && d.name == "sqlserver" {
		fmt.Fprintf(&sb, "TOP %d ", top)
	}
	fmt.Fprintf(&sb, "%s FROM %s", cols, d.quoteTable(table))
	if where != "" {
		fmt.Fprintf(&sb, " WHERE %s", where)
	}
	if top > 0 && d.name != "sqlserver" {
		fmt.Fprintf(&sb, " LIMIT %d", top)
	}
	return sb.String()
}

// insertStatement builds an INSERT that returns the full written row where
// the dialect can.
func (d *dialect) insertStatement(table string, fields core.Fields, a *args) string {
	var cols, vals []string
	fields.Range(func(k string, v interface{}) bool {
		cols = append(cols, d.quote(k))
		vals = append(vals, a.add(v))
		return true
	})

	target := d.quoteTable(table)
	switch d.output {
	case outputClause:
		if len(cols) == 0 {
			return fmt.Sprintf("INSERT INTO %s OUTPUT INSERTED.* DEFAULT VALUES", target)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.* VALUES (%s)", target, strings.Join(cols, ", "), strings.Join(vals, ", "))
	case returningClause:
		if len(cols) == 0 {
			return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", target)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *", target, strings.Join(cols, ", "), strings.Join(vals, ", "))
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", target, strings.Join(cols, ", "), strings.Join(vals, ", "))
	}
}

// whereClause builds "a = ? AND b = ?" from keys.
func (d *dialect) whereClause(keys core.Fields, a *args) string {
	var conds []string
	keys.Range(func(k string, v interface{}) bool {
		conds = append(conds, fmt.Sprintf("%s = %s", d.quote(k), a.add(v)))
		return true
	})
	return strings.Join(conds, " AND ")
}

// updateStatement builds an UPDATE that returns only the key columns where
// the dialect can.
func (d *dialect) updateStatement(table string, set, keys core.Fields, a *args) string {
	var assignments []string
	set.Range(func(k string, v interface{}) bool {
		assignments = append(assignments, fmt.Sprintf("%s = %s", d.quote(k), a.add(v)))
		return true
	})
	where := d.whereClause(keys, a)

	var outputs []string
	for _, k := range keys.Keys() {
		outputs = append(outputs, d.quote(k))
	}

	target := d.quoteTable(table)
	switch d.output {
	case outputClause:
		inserted := make([]string, len(outputs))
		for i, o := range outputs {
			inserted[i] = "INSERTED." + o
		}
		return fmt.Sprintf("UPDATE %s SET %s OUTPUT %s WHERE %s", target, strings.Join(assignments, ", "), strings.Join(inserted, ", "), where)
	case returningClause:
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s", target, strings.Join(assignments, ", "), where, strings.Join(outputs, ", "))
	default:
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s", target, strings.Join(assignments, ", "), where)
	}
}

// dataSourceName returns cfg.DSN, or builds one from the host settings.
func (d *dialect) dataSourceName(cfg core.AdapterConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch d.name {
	case "sqlite":
		if cfg.Database == "" {
			return "", fmt.Errorf("database (file path) or dsn is required for sqlite")
		}
		return cfg.Database, nil
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(cfg.Host, cfg.Port, 3306)
		mc.DBName = cfg.Database
		mc.ParseTime = true
		if cfg.ConnectionTimeout > 0 {
			mc.Timeout = cfg.ConnectionTimeout
		}
		return mc.FormatDSN(), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     hostPort(cfg.Host, cfg.Port, 5432),
			Path:     "/" + cfg.Database,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	case "sqlserver":
		q := url.Values{}
		q.Set("database", cfg.Database)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     hostPort(cfg.Host, cfg.Port, 1433),
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect: %s", d.name)
	}
}

func hostPort(host string, port, defaultPort int) string {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
