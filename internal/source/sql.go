package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JonMunkholm/datagrid/internal/core"
)

// tableQuery selects a table's data columns from a SQL table whose column
// names equal the column ids.
type tableQuery struct {
	table     string
	columns   []core.Column
	keyColumn string
}

func newTableQuery(table string, def core.TableDefinition) tableQuery {
	if table == "" {
		table = def.Info.Key
	}
	return tableQuery{table: table, columns: def.DataColumns(), keyColumn: def.KeyColumn}
}

// sql renders the SELECT, ordered by the key column or the first column.
func (q tableQuery) sql() string {
	cols := make([]string, len(q.columns))
	for i, c := range q.columns {
		cols[i] = quoteIdentifier(c.ID)
	}
	order := q.keyColumn
	if order == "" && len(q.columns) > 0 {
		order = q.columns[0].ID
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdentifier(q.table))
	if order != "" {
		stmt += " ORDER BY " + quoteIdentifier(order) + " ASC"
	}
	return stmt
}

// row converts one result tuple, in column order, into a Row.
func (q tableQuery) row(values []any, position int) core.Row {
	cells := make(map[string]any, len(q.columns))
	for i, col := range q.columns {
		if i < len(values) {
			cells[col.ID] = normalize(col.Kind, values[i])
		} else {
			cells[col.ID] = nil
		}
	}
	return core.Row{Key: rowKey(q.keyColumn, cells, position), Cells: cells}
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Querier is the part of a pgx pool the Postgres loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres loads a table through pgx.
type Postgres struct {
	db    Querier
	query tableQuery
}

// NewPostgres returns a loader reading table (def.Info.Key when empty).
func NewPostgres(db Querier, table string, def core.TableDefinition) *Postgres {
	return &Postgres{db: db, query: newTableQuery(table, def)}
}

// Load runs the SELECT and converts pgx values.
func (p *Postgres) Load(ctx context.Context) ([]core.Row, error) {
	rows, err := p.db.Query(ctx, p.query.sql())
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []core.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		out = append(out, p.query.row(values, len(out)+1))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// PoolConfig sizes a Postgres connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ConnectPostgres opens and pings a pgx pool.
func ConnectPostgres(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// SQLite loads a table from a SQLite database through database/sql.
type SQLite struct {
	db    *sql.DB
	query tableQuery
}

// NewSQLite returns a loader reading table (def.Info.Key when empty) from db.
func NewSQLite(db *sql.DB, table string, def core.TableDefinition) *SQLite {
	return &SQLite{db: db, query: newTableQuery(table, def)}
}

// OpenSQLite opens a SQLite database file read-mostly with a busy timeout.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Load runs the SELECT and converts driver values.
func (s *SQLite) Load(ctx context.Context) ([]core.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.query.sql())
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	values := make([]any, len(s.query.columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	var out []core.Row
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s.query.row(values, len(out)+1))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
