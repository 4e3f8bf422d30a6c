// Package store implements query.Store over SQL databases and in-memory tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/sqlutil"
)

// SQLStore runs plans against a database/sql pool.
type SQLStore struct {
	db      *sql.DB
	dialect query.Dialect
	logger  *slog.Logger
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens a pool for driver ("sqlite" or "pgx") and verifies it answers.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	dialect, err := query.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dialect.Name == query.SQLite.Name {
		driver = "sqlite"
	} else {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" && isMemoryDSN(dsn) {
		// Every new connection to :memory: is a fresh, empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db, dialect, opts...), nil
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect query.Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, dialect: dialect, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isMemoryDSN(dsn string) bool {
	return dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// DB returns the underlying pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the SQL dialect plans are compiled to.
func (s *SQLStore) Dialect() query.Dialect { return s.dialect }

// Close closes the pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// Session pins one pooled connection for the lifetime of the session.
func (s *SQLStore) Session(ctx context.Context) (query.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, query.Execution("acquire connection", err)
	}
	return &sqlSession{conn: conn, dialect: s.dialect, logger: s.logger}, nil
}

type sqlSession struct {
	conn    *sql.Conn
	dialect query.Dialect
	logger  *slog.Logger
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}

func (s *sqlSession) Count(ctx context.Context, p *query.Plan) (int, error) {
	sqlStr, args, err := query.BuildCountSQL(p, s.dialect)
	if err != nil {
		return 0, query.Execution("compile count", err)
	}
	s.trace("count", p, sqlStr, args)

	var n int64
	if err := s.conn.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, query.Execution("count", fmt.Errorf("%w (SQL: %s)", err, sqlStr))
	}
	return int(n), nil
}

func (s *sqlSession) Fetch(ctx context.Context, p *query.Plan, offset, limit int) ([]query.Row, error) {
	sqlStr, args, err := query.BuildSelectSQL(p, s.dialect, offset, limit)
	if err != nil {
		return nil, query.Execution("compile fetch", err)
	}
	s.trace("fetch", p, sqlStr, args)

	rows, err := s.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, query.Execution("fetch", fmt.Errorf("%w (SQL: %s)", err, sqlStr))
	}
	raw, err := sqlutil.ScanMaps(rows)
	if err != nil {
		return nil, query.Execution("fetch", err)
	}

	columns := p.Columns()
	out := make([]query.Row, len(raw))
	for i, r := range raw {
		out[i] = normalizeRow(r, columns)
	}
	return out, nil
}

func (s *sqlSession) Get(ctx context.Context, sc *schema.Schema, id interface{}) (query.Row, error) {
	key, err := sc.Key().Coerce(id)
	if err != nil || key == nil {
		return nil, &query.NotFoundError{Resource: sc.Name, ID: id}
	}
	sqlStr, args, err := query.BuildGetSQL(sc, s.dialect, key)
	if err != nil {
		return nil, query.Execution("compile get", err)
	}
	s.logger.Debug("get", "resource", sc.Name, "sql", sqlStr)

	rows, err := s.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, query.Execution("get", fmt.Errorf("%w (SQL: %s)", err, sqlStr))
	}
	raw, err := sqlutil.ScanMaps(rows)
	if err != nil {
		return nil, query.Execution("get", err)
	}
	if len(raw) == 0 {
		return nil, &query.NotFoundError{Resource: sc.Name, ID: id}
	}

	fields := sc.Fields()
	columns := make([]query.Column, len(fields))
	for i, f := range fields {
		columns[i] = query.Column{Name: f.Name, Type: f.Type}
	}
	return normalizeRow(raw[0], columns), nil
}

func (s *sqlSession) trace(op string, p *query.Plan, sqlStr string, args []interface{}) {
	s.logger.Debug(op, "plan", p.String(), "sql", sqlStr, "args", len(args))
}
