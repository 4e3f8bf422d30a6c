package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/sqlutil"
)

func columnType(d query.Dialect, t schema.FieldType) string {
	switch t {
	case schema.FieldTypeInteger:
		return "BIGINT"
	case schema.FieldTypeFloat:
		return "DOUBLE PRECISION"
	case schema.FieldTypeBool:
		return "BOOLEAN"
	case schema.FieldTypeJSONArray:
		if d.Name == query.Postgres.Name {
			return "JSONB"
		}
	}
	return "TEXT"
}

// CreateTableSQL renders the DDL for a schema's table.
func CreateTableSQL(d query.Dialect, s *schema.Schema) string {
	var cols []string
	for _, f := range s.Fields() {
		cols = append(cols, sqlutil.QuoteIdentifier(f.ColumnName())+" "+columnType(d, f.Type))
	}
	cols = append(cols, "PRIMARY KEY ("+sqlutil.QuoteIdentifier(s.Key().ColumnName())+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		sqlutil.QuoteIdentifier(s.Table), strings.Join(cols, ",\n\t"))
}

// CreateTables creates any missing tables for the given schemas.
func (s *SQLStore) CreateTables(ctx context.Context, schemas ...*schema.Schema) error {
	for _, sc := range schemas {
		if _, err := s.db.ExecContext(ctx, CreateTableSQL(s.dialect, sc)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", sc.Table, err)
		}
	}
	return nil
}

// Insert loads rows keyed by logical field name into the schema's table in
// one transaction. Values are coerced to the field types first.
func (s *SQLStore) Insert(ctx context.Context, sc *schema.Schema, rows []query.Row) error {
	if len(rows) == 0 {
		return nil
	}
	fields := sc.Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = sqlutil.QuoteIdentifier(f.ColumnName())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	for i, r := range rows {
		values, err := insertValues(fields, r)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sc.Name, i+1, err)
		}
		sqlStr, args, err := sq.Insert(sqlutil.QuoteIdentifier(sc.Table)).
			Columns(cols...).
			Values(values...).
			PlaceholderFormat(s.dialect.Placeholder).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("%s row %d: %w", sc.Name, i+1, err)
		}
	}
	return tx.Commit()
}

func insertValues(fields []schema.Field, r query.Row) ([]interface{}, error) {
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		v := r[f.Name]
		if v == nil {
			continue
		}
		if f.Type == schema.FieldTypeJSONArray {
			if s, ok := v.(string); ok {
				values[i] = s
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			values[i] = string(b)
			continue
		}
		coerced, err := f.Coerce(v)
		if err != nil {
			return nil, err
		}
		values[i] = coerced
	}
	return values, nil
}
