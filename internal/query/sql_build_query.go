package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/sqlutil"
)

// rankColumn holds the in-partition row number. It never reaches callers.
const rankColumn = `"__rank"`

// Dialect captures the differences between the SQL engines plans compile to.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	// jsonMember renders a predicate that is true when the JSON array in
	// column has a member whose text form equals the single bound argument.
	jsonMember func(column string) string
}

var (
	// SQLite compiles for modernc.org/sqlite.
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: sq.Question,
		jsonMember: func(column string) string {
			return fmt.Sprintf(`EXISTS (SELECT 1 FROM json_each(CASE WHEN json_valid(%[1]s) THEN CASE WHEN json_type(%[1]s) = 'array' THEN %[1]s END END) AS je WHERE je.type <> 'null' AND CAST(je.value AS TEXT) = ?)`, column)
		},
	}

	// Postgres compiles for PostgreSQL through pgx.
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: sq.Dollar,
		jsonMember: func(column string) string {
			return fmt.Sprintf(`EXISTS (SELECT 1 FROM jsonb_array_elements_text(CASE WHEN jsonb_typeof(CAST(%[1]s AS jsonb)) = 'array' THEN CAST(%[1]s AS jsonb) END) AS je(member) WHERE je.member = ?)`, column)
		},
	}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

// BuildSelectSQL compiles p into a query returning rows [offset, offset+limit).
// A negative limit returns every row.
func BuildSelectSQL(p *Plan, d Dialect, offset, limit int) (string, []interface{}, error) {
	if offset < 0 {
		return "", nil, fmt.Errorf("negative offset %d", offset)
	}
	if limit < 0 && offset > 0 {
		return "", nil, fmt.Errorf("offset %d requires a limit", offset)
	}
	b, err := buildFinal(p, d, true)
	if err != nil {
		return "", nil, err
	}
	if limit >= 0 {
		b = b.Limit(uint64(limit)).Offset(uint64(offset))
	}
	return b.PlaceholderFormat(d.Placeholder).ToSql()
}

// BuildCountSQL compiles p into a query returning the number of result rows.
func BuildCountSQL(p *Plan, d Dialect) (string, []interface{}, error) {
	inner, err := buildFinal(p, d, false)
	if err != nil {
		return "", nil, err
	}
	return sq.Select("COUNT(*)").
		FromSelect(inner, "counted").
		PlaceholderFormat(d.Placeholder).
		ToSql()
}

// BuildGetSQL compiles a primary key lookup.
func BuildGetSQL(s *schema.Schema, d Dialect, id interface{}) (string, []interface{}, error) {
	key := s.Key()
	return sq.Select(selectFields(s.Fields())...).
		From(sqlutil.QuoteIdentifier(s.Table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(key.ColumnName()): id}).
		Limit(1).
		PlaceholderFormat(d.Placeholder).
		ToSql()
}

// buildFinal wraps the base relation so that ordering, ranking and paging
// only ever refer to output column names.
func buildFinal(p *Plan, d Dialect, ordered bool) (sq.SelectBuilder, error) {
	base, err := buildBase(p, d)
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	columns := quoteAll(p.ColumnNames())

	if !p.Partitioned() {
		b := sq.Select(columns...).FromSelect(base, "base")
		if ordered {
			b = b.OrderBy(orderByClauses(p.sortKeys())...)
		}
		return b, nil
	}

	window := fmt.Sprintf("ROW_NUMBER() OVER (PARTITION BY %s", strings.Join(quoteAll(p.partition), ", "))
	if keys := p.sortKeys(); len(keys) > 0 {
		window += " ORDER BY " + strings.Join(orderByClauses(keys), ", ")
	}
	window += ") AS " + rankColumn

	ranked := sq.Select(append(append([]string{}, columns...), window)...).FromSelect(base, "base")
	b := sq.Select(columns...).FromSelect(ranked, "ranked")
	if p.size > 0 {
		b = b.Where(sq.LtOrEq{rankColumn: p.size})
	}
	if ordered {
		var clauses []string
		for _, name := range p.partition {
			clauses = append(clauses, orderByClause(sortKey{column: name}))
		}
		b = b.OrderBy(append(clauses, rankColumn)...)
	}
	return b, nil
}

func buildBase(p *Plan, d Dialect) (sq.SelectBuilder, error) {
	var b sq.SelectBuilder
	if p.Grouped() {
		var cols, groupBy []string
		for _, f := range p.groupBy {
			cols = append(cols, selectField(f))
			groupBy = append(groupBy, sqlutil.QuoteIdentifier(f.ColumnName()))
		}
		for _, a := range p.aggregates {
			cols = append(cols, aggregateSQL(a)+" AS "+sqlutil.QuoteIdentifier(a.alias))
		}
		b = sq.Select(cols...).From(sqlutil.QuoteIdentifier(p.schema.Table))
		if len(groupBy) > 0 {
			b = b.GroupBy(groupBy...)
		}
	} else {
		b = sq.Select(selectFields(p.schema.Fields())...).From(sqlutil.QuoteIdentifier(p.schema.Table))
	}

	if p.where != nil {
		cond, err := conditionSQL(p.where, d)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
		b = b.Where(cond)
	}
	return b, nil
}

func conditionSQL(c condition, d Dialect) (sq.Sqlizer, error) {
	switch n := c.(type) {
	case *branchCondition:
		parts := make([]sq.Sqlizer, 0, len(n.children))
		for _, child := range n.children {
			part, err := conditionSQL(child, d)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		if n.kind == Or {
			return sq.Or(parts), nil
		}
		return sq.And(parts), nil
	case *leafCondition:
		return leafSQL(n, d)
	}
	return nil, fmt.Errorf("unsupported condition %T", c)
}

func leafSQL(l *leafCondition, d Dialect) (sq.Sqlizer, error) {
	col := sqlutil.QuoteIdentifier(l.field.ColumnName())
	switch l.op {
	case OpEq:
		return sq.Eq{col: l.value}, nil
	case OpIn:
		// squirrel renders an empty list as (1=0).
		return sq.Eq{col: l.values}, nil
	case OpGte:
		return sq.GtOrEq{col: l.value}, nil
	case OpLte:
		return sq.LtOrEq{col: l.value}, nil
	case OpIsNull:
		return sq.Eq{col: nil}, nil
	case OpIsNotNull:
		return sq.NotEq{col: nil}, nil
	case OpContains:
		var members sq.Or
		for _, v := range l.values {
			members = append(members, sq.Expr(d.jsonMember(col), v))
		}
		return members, nil
	}
	return nil, &UnsupportedOperatorError{Field: l.field.Name, Operator: l.op}
}

func aggregateSQL(a aggregate) string {
	col := sqlutil.QuoteIdentifier(a.field.ColumnName())
	switch a.fn {
	case AggCountDistinct:
		return "COUNT(DISTINCT " + col + ")"
	case AggAvg:
		// Postgres AVG over integers yields numeric; keep both engines on floats.
		return "AVG(CAST(" + col + " AS DOUBLE PRECISION))"
	}
	return strings.ToUpper(string(a.fn)) + "(" + col + ")"
}

func selectField(f schema.Field) string {
	col := sqlutil.QuoteIdentifier(f.ColumnName())
	name := sqlutil.QuoteIdentifier(f.Name)
	if col == name {
		return col
	}
	return col + " AS " + name
}

func selectFields(fields []schema.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = selectField(f)
	}
	return out
}

// orderByClause pins NULL placement so every engine agrees: NULLs sort first
// ascending and last descending.
func orderByClause(k sortKey) string {
	col := sqlutil.QuoteIdentifier(k.column)
	if k.descending {
		return col + " DESC NULLS LAST"
	}
	return col + " ASC NULLS FIRST"
}

func orderByClauses(keys []sortKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = orderByClause(k)
	}
	return out
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sqlutil.QuoteIdentifier(n)
	}
	return out
}
