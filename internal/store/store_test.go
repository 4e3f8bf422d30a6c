package store

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

var testItems = schema.MustNew("items", "test_items", "id",
	schema.Integer("id"),
	schema.Text("state"),
	schema.Text("huc"),
	schema.Float("amount").As("amt"),
	schema.Integer("year"),
	schema.Bool("active"),
	schema.JSONArray("tags"),
)

func testRows() []query.Row {
	return []query.Row{
		{"id": 1, "state": "IA", "huc": "0701", "amount": 10.5, "year": 2019, "active": true, "tags": []interface{}{"soil", "water"}},
		{"id": 2, "state": "IA", "huc": "0701", "amount": 4.25, "year": 2020, "active": false, "tags": []interface{}{"water"}},
		{"id": 3, "state": "IA", "huc": "0702", "amount": 8.0, "year": nil, "active": true, "tags": nil},
		{"id": 4, "state": "MN", "huc": "0703", "amount": 2.5, "year": 2021, "active": true, "tags": []interface{}{"habitat"}},
		{"id": 5, "state": "MN", "huc": "0703", "amount": nil, "year": 2018, "active": false, "tags": []interface{}{}},
		{"id": 6, "state": "MN", "huc": "0704", "amount": 12.75, "year": 2022, "active": true, "tags": []interface{}{"soil"}},
		{"id": 7, "state": "WI", "huc": "0705", "amount": 1.0, "year": 2017, "active": nil, "tags": []interface{}{"water", "habitat"}},
		{"id": 8, "state": "WI", "huc": "0705", "amount": 6.5, "year": 2020, "active": true, "tags": []interface{}{"soil"}},
		{"id": 9, "state": nil, "huc": "0706", "amount": 3.0, "year": 2019, "active": false, "tags": nil},
		{"id": 10, "state": "IA", "huc": "0702", "amount": 8.0, "year": 2023, "active": true, "tags": []interface{}{"soil", "habitat"}},
	}
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateTables(ctx, testItems); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	if err := s.Insert(ctx, testItems, testRows()); err != nil {
		t.Fatalf("failed to insert rows: %v", err)
	}
	return s
}

func openMemory(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	if err := m.Load(testItems, testRows()); err != nil {
		t.Fatalf("failed to load rows: %v", err)
	}
	return m
}

type testStore struct {
	name  string
	store query.Store
}

func openStores(t *testing.T) []testStore {
	return []testStore{
		{name: "sqlite", store: openSQLite(t)},
		{name: "memory", store: openMemory(t)},
	}
}

func fetchAll(t *testing.T, st query.Store, p *query.Plan) []query.Row {
	t.Helper()
	ctx := context.Background()
	sess, err := st.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer sess.Close()
	rows, err := sess.Fetch(ctx, p, 0, -1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return rows
}

var parityCases = []struct {
	name string
	spec query.Spec
}{
	{name: "everything", spec: query.Spec{}},
	{name: "eq", spec: query.Spec{Filter: query.Compare("state", query.OpEq, "IA")}},
	{name: "in", spec: query.Spec{Filter: query.Compare("state", query.OpIn, []string{"MN", "WI"})}},
	{name: "empty in", spec: query.Spec{Filter: query.Compare("state", query.OpIn, []string{})}},
	{name: "range", spec: query.Spec{Filter: query.AllOf(
		query.Compare("amount", query.OpGte, 3),
		query.Compare("amount", query.OpLte, 10.5),
	)}},
	{name: "or with null", spec: query.Spec{Filter: query.AnyOf(
		query.Compare("year", query.OpGte, 2021),
		query.IsNull("year"),
	)}},
	{name: "bool", spec: query.Spec{Filter: query.Compare("active", query.OpEq, false)}},
	{name: "contains", spec: query.Spec{Filter: query.Compare("tags", query.OpContains, "habitat")}},
	{name: "contains any", spec: query.Spec{Filter: query.Compare("tags", query.OpContains, []string{"water", "missing"})}},
	{name: "not null", spec: query.Spec{Filter: query.IsNotNull("tags")}},
	{name: "order desc nulls last", spec: query.Spec{OrderBy: query.ParseOrders([]string{"-amount"})}},
	{name: "order asc nulls first", spec: query.Spec{OrderBy: query.ParseOrders([]string{"year"})}},
	{name: "group sum", spec: query.Spec{
		GroupBy:    []string{"state"},
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "sum"}, {Field: "id", Func: "count"}},
	}},
	{name: "group two keys", spec: query.Spec{
		GroupBy:    []string{"state", "huc"},
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "avg"}, {Field: "year", Func: "max"}},
		OrderBy:    query.ParseOrders([]string{"-amount-avg"}),
	}},
	{name: "aggregate only", spec: query.Spec{
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "sum"}, {Field: "huc", Func: "count_distinct"}, {Field: "state", Func: "min"}},
	}},
	{name: "aggregate only empty", spec: query.Spec{
		Filter:     query.Compare("state", query.OpEq, "nowhere"),
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "sum"}, {Field: "id", Func: "count"}},
	}},
	{name: "top per state", spec: query.Spec{
		Partition: query.Partition{Fields: []string{"state"}, Size: 2},
		OrderBy:   query.ParseOrders([]string{"-amount"}),
	}},
	{name: "top per state by key", spec: query.Spec{
		Partition: query.Partition{Fields: []string{"state"}, Size: 2},
	}},
	{name: "partition without size", spec: query.Spec{
		Partition: query.Partition{Fields: []string{"state"}},
		OrderBy:   query.ParseOrders([]string{"-amount"}),
	}},
	{name: "top grouped", spec: query.Spec{
		GroupBy:    []string{"state", "huc"},
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "sum"}},
		Partition:  query.Partition{Fields: []string{"state"}, Size: 1},
		OrderBy:    query.ParseOrders([]string{"-amount-sum"}),
	}},
}

func TestStoresAgree(t *testing.T) {
	sqlite := openSQLite(t)
	memory := openMemory(t)

	for _, tc := range parityCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := query.Build(testItems, tc.spec)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			got := fetchAll(t, sqlite, p)
			want := fetchAll(t, memory, p)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("stores disagree for %s\nsqlite: %v\nmemory: %v", p, got, want)
			}
		})
	}
}

func TestCountMatchesRows(t *testing.T) {
	ctx := context.Background()
	for _, st := range openStores(t) {
		for _, tc := range parityCases {
			t.Run(st.name+"/"+tc.name, func(t *testing.T) {
				p, err := query.Build(testItems, tc.spec)
				if err != nil {
					t.Fatalf("build: %v", err)
				}
				sess, err := st.store.Session(ctx)
				if err != nil {
					t.Fatalf("session: %v", err)
				}
				defer sess.Close()

				n, err := sess.Count(ctx, p)
				if err != nil {
					t.Fatalf("count: %v", err)
				}
				rows, err := sess.Fetch(ctx, p, 0, -1)
				if err != nil {
					t.Fatalf("fetch: %v", err)
				}
				if n != len(rows) {
					t.Errorf("count = %d, fetched %d rows", n, len(rows))
				}
			})
		}
	}
}

func TestPagesConcatenateToFullResult(t *testing.T) {
	ctx := context.Background()
	for _, st := range openStores(t) {
		for _, tc := range parityCases {
			t.Run(st.name+"/"+tc.name, func(t *testing.T) {
				p, err := query.Build(testItems, tc.spec)
				if err != nil {
					t.Fatalf("build: %v", err)
				}
				full := fetchAll(t, st.store, p)

				sess, err := st.store.Session(ctx)
				if err != nil {
					t.Fatalf("session: %v", err)
				}
				defer sess.Close()

				var paged []query.Row
				for offset := 0; offset < len(full)+3; offset += 3 {
					rows, err := sess.Fetch(ctx, p, offset, 3)
					if err != nil {
						t.Fatalf("fetch offset %d: %v", offset, err)
					}
					if len(rows) > 3 {
						t.Fatalf("page at offset %d has %d rows", offset, len(rows))
					}
					paged = append(paged, rows...)
				}
				if len(paged) != len(full) {
					t.Fatalf("paged %d rows, full result has %d", len(paged), len(full))
				}
				for i := range full {
					if !reflect.DeepEqual(paged[i], full[i]) {
						t.Errorf("row %d differs: paged %v, full %v", i, paged[i], full[i])
					}
				}
			})
		}
	}
}

func TestGroupedSums(t *testing.T) {
	p, err := query.Build(testItems, query.Spec{
		GroupBy:    []string{"state"},
		Aggregates: []query.AggregateSpec{{Field: "amount", Func: "sum"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, st := range openStores(t) {
		rows := fetchAll(t, st.store, p)
		want := []query.Row{
			{"state": nil, "amount-sum": 3.0},
			{"state": "IA", "amount-sum": 30.75},
			{"state": "MN", "amount-sum": 15.25},
			{"state": "WI", "amount-sum": 7.5},
		}
		if !reflect.DeepEqual(rows, want) {
			t.Errorf("%s: got %v, want %v", st.name, rows, want)
		}
	}
}

func TestPartitionKeepsTopRows(t *testing.T) {
	p, err := query.Build(testItems, query.Spec{
		Partition: query.Partition{Fields: []string{"state"}, Size: 1},
		OrderBy:   query.ParseOrders([]string{"-amount"}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, st := range openStores(t) {
		rows := fetchAll(t, st.store, p)
		var ids []int64
		for _, r := range rows {
			ids = append(ids, r["id"].(int64))
		}
		// nil state first, then IA, MN, WI; ties on amount break on id.
		want := []int64{9, 1, 6, 8}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("%s: got ids %v, want %v", st.name, ids, want)
		}
	}
}

func TestPartitionRanksByKeyWithoutOrder(t *testing.T) {
	p, err := query.Build(testItems, query.Spec{
		Partition: query.Partition{Fields: []string{"state"}, Size: 2},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, st := range openStores(t) {
		var ids []int64
		for _, r := range fetchAll(t, st.store, p) {
			ids = append(ids, r["id"].(int64))
		}
		want := []int64{9, 1, 2, 4, 5, 7, 8}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("%s: got ids %v, want %v", st.name, ids, want)
		}
	}
}

func TestFetchRejectsNegativeOffset(t *testing.T) {
	ctx := context.Background()
	p, err := query.Build(testItems, query.Spec{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, st := range openStores(t) {
		sess, err := st.store.Session(ctx)
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		if _, err := sess.Fetch(ctx, p, -4, 4); err == nil {
			t.Errorf("%s: expected an error for a negative offset", st.name)
		}
		sess.Close()
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	for _, st := range openStores(t) {
		t.Run(st.name, func(t *testing.T) {
			sess, err := st.store.Session(ctx)
			if err != nil {
				t.Fatalf("session: %v", err)
			}
			defer sess.Close()

			row, err := sess.Get(ctx, testItems, "4")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if row["state"] != "MN" || row["amount"] != 2.5 || row["active"] != true {
				t.Errorf("unexpected row: %v", row)
			}
			if tags, ok := row["tags"].([]interface{}); !ok || len(tags) != 1 || tags[0] != "habitat" {
				t.Errorf("unexpected tags: %#v", row["tags"])
			}

			_, err = sess.Get(ctx, testItems, 404)
			if !query.IsNotFound(err) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}
}

func TestFetchRejectsOffsetWithoutLimit(t *testing.T) {
	ctx := context.Background()
	p, err := query.Build(testItems, query.Spec{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, st := range openStores(t) {
		sess, err := st.store.Session(ctx)
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		if _, err := sess.Fetch(ctx, p, 2, -1); err == nil {
			t.Errorf("%s: expected an error for offset without limit", st.name)
		}
		sess.Close()
	}
}

func TestMemorySessionsAreTracked(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)
	a, _ := m.Session(ctx)
	b, _ := m.Session(ctx)
	if got := m.OpenSessions(); got != 2 {
		t.Fatalf("expected 2 open sessions, got %d", got)
	}
	a.Close()
	a.Close()
	b.Close()
	if got := m.OpenSessions(); got != 0 {
		t.Errorf("expected 0 open sessions, got %d", got)
	}
}

func TestCreateTableSQL(t *testing.T) {
	sqlite := CreateTableSQL(query.SQLite, testItems)
	if !strings.Contains(sqlite, `"amt" DOUBLE PRECISION`) {
		t.Errorf("expected physical column name in DDL:\n%s", sqlite)
	}
	if !strings.Contains(sqlite, `"tags" TEXT`) {
		t.Errorf("expected JSON stored as TEXT for sqlite:\n%s", sqlite)
	}
	if !strings.Contains(sqlite, `PRIMARY KEY ("id")`) {
		t.Errorf("expected primary key clause:\n%s", sqlite)
	}
	pg := CreateTableSQL(query.Postgres, testItems)
	if !strings.Contains(pg, `"tags" JSONB`) {
		t.Errorf("expected JSONB for postgres:\n%s", pg)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
