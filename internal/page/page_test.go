package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"testing"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/store"
)

var testPractices = schema.MustNew("practices", "practices", "id",
	schema.Integer("id"),
	schema.Text("state"),
	schema.Float("applied_amount"),
)

// 25 rows in IA, 7 in MN, 3 in WI.
func fixtureRows() []query.Row {
	var rows []query.Row
	id := 0
	for _, c := range []struct {
		state string
		n     int
	}{{"IA", 25}, {"MN", 7}, {"WI", 3}} {
		for i := 0; i < c.n; i++ {
			id++
			rows = append(rows, query.Row{"id": id, "state": c.state, "applied_amount": float64(id%6) + 0.5})
		}
	}
	return rows
}

type namedStore struct {
	name  string
	store query.Store
}

func testStores(t *testing.T) []namedStore {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	if err := mem.Load(testPractices, fixtureRows()); err != nil {
		t.Fatalf("load: %v", err)
	}

	sqlite, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	if err := sqlite.CreateTables(ctx, testPractices); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	if err := sqlite.Insert(ctx, testPractices, fixtureRows()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return []namedStore{{"memory", mem}, {"sqlite", sqlite}}
}

func mustPlan(t *testing.T, spec query.Spec) *query.Plan {
	t.Helper()
	p, err := query.Build(testPractices, spec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

var testLinks = Links{Base: "http://localhost:8000/bmp-api/practices", RawQuery: "state=IA&limit=10"}

func TestPaginateFirstPage(t *testing.T) {
	p := mustPlan(t, query.Spec{Filter: query.Compare("state", query.OpEq, "IA")})
	for _, st := range testStores(t) {
		t.Run(st.name, func(t *testing.T) {
			res, err := Paginate(context.Background(), st.store, p, Request{Page: 1, Limit: 10}, testLinks)
			if err != nil {
				t.Fatalf("paginate: %v", err)
			}
			if res.Count != 25 {
				t.Errorf("count = %d, want 25", res.Count)
			}
			if len(res.Results) != 10 {
				t.Errorf("got %d results, want 10", len(res.Results))
			}
			if res.Previous != nil {
				t.Errorf("previous = %q, want nil", *res.Previous)
			}
			if res.Next == nil || *res.Next != "http://localhost:8000/bmp-api/practices?page=2&state=IA&limit=10" {
				t.Errorf("unexpected next link %v", res.Next)
			}
			if res.Last != "http://localhost:8000/bmp-api/practices?page=3&state=IA&limit=10" {
				t.Errorf("unexpected last link %q", res.Last)
			}
			if res.TotalPages != 3 {
				t.Errorf("total pages = %d, want 3", res.TotalPages)
			}
		})
	}
}

func TestPaginateLastPage(t *testing.T) {
	p := mustPlan(t, query.Spec{Filter: query.Compare("state", query.OpEq, "IA")})
	for _, st := range testStores(t) {
		res, err := Paginate(context.Background(), st.store, p, Request{Page: 3, Limit: 10}, testLinks)
		if err != nil {
			t.Fatalf("%s: paginate: %v", st.name, err)
		}
		if len(res.Results) != 5 {
			t.Errorf("%s: got %d results, want 5", st.name, len(res.Results))
		}
		if res.Next != nil {
			t.Errorf("%s: next = %q, want nil", st.name, *res.Next)
		}
		if res.Previous == nil || *res.Previous != "http://localhost:8000/bmp-api/practices?page=2&state=IA&limit=10" {
			t.Errorf("%s: unexpected previous link %v", st.name, res.Previous)
		}
	}
}

func TestPaginatePastTheEnd(t *testing.T) {
	p := mustPlan(t, query.Spec{})
	for _, st := range testStores(t) {
		res, err := Paginate(context.Background(), st.store, p, Request{Page: 9, Limit: 10}, testLinks)
		if err != nil {
			t.Fatalf("%s: paginate: %v", st.name, err)
		}
		if len(res.Results) != 0 || res.Results == nil {
			t.Errorf("%s: expected an empty, non-nil page, got %v", st.name, res.Results)
		}
		if res.Previous == nil || *res.Previous != "http://localhost:8000/bmp-api/practices?page=4&state=IA&limit=10" {
			t.Errorf("%s: previous should point at the last page, got %v", st.name, res.Previous)
		}
		if res.Next != nil {
			t.Errorf("%s: unexpected next link %q", st.name, *res.Next)
		}
	}
}

func TestPaginateHugePage(t *testing.T) {
	req, err := ParseRequest("4611686018427387904", "4", 25)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := mustPlan(t, query.Spec{})
	for _, st := range testStores(t) {
		res, err := Paginate(context.Background(), st.store, p, req, testLinks)
		if err != nil {
			t.Fatalf("%s: paginate: %v", st.name, err)
		}
		if len(res.Results) != 0 {
			t.Errorf("%s: expected an empty page, got %d rows", st.name, len(res.Results))
		}
		if res.Next != nil {
			t.Errorf("%s: unexpected next link %q", st.name, *res.Next)
		}
		if res.Previous == nil || *res.Previous != testLinks.Page(9) {
			t.Errorf("%s: previous should point at the last page, got %v", st.name, res.Previous)
		}
	}
}

func TestPaginateUnboundedLimit(t *testing.T) {
	p := mustPlan(t, query.Spec{})
	for _, st := range testStores(t) {
		for _, limit := range []int{0, -1} {
			res, err := Paginate(context.Background(), st.store, p, Request{Page: 1, Limit: limit}, testLinks)
			if err != nil {
				t.Fatalf("%s: paginate: %v", st.name, err)
			}
			if res.Count != 35 || len(res.Results) != 35 {
				t.Errorf("%s: count %d, results %d; want 35 on one page", st.name, res.Count, len(res.Results))
			}
			if res.TotalPages != 1 || res.Next != nil || res.Previous != nil {
				t.Errorf("%s: expected a single page, got %+v", st.name, res)
			}
		}
	}
}

func TestPaginateEmptyResult(t *testing.T) {
	p := mustPlan(t, query.Spec{Filter: query.Compare("state", query.OpEq, "CA")})
	for _, st := range testStores(t) {
		for _, limit := range []int{10, 0} {
			res, err := Paginate(context.Background(), st.store, p, Request{Page: 1, Limit: limit}, testLinks)
			if err != nil {
				t.Fatalf("%s: paginate: %v", st.name, err)
			}
			if res.Count != 0 || len(res.Results) != 0 {
				t.Errorf("%s: expected no rows, got %+v", st.name, res)
			}
			if res.Last != "http://localhost:8000/bmp-api/practices?page=1&state=IA&limit=10" {
				t.Errorf("%s: last link should point at page 1, got %q", st.name, res.Last)
			}
		}
	}
}

func TestPagesReproduceFullResult(t *testing.T) {
	specs := map[string]query.Spec{
		"ordered": {OrderBy: query.ParseOrders([]string{"-applied_amount"})},
		"grouped": {
			GroupBy:    []string{"state"},
			Aggregates: []query.AggregateSpec{{Field: "applied_amount", Func: "sum"}},
		},
		"partitioned": {
			Partition: query.Partition{Fields: []string{"state"}, Size: 4},
			OrderBy:   query.ParseOrders([]string{"-applied_amount"}),
		},
	}
	for _, st := range testStores(t) {
		for name, spec := range specs {
			t.Run(st.name+"/"+name, func(t *testing.T) {
				p := mustPlan(t, spec)
				ctx := context.Background()
				full, err := Paginate(ctx, st.store, p, Request{Page: 1, Limit: 0}, testLinks)
				if err != nil {
					t.Fatalf("paginate all: %v", err)
				}
				for _, limit := range []int{1, 2, 5, 7} {
					var rows []query.Row
					first, err := Paginate(ctx, st.store, p, Request{Page: 1, Limit: limit}, testLinks)
					if err != nil {
						t.Fatalf("paginate: %v", err)
					}
					for page := 1; page <= first.TotalPages; page++ {
						res, err := Paginate(ctx, st.store, p, Request{Page: page, Limit: limit}, testLinks)
						if err != nil {
							t.Fatalf("paginate page %d: %v", page, err)
						}
						if len(res.Results) > limit {
							t.Fatalf("page %d has %d rows, limit %d", page, len(res.Results), limit)
						}
						if page < first.TotalPages && len(res.Results) != limit {
							t.Fatalf("page %d has %d rows before the last page, limit %d", page, len(res.Results), limit)
						}
						rows = append(rows, res.Results...)
					}
					if !reflect.DeepEqual(rows, full.Results) {
						t.Errorf("limit %d: pages do not reproduce the full result", limit)
					}
				}
			})
		}
	}
}

func TestPaginateReleasesSession(t *testing.T) {
	mem := store.NewMemoryStore()
	if err := mem.Load(testPractices, fixtureRows()); err != nil {
		t.Fatalf("load: %v", err)
	}
	p := mustPlan(t, query.Spec{})
	if _, err := Paginate(context.Background(), mem, p, Request{Page: 2, Limit: 5}, testLinks); err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if n := mem.OpenSessions(); n != 0 {
		t.Errorf("expected all sessions released, %d still open", n)
	}
}

type failingStore struct{ sessions, closed int }

func (f *failingStore) Session(ctx context.Context) (query.Session, error) {
	f.sessions++
	return &failingSession{store: f}, nil
}

type failingSession struct{ store *failingStore }

func (s *failingSession) Count(ctx context.Context, p *query.Plan) (int, error) {
	return 0, errors.New("connection reset")
}

func (s *failingSession) Fetch(ctx context.Context, p *query.Plan, offset, limit int) ([]query.Row, error) {
	return nil, errors.New("unreachable")
}

func (s *failingSession) Get(ctx context.Context, sc *schema.Schema, id interface{}) (query.Row, error) {
	return nil, errors.New("unreachable")
}

func (s *failingSession) Close() error {
	s.store.closed++
	return nil
}

func TestPaginateStoreFailure(t *testing.T) {
	st := &failingStore{}
	_, err := Paginate(context.Background(), st, mustPlan(t, query.Spec{}), Request{Page: 1, Limit: 5}, testLinks)
	var exec *query.ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("expected execution error, got %v", err)
	}
	if query.IsClientError(err) {
		t.Error("store failures are not client errors")
	}
	if st.sessions != 1 || st.closed != 1 {
		t.Errorf("sessions opened %d, closed %d", st.sessions, st.closed)
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		page, limit string
		want        Request
		wantErr     bool
	}{
		{"", "", Request{Page: 1, Limit: 25}, false},
		{"3", "10", Request{Page: 3, Limit: 10}, false},
		{" 2 ", "-1", Request{Page: 2, Limit: -1}, false},
		{"0", "", Request{}, true},
		{"-4", "", Request{}, true},
		{"two", "", Request{}, true},
		{"1", "ten", Request{}, true},
		{"1", "2.5", Request{}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%q", tt.page, tt.limit), func(t *testing.T) {
			got, err := ParseRequest(tt.page, tt.limit, 25)
			if tt.wantErr {
				var pageErr *query.InvalidPageRequestError
				if !errors.As(err, &pageErr) {
					t.Fatalf("expected InvalidPageRequestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInvalidPageFailsBeforeStoreAccess(t *testing.T) {
	st := &failingStore{}
	_, err := Paginate(context.Background(), st, mustPlan(t, query.Spec{}), Request{Page: 0, Limit: 5}, testLinks)
	if !query.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
	if st.sessions != 0 {
		t.Errorf("store was touched %d times", st.sessions)
	}
}

func TestLinksPreserveParams(t *testing.T) {
	u, err := url.Parse("http://example.org/bmp-api/practices?state=IA&page=4&state=MN&order_by=-applied_amount&limit=5#frag")
	if err != nil {
		t.Fatal(err)
	}
	l := LinksFromURL(u)
	want := "http://example.org/bmp-api/practices?page=2&state=IA&state=MN&order_by=-applied_amount&limit=5"
	if got := l.Page(2); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := (Links{Base: "/x"}).Page(1); got != "/x?page=1" {
		t.Errorf("got %q", got)
	}
}
