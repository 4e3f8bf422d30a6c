package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/store"
)

var (
	testPractices = schema.MustNew("practices", "practices", "id",
		schema.Integer("id"),
		schema.Text("state"),
		schema.Text("applied_date"),
		schema.Float("amount"),
		schema.JSONArray("benefits"),
	)
	testStates = schema.MustNew("states", "states", "state",
		schema.Text("state").As("id"),
		schema.Float("area"),
	)
)

const fixtureYAML = `
states:
  - state: MN
    area: 86936
practices:
  - id: 1
    state: IA
    applied_date: 2020-05-01
    amount: 12.5
    benefits: [soil, water]
  - id: 2
    state: MN
    amount: 3
states:
  - state: IA
    area: 56273
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(testPractices, testStates)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(fixtureYAML), testRegistry(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(f.Tables))
	}
	if f.Tables[0].Schema != testStates || f.Tables[1].Schema != testPractices {
		t.Fatalf("expected tables in file order, got %s, %s", f.Tables[0].Schema.Name, f.Tables[1].Schema.Name)
	}
	if got := len(f.Tables[0].Rows); got != 2 {
		t.Fatalf("expected repeated resource rows to merge, got %d state rows", got)
	}
	if f.Count() != 4 {
		t.Fatalf("expected 4 rows, got %d", f.Count())
	}

	first := f.Tables[1].Rows[0]
	if got := first["applied_date"]; got != "2020-05-01" {
		t.Fatalf("expected date rendered as text, got %#v", got)
	}
	tags, ok := first["benefits"].([]interface{})
	if !ok || len(tags) != 2 || tags[0] != "soil" {
		t.Fatalf("unexpected benefits: %#v", first["benefits"])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "unknown resource", input: "widgets:\n  - id: 1\n", wantErr: `unknown resource "widgets"`},
		{name: "unknown field", input: "practices:\n  - id: 1\n    colour: red\n", wantErr: "colour"},
		{name: "missing key", input: "practices:\n  - state: IA\n", wantErr: "missing id"},
		{name: "not a mapping", input: "- id: 1\n", wantErr: "expected a mapping"},
		{name: "rows not a list", input: "practices: 3\n", wantErr: "practices"},
		{name: "bad yaml", input: "practices: [\n", wantErr: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), testRegistry(t))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeUnknownFieldIsTyped(t *testing.T) {
	_, err := Decode(strings.NewReader("practices:\n  - id: 1\n    colour: red\n"), testRegistry(t))
	var unknown *schema.UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
}

func TestDecodeEmpty(t *testing.T) {
	f, err := Decode(strings.NewReader(""), testRegistry(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Count() != 0 {
		t.Fatalf("expected no rows, got %d", f.Count())
	}
}

func TestLoadIntoStores(t *testing.T) {
	ctx := context.Background()
	f, err := Decode(strings.NewReader(fixtureYAML), testRegistry(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	sqlStore, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer sqlStore.Close()
	var loaded []string
	if err := IntoSQL(ctx, sqlStore, f, func(t Table) { loaded = append(loaded, t.Schema.Name) }); err != nil {
		t.Fatalf("IntoSQL: %v", err)
	}

	if strings.Join(loaded, ",") != "states,practices" {
		t.Fatalf("expected tables loaded in file order, got %v", loaded)
	}

	mem := store.NewMemoryStore()
	if err := IntoMemory(mem, f); err != nil {
		t.Fatalf("IntoMemory: %v", err)
	}

	plan, err := query.Build(testStates, query.Spec{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for name, st := range map[string]query.Store{"sqlite": sqlStore, "memory": mem} {
		t.Run(name, func(t *testing.T) {
			sess, err := st.Session(ctx)
			if err != nil {
				t.Fatalf("Session: %v", err)
			}
			defer sess.Close()

			n, err := sess.Count(ctx, plan)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != 2 {
				t.Fatalf("expected 2 states, got %d", n)
			}
			row, err := sess.Get(ctx, testPractices, int64(1))
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if row["amount"] != 12.5 || row["state"] != "IA" {
				t.Fatalf("unexpected practice row: %#v", row)
			}
		})
	}
}
