package sqlutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := map[string]string{
		"state":              `"state"`,
		"applied_amount-sum": `"applied_amount-sum"`,
		`we"ird`:             `"we""ird"`,
	}
	for in, want := range tests {
		if got := QuoteIdentifier(in); got != want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestScanMaps(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT 'IA' AS state, 3 AS n, NULL AS missing UNION ALL SELECT 'MN', 4, NULL`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got, err := ScanMaps(rows)
	if err != nil {
		t.Fatalf("ScanMaps: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0]["state"] != "IA" || got[0]["n"] != int64(3) || got[0]["missing"] != nil {
		t.Errorf("unexpected first row: %#v", got[0])
	}
}
