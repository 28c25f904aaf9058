package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// newTestDB creates a SQLite database file with a Cells table whose rows are
// well-typed except where noted, and returns an open handle to it.
func newTestDB(t *testing.T, rows int, mixed bool) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "all.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE Cells (ImageNumber INTEGER, ObjectNumber INTEGER, Cells_Area FLOAT, Name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for i := 0; i < rows; i++ {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO Cells (ImageNumber, ObjectNumber, Cells_Area, Name) VALUES (?, ?, ?, ?)`,
			1, i+1, float64(i)*1.5, "cell"); err != nil {
			t.Fatalf("insert row %d: %v", i, err)
		}
	}
	if mixed {
		// A text storage class inside an INTEGER-declared column. SQLite
		// keeps the text because it cannot be losslessly converted.
		if _, err := db.ExecContext(ctx,
			`INSERT INTO Cells (ImageNumber, ObjectNumber, Cells_Area, Name) VALUES ('bogus', ?, ?, ?)`,
			rows+1, 0.0, "cell"); err != nil {
			t.Fatalf("insert mixed row: %v", err)
		}
	}
	return db
}

/*
TestTablesAndColumns verifies table discovery and column metadata
introspection, including declared-type to storage-class mapping.
*/
func TestTablesAndColumns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t, 1, false)

	tables, err := Tables(ctx, db)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "Cells" {
		t.Fatalf("Tables() = %v, want [Cells]", tables)
	}

	cols, err := TableColumns(ctx, db, "Cells")
	if err != nil {
		t.Fatalf("TableColumns() error = %v", err)
	}
	want := map[string]string{
		"ImageNumber":  "integer",
		"ObjectNumber": "integer",
		"Cells_Area":   "real",
		"Name":         "text",
	}
	for _, c := range cols {
		if got := c.StorageClasses()[0]; got != want[c.Name] {
			t.Fatalf("column %s storage class = %q, want %q", c.Name, got, want[c.Name])
		}
	}
}

/*
TestExtractTable_Windows verifies that a table with R rows and window size W
yields ceil(R/W) windows with the final window holding R mod W rows (or W for
an exact multiple).
*/
func TestExtractTable_Windows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rows      int
		window    int64
		wantSizes []int64
	}{
		{name: "remainder window", rows: 5, window: 2, wantSizes: []int64{2, 2, 1}},
		{name: "exact multiple", rows: 4, window: 2, wantSizes: []int64{2, 2}},
		{name: "single window", rows: 3, window: 10, wantSizes: []int64{3}},
		{name: "empty table", rows: 0, window: 2, wantSizes: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			db := newTestDB(t, tt.rows, false)

			var sizes []int64
			var offsets []int64
			err := ExtractTable(ctx, db, "all.sqlite", "Cells", tt.window,
				func(rec arrow.Record, offset int64) error {
					sizes = append(sizes, rec.NumRows())
					offsets = append(offsets, offset)
					return nil
				})
			if err != nil {
				t.Fatalf("ExtractTable() error = %v", err)
			}
			if len(sizes) != len(tt.wantSizes) {
				t.Fatalf("got %d windows (%v), want %d", len(sizes), sizes, len(tt.wantSizes))
			}
			for i, want := range tt.wantSizes {
				if sizes[i] != want {
					t.Fatalf("window %d has %d rows, want %d", i, sizes[i], want)
				}
				if offsets[i] != int64(i)*tt.window {
					t.Fatalf("window %d offset = %d, want %d", i, offsets[i], int64(i)*tt.window)
				}
			}
		})
	}
}

/*
TestExtractTable_MismatchToNull verifies that a text-typed value in an
INTEGER-declared column arrives as NULL while untouched rows and columns are
preserved unchanged.
*/
func TestExtractTable_MismatchToNull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t, 2, true) // 2 clean rows + 1 mixed row

	var recs []arrow.Record
	err := ExtractTable(ctx, db, "all.sqlite", "Cells", 10,
		func(rec arrow.Record, offset int64) error {
			rec.Retain()
			recs = append(recs, rec)
			return nil
		})
	if err != nil {
		t.Fatalf("ExtractTable() error = %v", err)
	}
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	if len(recs) != 1 {
		t.Fatalf("expected 1 window, got %d", len(recs))
	}
	rec := recs[0]
	if rec.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", rec.NumRows())
	}

	imageCol, ok := rec.Column(0).(*array.Int64)
	if !ok {
		t.Fatalf("ImageNumber column type = %T, want *array.Int64", rec.Column(0))
	}
	if !imageCol.IsValid(0) || imageCol.Value(0) != 1 {
		t.Fatalf("clean row 0 ImageNumber = %v (valid=%v), want 1", imageCol.Value(0), imageCol.IsValid(0))
	}
	if imageCol.IsValid(2) {
		t.Fatalf("mixed row ImageNumber should be NULL, got %v", imageCol.Value(2))
	}

	nameCol, ok := rec.Column(3).(*array.String)
	if !ok {
		t.Fatalf("Name column type = %T, want *array.String", rec.Column(3))
	}
	if nameCol.Value(2) != "cell" {
		t.Fatalf("untouched column in mixed row = %q, want %q", nameCol.Value(2), "cell")
	}
}

/*
TestMismatchCounts verifies the per-column observability counts for values
the sanitized extraction replaces with NULL.
*/
func TestMismatchCounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t, 3, true)

	counts, err := MismatchCounts(ctx, db, "Cells")
	if err != nil {
		t.Fatalf("MismatchCounts() error = %v", err)
	}
	if counts["ImageNumber"] != 1 {
		t.Fatalf("ImageNumber mismatches = %d, want 1", counts["ImageNumber"])
	}
	if counts["Name"] != 0 {
		t.Fatalf("Name mismatches = %d, want 0", counts["Name"])
	}
}
