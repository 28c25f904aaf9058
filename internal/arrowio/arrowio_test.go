package arrowio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

// writeCSV creates a CSV file with the given contents under a temp dir.
func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cells.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

/*
TestReadCSV verifies header-derived column names, inferred column types, and
full row materialization.
*/
func TestReadCSV(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "ImageNumber,Cells_Area,Name\n1,0.5,a\n2,1.5,b\n3,2.5,c\n")

	tbl, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	defer tbl.Release()

	if tbl.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.NumRows())
	}
	got := ColumnNames(tbl)
	want := []string{"ImageNumber", "Cells_Area", "Name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}

	schema := tbl.Schema()
	if id := schema.Field(0).Type.ID(); id != arrow.INT64 {
		t.Fatalf("ImageNumber type = %v, want INT64", id)
	}
	if id := schema.Field(1).Type.ID(); id != arrow.FLOAT64 {
		t.Fatalf("Cells_Area type = %v, want FLOAT64", id)
	}
}

/*
TestReadCSV_Malformed verifies that malformed input fails with ParseError and
no partial recovery.
*/
func TestReadCSV_Malformed(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "a,b\n1,\"unterminated\n")

	_, err := ReadCSV(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

/*
TestWriteTable_CanonicalOrder verifies that writing applies the canonical
domain column order and that the artifact reads back with identical data
shape.
*/
func TestWriteTable_CanonicalOrder(t *testing.T) {
	t.Parallel()

	// Source order deliberately scrambled relative to the canonical one.
	path := writeCSV(t, "Cells_Area,zz_extra,Metadata_Well,ImageNumber\n0.5,x,A01,1\n1.5,y,A02,2\n")

	tbl, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	defer tbl.Release()

	dest := filepath.Join(t.TempDir(), "cells.parquet")
	if err := WriteTable(tbl, dest); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	back, err := ReadTable(context.Background(), dest)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	defer back.Release()

	got := ColumnNames(back)
	want := []string{"ImageNumber", "Metadata_Well", "Cells_Area", "zz_extra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("written column order = %v, want %v", got, want)
	}
	if back.NumRows() != tbl.NumRows() {
		t.Fatalf("rows = %d, want %d", back.NumRows(), tbl.NumRows())
	}
}

/*
TestProject verifies column reordering and the MissingColumnError for absent
names.
*/
func TestProject(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "a,b\n1,2\n")
	tbl, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	defer tbl.Release()

	proj, err := Project(tbl, []string{"b", "a"})
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	defer proj.Release()
	if got := ColumnNames(proj); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("projected columns = %v", got)
	}

	_, err = Project(tbl, []string{"a", "missing"})
	var missing *MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
}
