// Package arrowio reads delimited sources into Arrow tables and moves tables
// between memory and Parquet artifacts on disk. All writes apply the
// canonical domain column ordering from internal/columns.
package arrowio

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"cytotable/internal/columns"
)

// ParseError indicates a malformed delimited source file. There is no
// partial recovery; the file is rejected as a whole.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadCSV parses a comma-delimited file fully into an in-memory Arrow table.
// Column names come from the header (normalized via columns.NormalizeHeader)
// and column types are inferred from the data. The caller owns the returned
// table and must Release it.
func ReadCSV(path string) (arrow.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Chunk size -1 reads the whole file as a single record so that type
	// inference sees every row before the schema is fixed.
	r := csv.NewInferringReader(f,
		csv.WithHeader(true),
		csv.WithChunk(-1),
		csv.WithNullReader(true, ""),
	)
	defer r.Release()

	var recs []arrow.Record
	release := func() {
		for _, rec := range recs {
			rec.Release()
		}
	}
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		release()
		return nil, &ParseError{Path: path, Err: err}
	}
	if len(recs) == 0 {
		release()
		return nil, &ParseError{Path: path, Err: fmt.Errorf("no rows parsed")}
	}

	schema := renameSchema(r.Schema())
	renamed := make([]arrow.Record, len(recs))
	for i, rec := range recs {
		renamed[i] = array.NewRecord(schema, rec.Columns(), rec.NumRows())
	}
	tbl := array.NewTableFromRecords(schema, renamed)
	for _, rec := range renamed {
		rec.Release()
	}
	release()
	return tbl, nil
}

// renameSchema replaces field names with their normalized forms, keeping
// types and nullability.
func renameSchema(schema *arrow.Schema) *arrow.Schema {
	names := make([]string, schema.NumFields())
	for i := range names {
		names[i] = schema.Field(i).Name
	}
	names = columns.NormalizeHeader(names)

	fields := make([]arrow.Field, schema.NumFields())
	for i := range fields {
		f := schema.Field(i)
		f.Name = names[i]
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil)
}
