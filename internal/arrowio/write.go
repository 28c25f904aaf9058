package arrowio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"cytotable/internal/columns"
)

// writerProps returns the Parquet writer settings used for every artifact.
func writerProps() *parquet.WriterProperties {
	return parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
}

// WriteTable serializes tbl to a Parquet file at path, creating parent
// directories as needed. Columns are reordered into the canonical domain
// order before writing; the input table is not modified.
func WriteTable(tbl arrow.Table, path string) error {
	ordered, err := orderColumns(tbl)
	if err != nil {
		return err
	}
	defer ordered.Release()
	return writeTableFile(ordered, path)
}

// WriteRecord serializes a single record batch (one extraction window) to a
// Parquet file at path, applying the canonical column order.
func WriteRecord(rec arrow.Record, path string) error {
	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()
	return WriteTable(tbl, path)
}

func writeTableFile(tbl arrow.Table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	chunk := tbl.NumRows()
	if chunk < 1 {
		chunk = 1
	}
	if err := pqarrow.WriteTable(tbl, f, chunk, writerProps(), pqarrow.DefaultWriterProps()); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return f.Close()
}

// orderColumns projects tbl into the canonical domain column order.
func orderColumns(tbl arrow.Table) (arrow.Table, error) {
	schema := tbl.Schema()
	names := make([]string, schema.NumFields())
	for i := range names {
		names[i] = schema.Field(i).Name
	}
	return Project(tbl, columns.Order(names))
}

// MissingColumnError indicates a projection target column absent from the
// table being projected.
type MissingColumnError struct {
	Name string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not present in table", e.Name)
}

// Project returns a new table whose columns follow names exactly. The input
// table is retained by the result; callers release both independently. A name
// absent from tbl yields a MissingColumnError.
func Project(tbl arrow.Table, names []string) (arrow.Table, error) {
	schema := tbl.Schema()
	fields := make([]arrow.Field, len(names))
	cols := make([]arrow.Column, len(names))
	for i, name := range names {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			return nil, &MissingColumnError{Name: name}
		}
		idx := indices[0]
		fields[i] = schema.Field(idx)
		cols[i] = *tbl.Column(idx)
	}
	return array.NewTable(arrow.NewSchema(fields, nil), cols, tbl.NumRows()), nil
}
