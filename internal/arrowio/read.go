package arrowio

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadTable loads a whole Parquet artifact into an in-memory Arrow table.
// The caller owns the returned table and must Release it.
func ReadTable(ctx context.Context, path string) (arrow.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return tbl, nil
}

// ReadTableColumns loads a Parquet artifact and projects it into the given
// column order. Used by the streaming concatenator to align every member file
// with the canonical schema of the first.
func ReadTableColumns(ctx context.Context, path string, names []string) (arrow.Table, error) {
	tbl, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	proj, err := Project(tbl, names)
	if err != nil {
		tbl.Release()
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	tbl.Release()
	return proj, nil
}

// ColumnNames returns the column names of tbl in schema order.
func ColumnNames(tbl arrow.Table) []string {
	schema := tbl.Schema()
	names := make([]string, schema.NumFields())
	for i := range names {
		names[i] = schema.Field(i).Name
	}
	return names
}

// SchemaOf reads only the Arrow schema of a Parquet artifact.
func SchemaOf(path string) (*arrow.Schema, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return fr.Schema()
}
