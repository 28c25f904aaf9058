// Package concat merges the columnar artifacts of one record group into a
// single schema-consistent dataset. The first member fixes the canonical
// column set and order; later members must match the column set exactly.
//
// Two modes exist. In-memory mode concatenates parsed Arrow tables directly.
// Streaming mode appends already-written Parquet files into one destination
// writer, holding at most one member's rows in memory and deleting each
// member file once its rows have been appended.
package concat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"cytotable/internal/arrowio"
)

// SchemaMismatchError indicates that a concatenation member's column name
// set disagrees with the group's canonical schema.
type SchemaMismatchError struct {
	Canonical []string
	Got       []string
	Member    string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for member %s: columns %v do not match canonical %v",
		e.Member, e.Got, e.Canonical)
}

// sameNameSet reports whether two column name lists contain the same names,
// irrespective of order.
func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// typesMatch reports whether two schemas agree on field names and types in
// order, ignoring schema- and field-level metadata.
func typesMatch(a, b *arrow.Schema) bool {
	if a.NumFields() != b.NumFields() {
		return false
	}
	for i := 0; i < a.NumFields(); i++ {
		af, bf := a.Field(i), b.Field(i)
		if af.Name != bf.Name || !arrow.TypeEqual(af.Type, bf.Type) {
			return false
		}
	}
	return true
}

// Tables concatenates in-memory tables into one table. The first member's
// column order is canonical; every other member is projected into it and must
// carry an identical column name set. Input tables are not released; the
// caller owns the returned table.
func Tables(members []arrow.Table) (arrow.Table, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("concat: no members")
	}

	canonical := arrowio.ColumnNames(members[0])
	firstFields := make([]arrow.Field, members[0].Schema().NumFields())
	for i := range firstFields {
		firstFields[i] = members[0].Schema().Field(i)
	}
	// Matches the schema shape produced by arrowio.Project so the merged
	// table can be assembled from projected record batches.
	schema := arrow.NewSchema(firstFields, nil)

	var recs []arrow.Record
	release := func() {
		for _, rec := range recs {
			rec.Release()
		}
	}

	for i, member := range members {
		names := arrowio.ColumnNames(member)
		if !sameNameSet(canonical, names) {
			release()
			return nil, &SchemaMismatchError{
				Canonical: canonical,
				Got:       names,
				Member:    fmt.Sprintf("member %d", i),
			}
		}
		proj, err := arrowio.Project(member, canonical)
		if err != nil {
			release()
			return nil, err
		}
		if !typesMatch(schema, proj.Schema()) {
			proj.Release()
			release()
			return nil, &SchemaMismatchError{
				Canonical: canonical,
				Got:       names,
				Member:    fmt.Sprintf("member %d (column types differ)", i),
			}
		}

		tr := array.NewTableReader(proj, proj.NumRows())
		for tr.Next() {
			rec := tr.Record()
			rec.Retain()
			recs = append(recs, rec)
		}
		tr.Release()
		proj.Release()
	}

	merged := array.NewTableFromRecords(schema, recs)
	release()
	return merged, nil
}

// Files merges already-written Parquet member files into destPath by
// streaming: the first file is read to obtain the canonical schema, a single
// destination writer is created against it, and each member is read projected
// into canonical column order, appended, and deleted. A pre-existing file at
// destPath is replaced.
func Files(ctx context.Context, memberPaths []string, destPath string) error {
	if len(memberPaths) == 0 {
		return fmt.Errorf("concat: no members")
	}

	first, err := arrowio.SchemaOf(memberPaths[0])
	if err != nil {
		return err
	}
	canonical := make([]string, first.NumFields())
	fields := make([]arrow.Field, first.NumFields())
	for i := range canonical {
		fields[i] = first.Field(i)
		canonical[i] = fields[i].Name
	}
	// Schema-level metadata is dropped so the writer schema matches the
	// projected member tables exactly.
	schema := arrow.NewSchema(fields, nil)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return fmt.Errorf("concat: open writer %s: %w", destPath, err)
	}

	for _, member := range memberPaths {
		tbl, err := arrowio.ReadTableColumns(ctx, member, canonical)
		if err != nil {
			w.Close()
			return wrapMismatch(err, member, canonical)
		}
		if !typesMatch(schema, tbl.Schema()) {
			got := arrowio.ColumnNames(tbl)
			tbl.Release()
			w.Close()
			return &SchemaMismatchError{Canonical: canonical, Got: got, Member: member}
		}

		writeErr := w.WriteTable(tbl, tbl.NumRows())
		tbl.Release()
		if writeErr != nil {
			w.Close()
			return fmt.Errorf("concat: append %s: %w", member, writeErr)
		}

		// The member's rows are now owned by the destination writer; the
		// intermediate file is no longer needed.
		if err := os.Remove(member); err != nil {
			w.Close()
			return err
		}
	}

	return w.Close()
}

// wrapMismatch converts a projection failure (missing column) into the
// taxonomy's SchemaMismatchError; other errors pass through.
func wrapMismatch(err error, member string, canonical []string) error {
	var missing *arrowio.MissingColumnError
	if errors.As(err, &missing) {
		return &SchemaMismatchError{Canonical: canonical, Member: member}
	}
	return err
}
