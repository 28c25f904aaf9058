// Package sqlite extracts tables from embedded SQLite database files into
// Arrow record batches using database/sql with the pure-Go driver.
//
// SQLite storage is untyped per cell: a column declared INTEGER may hold text
// in some rows. Extraction queries substitute NULL for any value whose
// runtime storage class disagrees with the column's declared affinity so the
// conversion completes instead of aborting on mixed-type columns. Callers
// should be aware that NULLs in the output may originate from this
// sanitization rather than true absence; per-column mismatch counts are
// available via MismatchCounts for observability.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	_ "modernc.org/sqlite"
)

// QueryError indicates a failed extraction query. It is fatal for the
// affected window; there is no retry.
type QueryError struct {
	Path  string
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s table %s: %v", e.Path, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Column describes one column of an embedded-database table.
type Column struct {
	Name         string
	DeclaredType string
}

// StorageClasses returns the SQLite storage classes considered well-typed
// for the column's declared affinity. NUMERIC-affinity columns legitimately
// hold both integer and real values.
func (c Column) StorageClasses() []string {
	t := strings.ToUpper(c.DeclaredType)
	switch {
	case strings.Contains(t, "INT"):
		return []string{"integer"}
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return []string{"text"}
	case strings.Contains(t, "BLOB"), t == "":
		return []string{"blob"}
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return []string{"real"}
	default:
		return []string{"integer", "real"}
	}
}

// arrowType maps the column's declared affinity to the Arrow type used in
// extracted record batches.
func (c Column) arrowType() arrow.DataType {
	classes := c.StorageClasses()
	switch classes[0] {
	case "integer":
		if len(classes) > 1 {
			// NUMERIC affinity: widest common representation.
			return arrow.PrimitiveTypes.Float64
		}
		return arrow.PrimitiveTypes.Int64
	case "real":
		return arrow.PrimitiveTypes.Float64
	case "blob":
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// classList renders the accepted storage classes (plus 'null', which always
// passes through) as a SQL IN list.
func (c Column) classList() string {
	classes := append(c.StorageClasses(), "null")
	for i, cl := range classes {
		classes[i] = "'" + cl + "'"
	}
	return strings.Join(classes, ", ")
}

// Open opens the SQLite database file at path and checks connectivity.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}

// Tables lists the user tables of the database in name order.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableColumns returns name and declared type for every column of table, in
// table order.
func TableColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DeclaredType); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: table %s has no columns", table)
	}
	return cols, nil
}

// windowQuery builds the sanitized bounded SELECT for one extraction window.
// Each output expression passes the value through when its storage class
// matches the declared affinity and yields NULL otherwise.
func windowQuery(table string, cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		q := quoteIdent(c.Name)
		parts[i] = fmt.Sprintf(
			"CASE WHEN typeof(%s) NOT IN (%s) THEN NULL ELSE %s END AS %s",
			q, c.classList(), q, q,
		)
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT ? OFFSET ?",
		strings.Join(parts, ", "), quoteIdent(table))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ExtractTable reads table in windows of windowSize rows and invokes emit for
// each non-empty window with the window's record batch and row offset. The
// record is owned by emit for the duration of the call; ExtractTable releases
// it afterwards. Windows are read strictly in offset order.
func ExtractTable(
	ctx context.Context,
	db *sql.DB,
	path, table string,
	windowSize int64,
	emit func(rec arrow.Record, offset int64) error,
) error {
	cols, err := TableColumns(ctx, db, table)
	if err != nil {
		return &QueryError{Path: path, Table: table, Err: err}
	}
	query := windowQuery(table, cols)

	for offset := int64(0); ; offset += windowSize {
		rec, n, err := readWindow(ctx, db, query, cols, windowSize, offset)
		if err != nil {
			return &QueryError{Path: path, Table: table, Err: err}
		}
		if n == 0 {
			rec.Release()
			return nil
		}
		err = emit(rec, offset)
		rec.Release()
		if err != nil {
			return err
		}
		if n < windowSize {
			return nil
		}
	}
}

// readWindow runs one bounded query and assembles the result into an Arrow
// record batch typed by the columns' storage classes.
func readWindow(
	ctx context.Context,
	db *sql.DB,
	query string,
	cols []Column,
	limit, offset int64,
) (arrow.Record, int64, error) {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.arrowType(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	var n int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, err
		}
		for i, v := range dest {
			if err := appendValue(b.Field(i), v); err != nil {
				return nil, 0, fmt.Errorf("column %s: %w", cols[i].Name, err)
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return b.NewRecord(), n, nil
}

// appendValue appends one sanitized driver value to the matching builder.
// Values arrive with the storage class guaranteed by the window query, so a
// type not handled here indicates a bug rather than dirty data.
func appendValue(fb array.Builder, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}
	switch b := fb.(type) {
	case *array.Int64Builder:
		i, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		b.Append(i)
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			b.Append(n)
		case int64:
			b.Append(float64(n))
		default:
			return fmt.Errorf("expected float64, got %T", v)
		}
	case *array.StringBuilder:
		switch s := v.(type) {
		case string:
			b.Append(s)
		case []byte:
			b.Append(string(s))
		default:
			return fmt.Errorf("expected string, got %T", v)
		}
	case *array.BinaryBuilder:
		switch s := v.(type) {
		case []byte:
			b.Append(s)
		case string:
			b.Append([]byte(s))
		default:
			return fmt.Errorf("expected bytes, got %T", v)
		}
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}

// MismatchCounts reports, per column, how many non-NULL values in table carry
// a storage class that disagrees with the declared affinity. These are the
// cells the extraction queries silently replace with NULL.
func MismatchCounts(ctx context.Context, db *sql.DB, table string) (map[string]int64, error) {
	cols, err := TableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(cols))
	for i, c := range cols {
		q := quoteIdent(c.Name)
		parts[i] = fmt.Sprintf(
			"SUM(CASE WHEN typeof(%s) NOT IN (%s) THEN 1 ELSE 0 END)",
			q, c.classList(),
		)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(parts, ", "), quoteIdent(table))

	counts := make([]sql.NullInt64, len(cols))
	ptrs := make([]any, len(cols))
	for i := range counts {
		ptrs[i] = &counts[i]
	}
	if err := db.QueryRowContext(ctx, query).Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("sqlite: mismatch counts %s: %w", table, err)
	}

	out := make(map[string]int64, len(cols))
	for i, c := range cols {
		if counts[i].Valid {
			out[c.Name] = counts[i].Int64
		}
	}
	return out, nil
}
