// Package cytotable converts heterogeneous per-experiment measurement
// exports, flat delimited files or tables embedded in a SQLite database
// file, into a normalized columnar artifact set.
//
// The pipeline per record group is: gather related files by filename, infer
// or validate the source datatype, read delimited files (or extract
// embedded-database tables in bounded row windows with type-mismatch
// sanitization), write columnar artifacts in the canonical domain column
// order, and optionally concatenate a group's artifacts into one
// schema-consistent dataset. Independent groups and file-level operations
// run on a bounded worker pool.
package cytotable

import (
	"context"
	"fmt"
	"strings"

	"cytotable/internal/source"
	"cytotable/pkg/records"
)

// DestFormat selects the destination representation.
type DestFormat string

const (
	// DestParquet writes one Parquet artifact per group (or per file when
	// concatenation is disabled).
	DestParquet DestFormat = "parquet"

	// DestArrow keeps results as in-memory Arrow tables on the returned
	// records. Only meaningful for delimited sources.
	DestArrow DestFormat = "arrow"
)

// DefaultTargets are the compartment datasets converted when the caller asks
// for the conventional target set.
var DefaultTargets = []string{"image", "cells", "nuclei", "cytoplasm"}

// DefaultWindowSize is the extraction window row count used when Options
// leaves WindowSize unset.
const DefaultWindowSize = 50_000

// Options configures one conversion run. The zero value is not usable;
// SourcePath, DestPath (for Parquet output), and DestFormat are required.
type Options struct {
	// SourcePath is the root directory scanned for source files.
	SourcePath string

	// DestPath is the directory artifacts are written to. Required for
	// DestParquet.
	DestPath string

	// DestFormat selects Parquet files or in-memory Arrow tables.
	DestFormat DestFormat

	// SourceDatatype optionally pins the source suffix (e.g. "csv",
	// "sqlite"). When empty the datatype is inferred and must be
	// unambiguous.
	SourceDatatype string

	// Targets filters discovered files by extension-stripped, lowercased
	// stem. Empty accepts every file. See DefaultTargets.
	Targets []string

	// Concat merges each group's artifacts into one dataset.
	Concat bool

	// Workers bounds the pool for file-level read/extract/write work.
	// Values below 1 fall back to the number of CPUs.
	Workers int

	// WindowSize is the extraction window row count for embedded-database
	// tables. Values below 1 fall back to DefaultWindowSize.
	WindowSize int64

	// Strategy selects how group tasks are executed. Nil means Parallel.
	Strategy Strategy
}

// Convert runs the conversion pipeline and returns a mapping from group name
// to its final artifact records. With DestParquet the records reference
// written files (path plus content checksum); with DestArrow they carry
// in-memory tables the caller must Release.
//
// Groups are independent: a failure aborts the affected group's remaining
// work while groups already in flight complete best-effort. The first group
// error is returned alongside the results of the groups that succeeded.
func Convert(ctx context.Context, opts Options) (records.Group, error) {
	switch opts.DestFormat {
	case DestParquet:
		if opts.DestPath == "" {
			return nil, fmt.Errorf("cytotable: DestPath required for parquet output")
		}
	case DestArrow:
	default:
		return nil, fmt.Errorf("cytotable: unknown destination format %q", opts.DestFormat)
	}

	groups, err := source.Gather(opts.SourcePath, opts.Targets)
	if err != nil {
		return nil, err
	}

	datatype, err := source.InferDatatype(groups, opts.SourceDatatype)
	if err != nil {
		return nil, err
	}
	groups = source.FilterByDatatype(groups, datatype)

	r := newRunner(opts)

	if isDatabase(datatype) {
		if opts.DestFormat == DestArrow {
			return nil, fmt.Errorf("cytotable: arrow destination requires delimited sources, got %q", datatype)
		}
		groups, err = r.expandDatabases(ctx, groups, datatype)
		if err != nil {
			return nil, err
		}
	}

	return r.run(ctx, groups, datatype)
}

// isDatabase reports whether the datatype names an embedded database file.
func isDatabase(datatype string) bool {
	switch strings.ToLower(datatype) {
	case "sqlite", "db":
		return true
	}
	return false
}
