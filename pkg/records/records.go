// Package records defines the tagged record type passed between conversion
// stages. A Record starts life as a discovered source file, may gain an
// in-memory Arrow table after reading, and may gain a destination path (plus
// content checksum) after a columnar artifact is written. Stage functions
// consume and produce specific shapes; a Record is never mutated after it is
// handed to the next stage.
package records

import (
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/zeebo/xxh3"
)

// Record describes one unit of source data moving through the pipeline.
type Record struct {
	// SourcePath is the path of the originally discovered file. Immutable.
	SourcePath string

	// TableName is the embedded-database table this record was extracted
	// from. Empty for delimited sources.
	TableName string

	// Table holds the in-memory columnar representation, when present.
	Table arrow.Table

	// DestPath is the written columnar artifact, when present.
	DestPath string

	// Checksum is the xxh3 content hash of the file at DestPath.
	Checksum uint64
}

// HasTable reports whether the record carries an in-memory table.
func (r *Record) HasTable() bool { return r.Table != nil }

// HasDest reports whether the record references a written artifact.
func (r *Record) HasDest() bool { return r.DestPath != "" }

// Release frees the in-memory table, if any. Safe to call more than once.
func (r *Record) Release() {
	if r.Table != nil {
		r.Table.Release()
		r.Table = nil
	}
}

// Group maps a grouping key (filename, ignoring parent directories) to the
// ordered records discovered under it. Order is directory-traversal order;
// the first member of a group fixes the canonical schema for concatenation.
type Group map[string][]*Record

// ChecksumFile computes the xxh3 hash of the file contents at path.
func ChecksumFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
