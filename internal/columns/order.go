// Package columns implements the canonical output column ordering and header
// normalization shared by the columnar writer and the concatenator.
package columns

import (
	"sort"
	"strings"
)

// Identifier-style columns sort before everything else, in this fixed order.
var sortFirst = []string{
	"tablenumber",
	"metadata_tablenumber",
	"imagenumber",
	"metadata_imagenumber",
	"objectnumber",
	"object_number",
}

// metadataMarker places any column containing it right after the identifiers.
const metadataMarker = "metadata"

// Compartment-prefixed columns sort after metadata, in this fixed order.
var sortLater = []string{
	"image",
	"cytoplasm",
	"cells",
	"nuclei",
}

// Rank returns the sort rank of a column name. It is a pure function of the
// lowercased name: identifier columns first (by their position in sortFirst),
// metadata-marked columns next, compartment-prefixed columns next (by prefix
// position in sortLater), and all remaining columns last.
func Rank(name string) int {
	lower := strings.ToLower(name)

	for i, v := range sortFirst {
		if lower == v {
			return i
		}
	}
	if strings.Contains(lower, metadataMarker) {
		return len(sortFirst)
	}
	for i, v := range sortLater {
		if strings.HasPrefix(lower, v) {
			return len(sortFirst) + 1 + i
		}
	}
	return len(sortFirst) + len(sortLater) + 1
}

// Order returns names sorted into the canonical output order. The sort is
// stable: names of equal rank keep their input order, so the result is
// deterministic for identical input column sets.
func Order(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool {
		return Rank(out[i]) < Rank(out[j])
	})
	return out
}
