// Package source discovers and groups measurement export files.
//
// Files are gathered by a recursive walk of a root path, filtered by a
// case-insensitive set of target stems, and grouped by full filename so that
// same-named files in sibling directories (one per plate, typically) form a
// single logical dataset.
package source

import (
	"io/fs"
	"path/filepath"
	"strings"

	"cytotable/pkg/records"
)

// Gather walks root recursively and groups eligible files by filename.
//
// A file is eligible when its extension-stripped, lowercased stem appears in
// targets, or when targets is empty (accept all). Database files are always
// eligible: their datasets are named by embedded tables, so the target filter
// applies to table names later, not to the filename. The returned group map
// preserves traversal order within each group; filepath.WalkDir visits
// entries in lexical order, so grouping is deterministic for a given tree.
//
// Gather returns a NoInputError when no eligible file is found.
func Gather(root string, targets []string) (records.Group, error) {
	want := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		want[strings.ToLower(t)] = struct{}{}
	}

	groups := records.Group{}
	var found int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(want) > 0 && !isDatabaseSuffix(Suffix(d.Name())) {
			if _, ok := want[strings.ToLower(Stem(d.Name()))]; !ok {
				return nil
			}
		}
		key := d.Name()
		groups[key] = append(groups[key], &records.Record{SourcePath: path})
		found++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == 0 {
		abs, absErr := filepath.Abs(root)
		if absErr != nil {
			abs = root
		}
		return nil, &NoInputError{Path: abs}
	}
	return groups, nil
}

// isDatabaseSuffix reports whether suffix (lowercased, no dot) names an
// embedded database file.
func isDatabaseSuffix(suffix string) bool {
	switch suffix {
	case "sqlite", "db":
		return true
	}
	return false
}

// Stem returns the filename without its final extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Suffix returns the lowercased final extension of name without the leading
// dot, or the empty string when name has none.
func Suffix(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}
