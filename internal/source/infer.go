package source

import (
	"sort"
	"strings"

	"cytotable/pkg/records"
)

// InferDatatype determines the single source datatype (file suffix) across
// the gathered group keys, or validates the requested one against them.
//
// With no requested datatype, exactly one distinct suffix must exist;
// otherwise an AmbiguousDatatypeError is returned. A requested datatype that
// is absent from the discovered suffixes yields an UnavailableDatatypeError.
func InferDatatype(groups records.Group, requested string) (string, error) {
	seen := make(map[string]struct{}, len(groups))
	for key := range groups {
		seen[Suffix(key)] = struct{}{}
	}

	suffixes := make([]string, 0, len(seen))
	for s := range seen {
		suffixes = append(suffixes, s)
	}
	sort.Strings(suffixes)

	if requested == "" {
		switch len(suffixes) {
		case 0:
			return "", &NoInputError{}
		case 1:
			return suffixes[0], nil
		default:
			return "", &AmbiguousDatatypeError{Suffixes: suffixes}
		}
	}

	requested = strings.ToLower(requested)
	if _, ok := seen[requested]; !ok {
		return "", &UnavailableDatatypeError{Requested: requested, Suffixes: suffixes}
	}
	return requested, nil
}

// FilterByDatatype returns a new group map holding only the keys whose suffix
// matches datatype. Groups of other suffixes belong to a conversion that was
// not requested and are dropped.
func FilterByDatatype(groups records.Group, datatype string) records.Group {
	out := records.Group{}
	for key, recs := range groups {
		if Suffix(key) == datatype {
			out[key] = recs
		}
	}
	return out
}
