package source

import (
	"fmt"
	"strings"
)

// NoInputError indicates that a gather pass found zero eligible files under
// the provided root path.
type NoInputError struct {
	Path string
}

func (e *NoInputError) Error() string {
	return fmt.Sprintf("no input data to process at path: %s", e.Path)
}

// AmbiguousDatatypeError indicates that more than one source suffix was
// discovered and none was requested, so the datatype cannot be chosen safely.
type AmbiguousDatatypeError struct {
	Suffixes []string
}

func (e *AmbiguousDatatypeError) Error() string {
	return fmt.Sprintf("detected more than one source datatype: %s", strings.Join(e.Suffixes, ", "))
}

// UnavailableDatatypeError indicates that a requested datatype is absent from
// the discovered source suffixes.
type UnavailableDatatypeError struct {
	Requested string
	Suffixes  []string
}

func (e *UnavailableDatatypeError) Error() string {
	return fmt.Sprintf("requested datatype %q not found within sources; detected: %s",
		e.Requested, strings.Join(e.Suffixes, ", "))
}
