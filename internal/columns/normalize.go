package columns

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// NormalizeHeader canonicalizes raw delimited-file header cells: a UTF-8 BOM
// on the first cell is removed, surrounding whitespace is trimmed, and each
// name is Unicode-normalized (NFD, combining marks stripped, NFC) so that
// headers which render identically compare equal across exports.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	for i, raw := range header {
		if i == 0 {
			raw = strings.TrimPrefix(raw, utf8BOM)
		}
		raw = strings.TrimSpace(raw)
		if normalized, _, err := transform.String(t, raw); err == nil {
			raw = normalized
		}
		out[i] = raw
	}
	return out
}
