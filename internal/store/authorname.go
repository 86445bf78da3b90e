package store

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticFold strips combining marks after a canonical NFD decomposition,
// so accented variants (e.g. "Čapek" vs "Capek")
// collate together under OpenSearch's author cascade (spec.md §4.4).
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SplitAuthorName implements OQ-1's resolution of the author-name-parsing
// open question: two-token names are Lastname Firstname (the dominant
// convention observed in the corpus); three-token names are Lastname
// Firstname Middlename; a single token becomes LastName alone; and longer
// names keep the first token as LastName and the last as MiddleName glue,
// with everything in between joined back together as FirstName.
func SplitAuthorName(full string) (first, middle, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", "", ""
	case 1:
		return "", "", fields[0]
	case 2:
		return fields[1], "", fields[0]
	case 3:
		return fields[1], fields[2], fields[0]
	default:
		return strings.Join(fields[1:len(fields)-1], " "), fields[len(fields)-1], fields[0]
	}
}

// normalizeSearchName folds an author or sequence name to a
// case-insensitive, diacritic-insensitive comparison key for prefix/substring
// lookups, so "Cafe" matches a stored "Café".
func normalizeSearchName(name string) string {
	folded, _, err := transform.String(diacriticFold, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}
	return strings.ToLower(folded)
}

// RelativizeFileName implements OQ-3: a Book's FileName is always stored
// relative to the configured library root, with forward slashes, so that
// moving the library directory does not invalidate stored paths. An empty
// root, a path that does not lie under the root (including one that is
// already relative to it), or one that can't be made relative (e.g.
// mismatched absolute/relative forms) passes through with only the slash
// normalization applied, so calling this more than once on the same path
// is idempotent.
func RelativizeFileName(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = path
	}
	return filepath.ToSlash(rel)
}
