// Package alias parses the author-alias table of spec.md §4.6: a
// line-oriented file mapping a canonical author name to one or more
// alternate spellings (typically a pseudonym, or a Cyrillic/Latin name
// pair). It falls back to an embedded, gzip-compressed copy when no
// external file is configured, per spec.md §4.5 startup step 3.
package alias

import (
	"bufio"
	"bytes"
	"compress/gzip"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

//go:embed aliases.txt.gz
var embeddedAliases []byte

// Entry is one parsed alias record: a canonical name and the alternate
// spelling it maps to.
type Entry struct {
	Canonical string
	Alias     string
}

// Table is a loaded alias map, queryable in both directions (spec.md §4.5:
// "Latin aliases of Cyrillic canonical names are preserved for reverse
// lookup on output").
type Table struct {
	toCanonical map[string]string
	toAlias     map[string]string
	entries     []Entry
}

// Load reads an external alias file. Each line has tab-or-comma-separated
// fields `last1, first1, middle1, [3 ignored fields], last2, first2,
// [middle2]` — at least 8 fields; the canonical form is
// "<middle1> <last1> <first1>" and the alias form is
// "<middle2> <last2> <first2>" (both trimmed). Malformed lines are skipped.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("alias: open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

// LoadDefault parses the embedded gzip-compressed fallback table.
func LoadDefault() (*Table, error) {
	gz, err := gzip.NewReader(bytes.NewReader(embeddedAliases))
	if err != nil {
		return nil, fmt.Errorf("alias: open embedded table: %w", err)
	}
	defer gz.Close()
	return parse(gz)
}

func parse(r io.Reader) (*Table, error) {
	t := &Table{
		toCanonical: make(map[string]string),
		toAlias:     make(map[string]string),
	}

	scanner := bufio.NewScanner(bufio.NewReader(r))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitFields(line)
		if len(fields) < 8 {
			continue
		}

		last1, first1, middle1 := fields[0], fields[1], fields[2]
		last2, first2 := fields[6], fields[7]
		middle2 := ""
		if len(fields) >= 9 {
			middle2 = fields[8]
		}

		canonical := joinTrimmed(middle1, last1, first1)
		aliasName := joinTrimmed(middle2, last2, first2)
		if canonical == "" || aliasName == "" {
			continue
		}

		t.entries = append(t.entries, Entry{Canonical: canonical, Alias: aliasName})
		t.toCanonical[normKey(aliasName)] = canonical
		t.toAlias[normKey(canonical)] = aliasName
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("alias: scan: %w", err)
	}
	return t, nil
}

// splitFields splits a line on tabs if any are present, else on commas.
func splitFields(line string) []string {
	var raw []string
	if strings.Contains(line, "\t") {
		raw = strings.Split(line, "\t")
	} else {
		raw = strings.Split(line, ",")
	}
	fields := make([]string, len(raw))
	for i, f := range raw {
		fields[i] = strings.TrimSpace(f)
		if fields[i] == "-" {
			fields[i] = ""
		}
	}
	return fields
}

func joinTrimmed(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func normKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the canonical form of name if it is a known alias,
// otherwise name unchanged (spec.md §4.5 "Alias application").
func (t *Table) Resolve(name string) string {
	if canonical, ok := t.toCanonical[normKey(name)]; ok {
		return canonical
	}
	return name
}

// ResolveCyrillic applies Resolve only when name contains a Cyrillic
// letter, matching the policy guard in spec.md §4.5: alias substitution is
// only applied to Cyrillic author strings.
func (t *Table) ResolveCyrillic(name string) string {
	if !containsCyrillic(name) {
		return name
	}
	return t.Resolve(name)
}

// AliasOf returns the known alternate spelling of a canonical name, for
// reverse lookup on output, and ok=false if none is recorded.
func (t *Table) AliasOf(canonical string) (string, bool) {
	a, ok := t.toAlias[normKey(canonical)]
	return a, ok
}

// Entries returns every parsed alias record, in file order.
func (t *Table) Entries() []Entry {
	return t.entries
}

func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}
