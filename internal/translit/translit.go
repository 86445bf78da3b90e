// Package translit implements the two Cyrillic<->Latin transliteration
// systems spec.md §4.7 requires: GOST 16876-71 (digraph-based, the common
// "practical" transliteration) and ISO 9:1995 (single-grapheme, diacritic
// based, genuinely bijective per letter). Both directions (Front: ru->latin,
// Back: latin->ru) are total functions over the supported alphabet; runes
// outside it pass through unchanged.
//
// Front operates rune by rune, so a digraph's capitalization mirrors the
// source letter's case only (e.g. "Ж" -> "Zh", not "ZH"). "Достоевский"
// becomes "Dostoevskiy" under GOST16876 and "Dostoevskij" under ISO9.
package translit

import (
	"strings"
	"unicode"
)

// System selects which transliteration table Front/Back use.
type System int

const (
	// GOST16876 is GOST 16876-71, the digraph-based practical system
	// (ж->zh, щ->shch, ю->yu, ...). Two-letter Cyrillic sequences that
	// happen to spell the same digraph as a single letter (e.g. "тс")
	// are not distinguishable from "ц" on the Back path; this is the
	// same ambiguity the real standard has without apostrophe separators.
	GOST16876 System = iota

	// ISO9 is ISO 9:1995, a strict one-grapheme-per-letter system using
	// diacritics (ж->ž, щ->ŝ, ъ->ʺ, ...). It is fully bijective, so
	// Front/Back round-trip for arbitrary text, not just single letters.
	ISO9
)

// table holds one system's lowercase Cyrillic -> Latin mapping. Values must
// be pairwise distinct so Back can invert the mapping unambiguously (modulo
// the documented GOST digraph caveat).
type table map[rune]string

var gostTable = table{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "''", 'ы': "yi", 'ь': "'", 'э': "eh", 'ю': "yu", 'я': "ya",
}

var iso9Table = table{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "ë",
	'ж': "ž", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "č", 'ш': "š", 'щ': "ŝ",
	'ъ': "ʺ", 'ы': "y", 'ь': "ʹ", 'э': "è", 'ю': "û", 'я': "â",
}

func tableFor(sys System) table {
	if sys == ISO9 {
		return iso9Table
	}
	return gostTable
}

// reverseEntry is one (latin key, cyrillic letter) pair used for Back,
// sorted by decreasing key length so matching is maximal-munch.
type reverseEntry struct {
	key string
	ru  rune
}

var gostReverse = buildReverse(gostTable)
var iso9Reverse = buildReverse(iso9Table)

func buildReverse(t table) []reverseEntry {
	entries := make([]reverseEntry, 0, len(t))
	for ru, lat := range t {
		entries = append(entries, reverseEntry{key: lat, ru: ru})
	}
	// Stable longest-first ordering: simple insertion sort, table is tiny.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j].key) > len(entries[j-1].key); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}

func reverseFor(sys System) []reverseEntry {
	if sys == ISO9 {
		return iso9Reverse
	}
	return gostReverse
}

// Front transliterates Cyrillic text to Latin using the given system.
// Characters outside the mapped alphabet (including existing Latin text,
// punctuation, and digits) pass through unchanged.
func Front(sys System, s string) string {
	t := tableFor(sys)
	var b strings.Builder
	for _, r := range s {
		lower := unicode.ToLower(r)
		if lat, ok := t[lower]; ok {
			if unicode.IsUpper(r) {
				lat = capitalizeFirst(lat)
			}
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Back transliterates Latin text back to Cyrillic using the given system.
// It scans left to right taking the longest matching key at each position
// (case-insensitively); unmatched runes pass through unchanged.
func Back(sys System, s string) string {
	entries := reverseFor(sys)
	runes := []rune(s)
	lowerRunes := make([]rune, len(runes))
	for i, r := range runes {
		lowerRunes[i] = unicode.ToLower(r)
	}

	var b strings.Builder
	for i := 0; i < len(runes); {
		matched := false
		for _, e := range entries {
			keyRunes := []rune(e.key)
			n := len(keyRunes)
			if i+n > len(runes) {
				continue
			}
			if string(lowerRunes[i:i+n]) != e.key {
				continue
			}
			ru := e.ru
			if unicode.IsUpper(runes[i]) {
				ru = unicode.ToUpper(ru)
			}
			b.WriteRune(ru)
			i += n
			matched = true
			break
		}
		if !matched {
			b.WriteRune(runes[i])
			i++
		}
	}
	return b.String()
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// HasLatin reports whether s contains at least one basic Latin letter,
// used by the OpenSearch cascade (spec.md §4.4) to decide whether a
// transliteration retry is worth attempting.
func HasLatin(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
