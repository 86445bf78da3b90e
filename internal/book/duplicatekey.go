package book

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// GenerateDuplicateKey computes the MD5 digest described in spec.md §4.1
// and stores it in b.DuplicateKey, also returning it. It is a pure
// function of (normalized Title, normalized first Author, Language,
// primary Sequence+number); the translator set is not part of the key. It
// is idempotent
// (spec.md §8: GenerateDuplicateKey(B) == B.DuplicateKey after calling it).
func (b *Book) GenerateDuplicateKey() string {
	title := normalizeTitle(b.Title)
	author := normalizeAuthor(b.FirstAuthor())
	lang := normalizeLanguage(b.Language)
	seq := normalizeSequence(b)

	canonical := fmt.Sprintf("%s|%s|%s|%s", title, author, lang, seq)
	sum := md5.Sum([]byte(canonical))
	key := hex.EncodeToString(sum[:])
	b.DuplicateKey = key
	return key
}

// TranslatorSignature returns the normalized, sorted, underscore-joined
// translator list (spec.md §4.1 step 5). GenerateDuplicateKey does not
// include it, and the duplicate predicate does not consult it.
func (b *Book) TranslatorSignature() string {
	return normalizeTranslators(b.Translators)
}

// GenerateContentHash computes the MD5 digest of the first 10KiB (or the
// whole stream if shorter) of r, restoring r's original position
// afterwards, and stores it in b.ContentHash. Returns "" (and leaves
// ContentHash untouched) if reading fails, per spec.md §4.1's "failures
// return absent".
func (b *Book) GenerateContentHash(r io.ReadSeeker) string {
	const prefixSize = 10 * 1024

	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return ""
	}
	defer r.Seek(start, io.SeekStart) //nolint:errcheck

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ""
	}

	buf := make([]byte, prefixSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}

	sum := md5.Sum(buf[:n])
	hash := hex.EncodeToString(sum[:])
	b.ContentHash = hash
	return hash
}

var archivePriorityPattern = regexp.MustCompile(`fb2-(\d+)-(\d+)\.zip`)

// GetArchivePriority extracts the second range number from an
// "fb2-NNNNNN-MMMMMM.zip" archive name embedded in FileName, returning 0
// if the pattern is absent (spec.md §4.1 "Archive priority").
func (b *Book) GetArchivePriority() int {
	m := archivePriorityPattern.FindStringSubmatch(b.FileName)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0
	}
	return n
}

// --- normalization helpers (spec.md §4.1 step 1-5) ---

var (
	bracketPairs = [][2]rune{{'(', ')'}, {'[', ']'}, {'{', '}'}, {'<', '>'}}

	// Volume markers: "vol", "volume", "tom"/"том", "part"/"часть", "book"/"книга"
	// followed by an Arabic numeral, a Roman numeral, or a spelled-out
	// ordinal/cardinal in either script. Go's RE2 \b is an ASCII word
	// boundary and never fires next to Cyrillic letters, so the boundary
	// is spelled out explicitly (and captured, to be restored around the
	// canonical replacement) instead of relying on \b.
	volumeNumberPattern = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(?:vol(?:ume)?|tom|том|part|часть|book|книга)\.?\s*(\d+)($|[^\p{L}\p{N}])`)
	volumeRomanPattern  = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(?:vol(?:ume)?|tom|том|part|часть|book|книга)\.?\s*([ivxlcdm]+)($|[^\p{L}\p{N}])`)

	translatorMarkerPattern = regexp.MustCompile(`(?i)\(?(?:trans(?:lated)?\s*(?:by)?|пер(?:евод)?\.?)\s+[a-zа-яё]+\)?`)
	editionMarkerPattern    = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(\d+)(?:-?(?:st|nd|rd|th|-е|я))?\s*(?:ed(?:ition)?\.?|изд(?:ание)?\.?)($|[^\p{L}\p{N}])`)

	dashRunes  = []rune{'‐', '‑', '‒', '–', '—', '―', '−'}
	quoteRunes = []rune{'‘', '’', '“', '”', '«', '»', '`'}

	punctuationPattern  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
	collectionKeywords  = []string{"сборник", "антология", "collection", "anthology", "compilation", "собрание сочинений"}
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"один": 1, "два": 2, "три": 3, "четыре": 4, "пять": 5,
	"шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
	"первый": 1, "второй": 2, "третий": 3, "четвертый": 4, "пятый": 5,
}

// normalizeTitle implements spec.md §4.1 step 1.
func normalizeTitle(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	if lower == "" {
		return ""
	}

	if stripped, ok := stripOuterBrackets(lower); ok {
		return collapseWhitespace(stripped)
	}

	cleaned := lower
	cleaned = replaceVolumeMarkers(cleaned)
	cleaned = translatorMarkerPattern.ReplaceAllString(cleaned, " ")
	cleaned = editionMarkerPattern.ReplaceAllStringFunc(cleaned, func(m string) string {
		sub := editionMarkerPattern.FindStringSubmatch(m)
		return sub[1] + " " + sub[len(sub)-1]
	})
	cleaned = collapseDashesAndQuotes(cleaned)
	cleaned = punctuationPattern.ReplaceAllString(cleaned, " ")
	cleaned = collapseWhitespace(cleaned)

	if containsAny(cleaned, collectionKeywords) {
		cleaned = strings.TrimSpace(cleaned) + "_collection_"
	}

	if len([]rune(cleaned)) < 3 {
		// Fall back to a minimally cleaned original per spec.md §4.1 step 1:
		// lowercase and whitespace-collapsed only, no marker stripping.
		fallback := collapseWhitespace(lower)
		if len([]rune(fallback)) < 3 {
			// As a last resort, fold to ASCII so very short non-Latin
			// titles still yield a usable (if lossy) key component.
			fallback = slug.Make(fallback)
		}
		return fallback
	}
	return cleaned
}

func stripOuterBrackets(s string) (string, bool) {
	r := []rune(s)
	if len(r) < 2 {
		return s, false
	}
	for _, pair := range bracketPairs {
		if r[0] == pair[0] && r[len(r)-1] == pair[1] {
			return string(r[1 : len(r)-1]), true
		}
	}
	return s, false
}

// replaceVolumeMarkers maps every volume/part/book marker (Arabic numeral,
// Roman numeral, or spelled-out ordinal/cardinal) to a canonical "vol<N>"
// token (spec.md §4.1 step 1, OQ-2: never synthesize a vol0 when no marker
// is present).
func replaceVolumeMarkers(s string) string {
	s = volumeNumberPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := volumeNumberPattern.FindStringSubmatch(m)
		return sub[1] + "vol" + sub[2] + sub[3]
	})
	s = volumeRomanPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := volumeRomanPattern.FindStringSubmatch(m)
		if n := romanToInt(sub[2]); n > 0 {
			return sub[1] + fmt.Sprintf("vol%d", n) + sub[3]
		}
		return m
	})
	for word, n := range ordinalWords {
		re := regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + word + `($|[^\p{L}\p{N}])\s*(?:volume|part|book|том|часть|книга)?`)
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			sub := re.FindStringSubmatch(m)
			return sub[1] + fmt.Sprintf("vol%d", n) + sub[2]
		})
	}
	return s
}

func romanToInt(s string) int {
	s = strings.ToLower(s)
	vals := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := vals[s[i]]
		if !ok {
			return 0
		}
		if i+1 < len(s) {
			if nv, ok := vals[s[i+1]]; ok && v < nv {
				total -= v
				continue
			}
		}
		total += v
	}
	return total
}

func collapseDashesAndQuotes(s string) string {
	r := []rune(s)
	for i, c := range r {
		for _, d := range dashRunes {
			if c == d {
				r[i] = '-'
			}
		}
		for _, q := range quoteRunes {
			if c == q {
				r[i] = '\''
			}
		}
	}
	return string(r)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// normalizeAuthor implements spec.md §4.1 step 2.
func normalizeAuthor(author string) string {
	lower := strings.ToLower(author)
	lower = punctuationPattern.ReplaceAllString(lower, " ")
	return collapseWhitespace(lower)
}

// normalizeLanguage implements spec.md §4.1 step 3.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "unknown"
	}
	return lang
}

// normalizeSequence implements spec.md §4.1 step 4: the normalized primary
// sequence name, with a "_N" suffix only when a positive ordinal exists
// (OQ-2: no blanket suffix for sequence-less books).
func normalizeSequence(b *Book) string {
	seq, ok := b.PrimarySequence()
	if !ok {
		return ""
	}
	name := collapseWhitespace(punctuationPattern.ReplaceAllString(strings.ToLower(seq.Name), " "))
	if seq.NumberInSequence > 0 {
		return fmt.Sprintf("%s_%d", name, seq.NumberInSequence)
	}
	return name
}

// normalizeTranslators implements spec.md §4.1 step 5.
func normalizeTranslators(translators []string) string {
	if len(translators) == 0 {
		return ""
	}
	norm := make([]string, len(translators))
	for i, t := range translators {
		norm[i] = collapseWhitespace(punctuationPattern.ReplaceAllString(strings.ToLower(t), " "))
	}
	sort.Strings(norm)
	return strings.Join(norm, "_")
}
