// Package soundex implements the classic English 4-code Soundex phonetic
// encoding (spec.md §4.7), used both directly on Latin author surnames and,
// for Cyrillic input, after a preliminary GOST transliteration so that
// phonetic fallback search works across mixed Latin/Cyrillic corpora
// (spec.md §4.4 step 4).
package soundex

import (
	"strings"
	"unicode"

	"tinyopds/internal/translit"
)

// codes maps each Latin consonant class to its Soundex digit. Vowels
// (a, e, i, o, u), 'h', 'w', and 'y' have no digit and act as separators.
var codes = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// Encode returns the 4-character Soundex code for s (first letter
// uppercased, followed by three digits, zero-padded). Non-letter runes are
// ignored. An empty or all-non-letter input yields "".
func Encode(s string) string {
	letters := onlyLetters(s)
	if len(letters) == 0 {
		return ""
	}

	first := unicode.ToUpper(letters[0])
	var digits strings.Builder
	digits.WriteByte(byte(first))

	prevCode := codeOf(letters[0])
	for _, r := range letters[1:] {
		c := codeOf(r)
		if c != 0 && c != prevCode {
			digits.WriteByte(c)
		}
		switch {
		case isVowelLike(r):
			// Vowels (and Y) break consonant runs: a repeated consonant
			// code after a vowel is coded again.
			prevCode = 0
		case isHOrW(r):
			// H/W are transparent: they neither reset nor update prevCode,
			// so "Ashcraft" codes as if the h weren't there.
		default:
			prevCode = c
		}
		if digits.Len() >= 4 {
			break
		}
	}

	out := digits.String()
	for len(out) < 4 {
		out += "0"
	}
	return out[:4]
}

// EncodeCyrillic transliterates ru (via sys) before computing the Soundex
// code, so Cyrillic surnames can be matched against a Latin-built index and
// vice versa (spec.md §4.7).
func EncodeCyrillic(sys translit.System, ru string) string {
	return Encode(translit.Front(sys, ru))
}

func codeOf(r rune) byte {
	if c, ok := codes[unicode.ToLower(r)]; ok {
		return c
	}
	return 0
}

func isVowelLike(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func isHOrW(r rune) bool {
	switch unicode.ToLower(r) {
	case 'h', 'w':
		return true
	}
	return false
}

func onlyLetters(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) {
			out = append(out, r)
		}
	}
	return out
}
