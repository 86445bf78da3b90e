package soundex_test

import (
	"testing"

	"tinyopds/internal/soundex"
	"tinyopds/internal/translit"
)

func TestEncode_ClassicExamples(t *testing.T) {
	cases := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Pfister":  "P236",
	}
	for word, want := range cases {
		if got := soundex.Encode(word); got != want {
			t.Errorf("Encode(%q) = %q, want %q", word, got, want)
		}
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := soundex.Encode("123"); got != "" {
		t.Errorf("Encode(digits only) = %q, want empty", got)
	}
}

func TestEncodeCyrillic_MatchesTransliteratedLatin(t *testing.T) {
	ru := "Толстой"
	lat := translit.Front(translit.GOST16876, ru)
	want := soundex.Encode(lat)
	got := soundex.EncodeCyrillic(translit.GOST16876, ru)
	if got != want {
		t.Errorf("EncodeCyrillic(%q) = %q, want %q (Encode of transliterated form)", ru, got, want)
	}
}
