package translit_test

import (
	"testing"

	"tinyopds/internal/translit"
)

func TestFront_GOST_Example(t *testing.T) {
	got := translit.Front(translit.GOST16876, "Достоевский")
	want := "Dostoevskiy"
	if got != want {
		t.Errorf("Front(GOST, Достоевский) = %q, want %q", got, want)
	}
}

func TestFront_ISO9_Example(t *testing.T) {
	got := translit.Front(translit.ISO9, "Достоевский")
	want := "Dostoevskij"
	if got != want {
		t.Errorf("Front(ISO9, Достоевский) = %q, want %q", got, want)
	}
}

func TestRoundTrip_PerLetter(t *testing.T) {
	alphabet := []rune("абвгдежзийклмнопрстуфхцчшщъыьэюя")
	for _, sys := range []translit.System{translit.GOST16876, translit.ISO9} {
		for _, ru := range alphabet {
			lat := translit.Front(sys, string(ru))
			back := translit.Back(sys, lat)
			if back != string(ru) {
				t.Errorf("system %v: round-trip %q -> %q -> %q, want %q", sys, string(ru), lat, back, string(ru))
			}
		}
	}
}

func TestRoundTrip_ISO9_Sentence(t *testing.T) {
	// ISO9 is strictly bijective per letter, so whole-sentence round trips hold.
	original := "преступление и наказание"
	lat := translit.Front(translit.ISO9, original)
	back := translit.Back(translit.ISO9, lat)
	if back != original {
		t.Errorf("ISO9 sentence round trip: got %q, want %q", back, original)
	}
}

func TestFront_PassesThroughUnknownRunes(t *testing.T) {
	got := translit.Front(translit.GOST16876, "Hello123!")
	if got != "Hello123!" {
		t.Errorf("Front should pass through non-Cyrillic text unchanged, got %q", got)
	}
}

func TestHasLatin(t *testing.T) {
	if !translit.HasLatin("Dostoevsky") {
		t.Errorf("HasLatin(Dostoevsky) = false, want true")
	}
	if translit.HasLatin("Достоевский") {
		t.Errorf("HasLatin(Достоевский) = true, want false")
	}
}
