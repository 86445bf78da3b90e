package book

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNew_SetsTypeFromFileName(t *testing.T) {
	cases := map[string]Type{
		"novel.fb2":                TypeFB2,
		"novel.FB2":                TypeFB2,
		"novel.epub":               TypeEPUB,
		"archive.zip@inner.fb2":    TypeFB2,
		"archive.zip@inner.epub":   TypeEPUB,
		"readme.txt":               TypeUnknown,
	}
	for name, want := range cases {
		b := New(name)
		if b.BookType != want {
			t.Errorf("New(%q).BookType = %v, want %v", name, b.BookType, want)
		}
		if b.FileName != name {
			t.Errorf("New(%q).FileName = %q, want %q", name, b.FileName, name)
		}
	}
}

func TestIsValid(t *testing.T) {
	b := New("x.fb2")
	if b.IsValid() {
		t.Fatal("zero-value book should not be valid")
	}
	b.Title = "Title"
	if b.IsValid() {
		t.Fatal("book with only a title should not be valid")
	}
	b.Authors = []string{"Author"}
	if b.IsValid() {
		t.Fatal("book with no genre should not be valid")
	}
	b.Genres = []string{"prose"}
	if !b.IsValid() {
		t.Fatal("book with title, author and genre should be valid")
	}
}

func TestIsValid_RejectsInvalidUTF8Title(t *testing.T) {
	b := New("x.fb2")
	b.Title = "Broken \xff\xfe title"
	b.Authors = []string{"Author"}
	b.Genres = []string{"prose"}
	if b.IsValid() {
		t.Fatal("book with a non-UTF-8 title should not be valid (spec.md §3 invariant ii)")
	}
}

func TestIsReplaced(t *testing.T) {
	b := New("x.fb2")
	if b.IsReplaced() {
		t.Fatal("fresh book should not be replaced")
	}
	b.ReplacedByID = "some-id"
	if !b.IsReplaced() {
		t.Fatal("book with ReplacedByID set should be replaced")
	}
}

func TestPrimarySequence(t *testing.T) {
	b := New("x.fb2")
	if _, ok := b.PrimarySequence(); ok {
		t.Fatal("book with no sequences should report ok=false")
	}
	b.Sequences = []Sequence{{Name: "First"}, {Name: "Second"}}
	seq, ok := b.PrimarySequence()
	if !ok || seq.Name != "First" {
		t.Fatalf("PrimarySequence() = %+v, %v, want First, true", seq, ok)
	}
}

func TestSetID_TrustedCandidates(t *testing.T) {
	b := New("x.fb2")
	b.SetID("FBD-1A2B3C")
	if !b.DocumentIDTrusted || b.ID != "FBD-1A2B3C" {
		t.Errorf("FBD candidate: ID=%q trusted=%v, want FBD-1A2B3C true", b.ID, b.DocumentIDTrusted)
	}

	b = New("x.fb2")
	b.SetID("123456")
	if !b.DocumentIDTrusted || b.ID != "123456" {
		t.Errorf("large integer candidate: ID=%q trusted=%v, want 123456 true", b.ID, b.DocumentIDTrusted)
	}

	b = New("x.fb2")
	b.SetID("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	if !b.DocumentIDTrusted {
		t.Errorf("well-formed UUID candidate should be trusted")
	}
}

func TestSetID_UntrustedCandidatesDeriveFromFileName(t *testing.T) {
	cases := []string{
		"",
		"100000",                                 // not > 100000
		"99",                                      // small integer
		"not-an-id-at-all",                        // neither FBD, integer, nor UUID
		"00000000-0000-0000-0000-000000000000",    // placeholder UUID
		"ffffffff-ffff-ffff-ffff-ffffffffffff",    // placeholder UUID
	}
	for _, candidate := range cases {
		b := New("somefile.fb2")
		b.SetID(candidate)
		if b.DocumentIDTrusted {
			t.Errorf("SetID(%q): expected untrusted, got trusted ID %q", candidate, b.ID)
		}
		want := DeriveID("somefile.fb2")
		if b.ID != want {
			t.Errorf("SetID(%q): ID = %q, want derived %q", candidate, b.ID, want)
		}
	}
}

func TestDeriveID_Deterministic(t *testing.T) {
	a := DeriveID("same/path.fb2")
	c := DeriveID("same/path.fb2")
	if a != c {
		t.Fatalf("DeriveID should be deterministic: %q != %q", a, c)
	}
	if DeriveID("other/path.fb2") == a {
		t.Fatal("DeriveID should differ for different file names")
	}
}

func TestGenerateDuplicateKey_Idempotent(t *testing.T) {
	b := &Book{
		Title:    "War and Peace",
		Authors:  []string{"Leo Tolstoy"},
		Language: "en",
		Sequences: []Sequence{{Name: "Collected Works", NumberInSequence: 3}},
	}
	first := b.GenerateDuplicateKey()
	second := b.GenerateDuplicateKey()
	if first != second {
		t.Fatalf("GenerateDuplicateKey not idempotent: %q != %q", first, second)
	}
	if b.DuplicateKey != first {
		t.Fatalf("b.DuplicateKey = %q, want %q", b.DuplicateKey, first)
	}
}

func TestGenerateDuplicateKey_SameCanonicalFormYieldsSameKey(t *testing.T) {
	a := &Book{Title: "The Master and Margarita", Authors: []string{"Mikhail Bulgakov"}, Language: "ru"}
	c := &Book{Title: "  THE MASTER AND MARGARITA  ", Authors: []string{"mikhail bulgakov"}, Language: "RU"}
	if a.GenerateDuplicateKey() != c.GenerateDuplicateKey() {
		t.Fatal("case/whitespace variants should normalize to the same duplicate key")
	}
}

func TestGenerateDuplicateKey_DifferentSequenceNumberYieldsDifferentKey(t *testing.T) {
	base := func(n int) *Book {
		return &Book{
			Title:     "Book Title",
			Authors:   []string{"Some Author"},
			Language:  "en",
			Sequences: []Sequence{{Name: "Series", NumberInSequence: n}},
		}
	}
	a := base(1)
	c := base(2)
	if a.GenerateDuplicateKey() == c.GenerateDuplicateKey() {
		t.Fatal("different sequence numbers should yield different duplicate keys")
	}
}

func TestGenerateContentHash_RestoresPositionAndIsStable(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 2000) // 16000 bytes > 10KiB prefix
	r := bytes.NewReader(content)

	if _, err := r.Seek(5, 0); err != nil {
		t.Fatal(err)
	}
	h1 := (&Book{}).GenerateContentHash(r)
	if h1 == "" {
		t.Fatal("expected non-empty content hash")
	}
	pos, err := r.Seek(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 5 {
		t.Fatalf("reader position after GenerateContentHash = %d, want 5 (restored)", pos)
	}

	r2 := bytes.NewReader(content)
	h2 := (&Book{}).GenerateContentHash(r2)
	if h1 != h2 {
		t.Fatalf("content hash should be stable across calls: %q != %q", h1, h2)
	}
}

func TestGenerateContentHash_ShortStream(t *testing.T) {
	r := bytes.NewReader([]byte("short"))
	b := &Book{}
	h := b.GenerateContentHash(r)
	if h == "" {
		t.Fatal("expected a hash even for a stream shorter than the prefix size")
	}
	if b.ContentHash != h {
		t.Fatalf("b.ContentHash = %q, want %q", b.ContentHash, h)
	}
}

type failingSeeker struct{}

func (failingSeeker) Read(p []byte) (int, error)     { return 0, errFailingSeek }
func (failingSeeker) Seek(int64, int) (int64, error) { return 0, errFailingSeek }

var errFailingSeek = &seekError{}

type seekError struct{}

func (*seekError) Error() string { return "seek failed" }

func TestGenerateContentHash_ReturnsEmptyOnSeekFailure(t *testing.T) {
	b := &Book{ContentHash: "preexisting"}
	if got := b.GenerateContentHash(failingSeeker{}); got != "" {
		t.Fatalf("GenerateContentHash on failing seeker = %q, want empty", got)
	}
	if b.ContentHash != "preexisting" {
		t.Fatalf("ContentHash mutated on failure: %q", b.ContentHash)
	}
}

func TestGetArchivePriority(t *testing.T) {
	cases := map[string]int{
		"fb2-000123-000456.zip@1.fb2": 456,
		"some/dir/fb2-1-2.zip":        2,
		"plain.fb2":                   0,
		"":                            0,
	}
	for name, want := range cases {
		b := New(name)
		if got := b.GetArchivePriority(); got != want {
			t.Errorf("GetArchivePriority(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestNormalizeTitle_BracketWrapped(t *testing.T) {
	got := normalizeTitle("(Annotated Edition)")
	want := "annotated edition"
	if got != want {
		t.Errorf("normalizeTitle(bracketed) = %q, want %q", got, want)
	}
}

func TestNormalizeTitle_VolumeMarkers(t *testing.T) {
	cases := map[string]string{
		"The Saga, vol 2":     "the saga vol2",
		"The Saga, Volume II": "the saga vol2",
		"Сага, том 2":         "сага vol2",
	}
	for in, want := range cases {
		if got := normalizeTitle(in); got != want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeTitle_NoMarker_NoVol0(t *testing.T) {
	got := normalizeTitle("A Plain Title")
	if strings.Contains(got, "vol0") {
		t.Errorf("normalizeTitle(no marker) = %q, should never synthesize vol0", got)
	}
}

func TestNormalizeTitle_TranslatorAndEditionMarkersStripped(t *testing.T) {
	got := normalizeTitle("Great Novel trans by Smith 2nd edition")
	if strings.Contains(got, "smith") || strings.Contains(got, "edition") {
		t.Errorf("normalizeTitle should strip translator/edition markers, got %q", got)
	}
}

func TestNormalizeTitle_CollectionSentinel(t *testing.T) {
	got := normalizeTitle("Complete Collection")
	if !strings.HasSuffix(got, "_collection_") {
		t.Errorf("normalizeTitle(collection) = %q, want _collection_ suffix", got)
	}
}

func TestNormalizeTitle_ShortResultFallsBack(t *testing.T) {
	got := normalizeTitle("...")
	if got == "" {
		t.Error("normalizeTitle should not return empty for a non-empty input")
	}
}

func TestCompareTo_SkewSymmetric(t *testing.T) {
	a := &Book{BookType: TypeFB2, DocumentDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), DocumentSize: 1000}
	c := &Book{BookType: TypeEPUB, DocumentDate: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), DocumentSize: 2000}
	if a.CompareTo(c) != -c.CompareTo(a) {
		t.Fatalf("CompareTo not skew-symmetric: a.CompareTo(c)=%d, c.CompareTo(a)=%d", a.CompareTo(c), c.CompareTo(a))
	}
}

func TestCompareTo_ArchivePriorityWins(t *testing.T) {
	a := New("fb2-000001-000100.zip@1.fb2")
	c := New("fb2-000001-000200.zip@1.fb2")
	if got := a.CompareTo(c); got != -10 {
		t.Errorf("older archive vs newer archive CompareTo = %d, want -10", got)
	}
	if got := c.CompareTo(a); got != 10 {
		t.Errorf("newer archive vs older archive CompareTo = %d, want 10", got)
	}
}

func TestCompareTo_TrustedEqualIDsCompareByVersionAndDate(t *testing.T) {
	a := &Book{ID: "same-id", DocumentIDTrusted: true, Version: 2.0, DocumentDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := &Book{ID: "same-id", DocumentIDTrusted: true, Version: 1.0, DocumentDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	if got := a.CompareTo(c); got != 5 {
		t.Errorf("higher version with same trusted ID: CompareTo = %d, want 5", got)
	}
}

func TestCompareTo_FB2PreferredOverEPUB(t *testing.T) {
	a := &Book{BookType: TypeFB2}
	c := &Book{BookType: TypeEPUB}
	if got := a.CompareTo(c); got != 2 {
		t.Errorf("FB2 vs EPUB CompareTo = %d, want 2", got)
	}
}

func TestIsDuplicateOf_TrustedIDMatch(t *testing.T) {
	a := &Book{ID: "x", DocumentIDTrusted: true}
	c := &Book{ID: "x", DocumentIDTrusted: true}
	if !a.IsDuplicateOf(c) {
		t.Error("books sharing a trusted ID should be duplicates")
	}
}

func TestIsDuplicateOf_ContentHashMatch(t *testing.T) {
	a := &Book{ContentHash: "deadbeef"}
	c := &Book{ContentHash: "deadbeef"}
	if !a.IsDuplicateOf(c) {
		t.Error("books sharing a non-empty content hash should be duplicates")
	}
}

func TestIsDuplicateOf_DuplicateKeyRequiresMatchingTranslators(t *testing.T) {
	a := &Book{DuplicateKey: "k", Translators: []string{"Jones"}}
	c := &Book{DuplicateKey: "k", Translators: []string{"Jones"}}
	if !a.IsDuplicateOf(c) {
		t.Error("same duplicate key and same translator set should be duplicates")
	}

	d := &Book{DuplicateKey: "k", Translators: []string{"Smith"}}
	if a.IsDuplicateOf(d) {
		t.Error("same duplicate key with differing translator sets should not be duplicates")
	}

	e := &Book{DuplicateKey: "k"}
	f := &Book{DuplicateKey: "k"}
	if !e.IsDuplicateOf(f) {
		t.Error("same duplicate key with both translator sets empty should be duplicates")
	}
}

func TestIsDuplicateOf_NoSignalsMatch(t *testing.T) {
	a := &Book{ID: "a"}
	c := &Book{ID: "c"}
	if a.IsDuplicateOf(c) {
		t.Error("books with no matching signal should not be duplicates")
	}
}
