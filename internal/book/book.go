// Package book implements the Book Record of spec.md §4.1: an in-memory
// representation of a single catalog entry with derived keys (duplicate
// key, content hash, archive priority) and a pairwise comparator used by
// the duplicate detector (internal/dedup) to rank near-duplicates.
package book

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Type classifies a Book by its source file extension.
type Type int

const (
	TypeUnknown Type = iota
	TypeFB2
	TypeEPUB
)

// TypeFromFileName derives a Type from a (possibly "archive@entry") relative
// file name, looking at the extension of the entry itself.
func TypeFromFileName(fileName string) Type {
	name := fileName
	if i := strings.LastIndex(name, "@"); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fb2":
		return TypeFB2
	case ".epub":
		return TypeEPUB
	default:
		return TypeUnknown
	}
}

// Sequence is one series membership: a Book's Sequences are an ordered set
// of these (spec.md §3, "Sequence").
type Sequence struct {
	Name             string
	NumberInSequence int
}

// Book is the in-memory record described in spec.md §3. Zero value is not
// meaningful; use New to construct one from a relative file name.
type Book struct {
	ID                string
	DocumentIDTrusted bool

	Version      float64
	FileName     string
	Title        string
	Language     string
	BookDate     time.Time
	DocumentDate time.Time
	Annotation   string
	DocumentSize uint64

	AddedDate        time.Time
	LastDownloadDate *time.Time

	BookType     Type
	DuplicateKey string
	ReplacedByID string // empty = not replaced
	ContentHash  string

	Authors     []string
	Translators []string
	Genres      []string
	Sequences   []Sequence
}

// New constructs a Book from a relative file name (possibly
// "archive@entry"), deriving BookType from its extension. The caller must
// still call SetID and populate Title/Authors/Genres before the Book is
// valid (spec.md §3 invariant ii).
func New(fileName string) *Book {
	return &Book{
		FileName: fileName,
		BookType: TypeFromFileName(fileName),
		AddedDate: time.Now(),
	}
}

// IsValid reports whether the Book satisfies spec.md §3 invariant (ii):
// a non-empty UTF-8 Title and at least one Author and one Genre.
func (b *Book) IsValid() bool {
	if strings.TrimSpace(b.Title) == "" {
		return false
	}
	if !utf8.ValidString(b.Title) {
		return false
	}
	if len(b.Authors) == 0 {
		return false
	}
	if len(b.Genres) == 0 {
		return false
	}
	return true
}

// IsReplaced reports whether ReplacedByID is set (spec.md §3 invariant iii:
// active books are exactly those with ReplacedByID empty).
func (b *Book) IsReplaced() bool {
	return b.ReplacedByID != ""
}

// PrimarySequence returns the first Sequence membership, or the zero value
// and false if the Book belongs to none. GenerateDuplicateKey uses only the
// primary sequence (spec.md §4.1 step 4).
func (b *Book) PrimarySequence() (Sequence, bool) {
	if len(b.Sequences) == 0 {
		return Sequence{}, false
	}
	return b.Sequences[0], true
}

// FirstAuthor returns the first author's raw name, or "" if there are none.
// Per OQ-1, this raw string (not the Lastname/Firstname split the
// repository performs) is what GenerateDuplicateKey normalizes.
func (b *Book) FirstAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}
