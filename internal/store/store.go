// Package store implements the Schema & Store and Repository layers of
// spec.md §4.3/§4.4: a modernc.org/sqlite-backed relational schema with
// FTS5 search tables, migrated with the teacher's PRAGMA user_version
// idiom, and CRUD/batch/navigation/search operations over it.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tinyopds/internal/book"
)

// Store owns the database connection. It is safe for concurrent use; SQLite
// serializes writers internally and the busy timeout absorbs the rest
// (spec.md §5).
type Store struct {
	db   *sql.DB
	root string // library root every stored/queried FileName is relative to (OQ-3)
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pragmas, and migrates the schema to currentSchemaVersion. libraryRoot is
// the configured library root (spec.md §6 "LibraryPath") every FileName
// passed to a filename-keyed operation is relativized against (OQ-3); pass
// "" to store/query FileNames exactly as given.
func Open(path, libraryRoot string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON; PRAGMA busy_timeout=10000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: configure pragmas: %w", err)
	}

	s := &Store{db: db, root: libraryRoot}
	if err := s.migrateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is the keep-alive probe spec.md §5 runs on a 30s timer; on failure
// the caller is expected to reopen the connection and reapply pragmas.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// --- row <-> book.Book mapping ---

const unitSep = "\x1f" // within-list separator for GROUP_CONCAT columns
const recordSep = "\x1e" // sequence name/number separator

const bookSelectColumns = `
    b.id, b.document_id_trusted, b.version, b.file_name, b.title, b.language,
    b.book_date, b.document_date, b.annotation, b.document_size, b.added_date,
    b.last_download_date, b.book_type, b.duplicate_key, b.replaced_by_id, b.content_hash,
    (SELECT group_concat(author_name, '` + unitSep + `') FROM
        (SELECT author_name FROM book_authors WHERE book_id = b.id ORDER BY position)) AS authors_cat,
    (SELECT group_concat(translator_name, '` + unitSep + `') FROM
        (SELECT translator_name FROM book_translators WHERE book_id = b.id ORDER BY position)) AS translators_cat,
    (SELECT group_concat(tag, '` + unitSep + `') FROM
        (SELECT tag FROM book_genres WHERE book_id = b.id ORDER BY tag)) AS genres_cat,
    (SELECT group_concat(name || '` + recordSep + `' || number_in_sequence, '` + unitSep + `') FROM
        (SELECT name, number_in_sequence FROM book_sequences WHERE book_id = b.id ORDER BY position)) AS sequences_cat
`

type bookRow struct {
	ID                string
	DocumentIDTrusted int64
	Version           float64
	FileName          string
	Title             string
	Language          string
	BookDate          sql.NullInt64
	DocumentDate      sql.NullInt64
	Annotation        string
	DocumentSize      int64
	AddedDate         int64
	LastDownloadDate  sql.NullInt64
	BookType          int64
	DuplicateKey      string
	ReplacedByID      string
	ContentHash       string
	AuthorsCat        sql.NullString
	TranslatorsCat    sql.NullString
	GenresCat         sql.NullString
	SequencesCat      sql.NullString
}

func (r bookRow) toBook() *book.Book {
	b := &book.Book{
		ID:                r.ID,
		DocumentIDTrusted: r.DocumentIDTrusted != 0,
		Version:           r.Version,
		FileName:          r.FileName,
		Title:             r.Title,
		Language:          r.Language,
		Annotation:        r.Annotation,
		DocumentSize:      uint64(r.DocumentSize),
		AddedDate:         time.Unix(r.AddedDate, 0).UTC(),
		BookType:          book.Type(r.BookType),
		DuplicateKey:      r.DuplicateKey,
		ReplacedByID:      r.ReplacedByID,
		ContentHash:       r.ContentHash,
	}
	if r.BookDate.Valid {
		b.BookDate = time.Unix(r.BookDate.Int64, 0).UTC()
	}
	if r.DocumentDate.Valid {
		b.DocumentDate = time.Unix(r.DocumentDate.Int64, 0).UTC()
	}
	if r.LastDownloadDate.Valid {
		t := time.Unix(r.LastDownloadDate.Int64, 0).UTC()
		b.LastDownloadDate = &t
	}
	b.Authors = splitCat(r.AuthorsCat)
	b.Translators = splitCat(r.TranslatorsCat)
	b.Genres = splitCat(r.GenresCat)
	b.Sequences = parseSequences(r.SequencesCat)
	return b
}

func splitCat(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return splitSep(ns.String, unitSep)
}

func parseSequences(ns sql.NullString) []book.Sequence {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	parts := splitSep(ns.String, unitSep)
	seqs := make([]book.Sequence, 0, len(parts))
	for _, p := range parts {
		name, num := splitOnce(p, recordSep)
		var n int
		fmt.Sscanf(num, "%d", &n)
		seqs = append(seqs, book.Sequence{Name: name, NumberInSequence: n})
	}
	return seqs
}

func splitSep(s, sep string) []string {
	var out []string
	start := 0
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			out = append(out, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}
	out = append(out, s[start:])
	return out
}

func splitOnce(s, sep string) (string, string) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):]
		}
	}
	return s, ""
}

// queryBooks runs a SELECT with clause appended after "FROM books b" and
// hydrates every row, in the teacher's queryBooks style.
func (s *Store) queryBooks(clause string, args ...any) ([]*book.Book, error) {
	q := `SELECT` + bookSelectColumns + ` FROM books b ` + clause
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query books: %w", err)
	}
	defer rows.Close()

	var out []*book.Book
	for rows.Next() {
		var r bookRow
		if err := rows.Scan(
			&r.ID, &r.DocumentIDTrusted, &r.Version, &r.FileName, &r.Title, &r.Language,
			&r.BookDate, &r.DocumentDate, &r.Annotation, &r.DocumentSize, &r.AddedDate,
			&r.LastDownloadDate, &r.BookType, &r.DuplicateKey, &r.ReplacedByID, &r.ContentHash,
			&r.AuthorsCat, &r.TranslatorsCat, &r.GenresCat, &r.SequencesCat,
		); err != nil {
			return nil, err
		}
		out = append(out, r.toBook())
	}
	return out, rows.Err()
}

func (s *Store) countBooks(clause string, args ...any) (int, error) {
	q := `SELECT COUNT(*) FROM books b ` + clause
	var n int
	err := s.db.QueryRow(q, args...).Scan(&n)
	return n, err
}
