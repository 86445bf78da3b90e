package store

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"tinyopds/internal/book"
	"tinyopds/internal/soundex"
	"tinyopds/internal/translit"
)

// AddBook inserts b and all its relationship rows in one transaction,
// upserting the authors/sequences dictionaries along the way (spec.md §4.4
// "CRUD"). It is an update-in-place if a row with b.ID already exists:
// junction tables are rewritten wholesale, as spec.md requires.
//
// b.FileName is relativized against the store's configured library root
// (OQ-3) before it is persisted, the same way GetBookByFileName and
// DeleteBookByFileName relativize their lookup key, so the two paths can
// never disagree about what "the same file" means regardless of whether a
// caller passes an absolute or already-relative path.
func (s *Store) AddBook(b *book.Book) error {
	b.FileName = RelativizeFileName(s.root, b.FileName)
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertBook(tx, b); err != nil {
		return err
	}
	if err := rewriteBookRelations(tx, b); err != nil {
		return err
	}
	for _, name := range b.Authors {
		if err := upsertAuthor(tx, name); err != nil {
			return err
		}
	}
	for _, seq := range b.Sequences {
		if err := upsertSequence(tx, seq.Name); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func upsertBook(tx *sql.Tx, b *book.Book) error {
	_, err := tx.Exec(`
INSERT INTO books (
    id, document_id_trusted, version, file_name, title, language,
    book_date, document_date, annotation, document_size, added_date,
    last_download_date, book_type, duplicate_key, replaced_by_id, content_hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    document_id_trusted=excluded.document_id_trusted, version=excluded.version,
    file_name=excluded.file_name, title=excluded.title, language=excluded.language,
    book_date=excluded.book_date, document_date=excluded.document_date,
    annotation=excluded.annotation, document_size=excluded.document_size,
    added_date=excluded.added_date, last_download_date=excluded.last_download_date,
    book_type=excluded.book_type, duplicate_key=excluded.duplicate_key,
    replaced_by_id=excluded.replaced_by_id, content_hash=excluded.content_hash
`,
		b.ID, boolToInt(b.DocumentIDTrusted), b.Version, b.FileName, b.Title, b.Language,
		nullableUnix(b.BookDate), nullableUnix(b.DocumentDate), b.Annotation, int64(b.DocumentSize),
		b.AddedDate.Unix(), nullableUnixPtr(b.LastDownloadDate), int64(b.BookType), b.DuplicateKey,
		b.ReplacedByID, b.ContentHash,
	)
	return err
}

func rewriteBookRelations(tx *sql.Tx, b *book.Book) error {
	for _, stmt := range []string{
		`DELETE FROM book_authors WHERE book_id = ?`,
		`DELETE FROM book_translators WHERE book_id = ?`,
		`DELETE FROM book_genres WHERE book_id = ?`,
		`DELETE FROM book_sequences WHERE book_id = ?`,
	} {
		if _, err := tx.Exec(stmt, b.ID); err != nil {
			return err
		}
	}

	for i, name := range b.Authors {
		if _, err := tx.Exec(`INSERT INTO book_authors(book_id, author_name, position) VALUES (?, ?, ?)`, b.ID, name, i); err != nil {
			return err
		}
	}
	for i, name := range b.Translators {
		if _, err := tx.Exec(`INSERT INTO book_translators(book_id, translator_name, position) VALUES (?, ?, ?)`, b.ID, name, i); err != nil {
			return err
		}
	}
	for _, tag := range b.Genres {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO book_genres(book_id, tag) VALUES (?, ?)`, b.ID, tag); err != nil {
			return err
		}
	}
	for i, seq := range b.Sequences {
		if _, err := tx.Exec(`INSERT INTO book_sequences(book_id, name, number_in_sequence, position) VALUES (?, ?, ?, ?)`,
			b.ID, seq.Name, seq.NumberInSequence, i); err != nil {
			return err
		}
	}
	return nil
}

func upsertAuthor(tx *sql.Tx, name string) error {
	first, middle, last := SplitAuthorName(name)
	searchName := normalizeSearchName(name)
	// soundex.Encode only codes Latin letters correctly; a Cyrillic surname
	// still produces a non-empty (garbage) code from it, since it keeps any
	// Unicode letter, so the gate must be "is this Latin", not "is this
	// empty" — otherwise EncodeCyrillic's transliterating pass is
	// unreachable and the Soundex fallback search (spec.md §4.4 step 4)
	// never matches a Cyrillic surname against a Latin query.
	var lastSoundex string
	if translit.HasLatin(last) {
		lastSoundex = soundex.Encode(last)
	} else {
		lastSoundex = soundex.EncodeCyrillic(translit.GOST16876, last)
	}
	translitName := translit.Front(translit.GOST16876, name) + "|" + translit.Front(translit.ISO9, name)

	_, err := tx.Exec(`
INSERT INTO authors (name, first_name, middle_name, last_name, search_name, last_name_soundex, name_translit)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING
`, name, first, middle, last, searchName, lastSoundex, translitName)
	return err
}

func upsertSequence(tx *sql.Tx, name string) error {
	_, err := tx.Exec(`
INSERT INTO sequences(name, search_name) VALUES (?, ?)
ON CONFLICT(name) DO NOTHING
`, name, normalizeSearchName(name))
	return err
}

// BatchResult is the outcome of AddBooksBatch (spec.md §4.4 "Batch insert").
type BatchResult struct {
	TotalProcessed int
	Added          int
	Duplicates     int
	Errors         int
	FB2Count       int
	EPUBCount      int
	ProcessingTime time.Duration
	ErrorMessages  []string
}

// AddBooksBatch inserts books in bulk, relaxing durability pragmas for the
// duration of the batch and always restoring them afterwards — even on
// failure — via a multierr-aggregated cleanup step (spec.md §4.4, §5
// "guaranteed-finally"). An individual book's failure is counted and does
// not abort the batch.
func (s *Store) AddBooksBatch(books []*book.Book) (result BatchResult, err error) {
	start := time.Now()
	result.TotalProcessed = len(books)

	if _, pragmaErr := s.db.Exec(`PRAGMA synchronous=OFF; PRAGMA journal_mode=MEMORY;`); pragmaErr != nil {
		return result, fmt.Errorf("store: relax pragmas for batch: %w", pragmaErr)
	}
	defer func() {
		_, restoreErr := s.db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA journal_mode=WAL;`)
		err = multierr.Append(err, restoreErr)
	}()

	for _, b := range books {
		if addErr := s.AddBook(b); addErr != nil {
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("%s: %v", b.FileName, addErr))
			continue
		}
		if b.IsReplaced() {
			result.Duplicates++
		} else {
			result.Added++
		}
		switch b.BookType {
		case book.TypeFB2:
			result.FB2Count++
		case book.TypeEPUB:
			result.EPUBCount++
		}
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

// GetBookByID returns the active or replaced Book with the given ID, or nil
// if none exists.
func (s *Store) GetBookByID(id string) (*book.Book, error) {
	books, err := s.queryBooks(`WHERE b.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return books[0], nil
}

// GetBookByFileName looks up a Book by its exact FileName, relativized
// against the store's configured library root the same way AddBook
// relativizes it before persisting (OQ-3).
func (s *Store) GetBookByFileName(fileName string) (*book.Book, error) {
	books, err := s.queryBooks(`WHERE b.file_name = ?`, RelativizeFileName(s.root, fileName))
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return books[0], nil
}

// BookExists reports whether a Book with the given ID is present.
func (s *Store) BookExists(id string) (bool, error) {
	n, err := s.countBooks(`WHERE b.id = ?`, id)
	return n > 0, err
}

// DeleteBook removes a Book (and, via ON DELETE CASCADE, its relationship
// rows) by ID.
func (s *Store) DeleteBook(id string) error {
	_, err := s.db.Exec(`DELETE FROM books WHERE id = ?`, id)
	return err
}

// DeleteBookByFileName removes a Book by its exact FileName, relativized
// against the store's configured library root the same way AddBook and
// GetBookByFileName do (OQ-3).
func (s *Store) DeleteBookByFileName(fileName string) error {
	_, err := s.db.Exec(`DELETE FROM books WHERE file_name = ?`, RelativizeFileName(s.root, fileName))
	return err
}

// MarkReplaced sets ReplacedByID on an existing Book row (spec.md §3
// invariant iii, §4.2 duplicate resolution).
func (s *Store) MarkReplaced(id, replacedByID string) error {
	_, err := s.db.Exec(`UPDATE books SET replaced_by_id = ? WHERE id = ?`, replacedByID, id)
	return err
}

// --- dedup.Prober ---

// BookByTrustedID implements dedup.Prober: find an existing Book whose
// trusted ID matches.
func (s *Store) BookByTrustedID(id string) (*book.Book, error) {
	books, err := s.queryBooks(`WHERE b.id = ? AND b.document_id_trusted = 1 LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return books[0], nil
}

// BookByContentHash implements dedup.Prober.
func (s *Store) BookByContentHash(hash string) (*book.Book, error) {
	books, err := s.queryBooks(`WHERE b.content_hash = ? AND b.content_hash != '' LIMIT 1`, hash)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, nil
	}
	return books[0], nil
}

// BooksByDuplicateKey implements dedup.Prober.
func (s *Store) BooksByDuplicateKey(key string) ([]*book.Book, error) {
	return s.queryBooks(`WHERE b.duplicate_key = ? AND b.duplicate_key != ''`, key)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func nullableUnixPtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}
