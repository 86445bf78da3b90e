package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/maruel/natural"

	"tinyopds/internal/book"
)

// Authors returns every distinct author name, naturally sorted (so that
// "Book 2" sorts before "Book 10", matching the teacher's navigation
// ordering).
func (s *Store) Authors() ([]string, error) {
	return s.distinctNames(`SELECT name FROM authors ORDER BY search_name`)
}

// AuthorsByPrefix returns authors whose name begins with prefix
// (case-insensitive).
func (s *Store) AuthorsByPrefix(prefix string) ([]string, error) {
	return s.distinctNames(
		`SELECT name FROM authors WHERE search_name LIKE ? || '%' ORDER BY search_name`,
		normalizeSearchName(prefix),
	)
}

// Sequences returns every distinct sequence name.
func (s *Store) Sequences() ([]string, error) {
	return s.distinctNames(`SELECT name FROM sequences ORDER BY search_name`)
}

// SequencesByPrefix returns sequences whose name begins with prefix.
func (s *Store) SequencesByPrefix(prefix string) ([]string, error) {
	return s.distinctNames(
		`SELECT name FROM sequences WHERE search_name LIKE ? || '%' ORDER BY search_name`,
		normalizeSearchName(prefix),
	)
}

// SequenceCount pairs a sequence name with the number of active books in it.
type SequenceCount struct {
	Name  string
	Count int
}

// SequencesWithCounts returns every sequence together with the count of
// active (non-replaced) books it contains, for navigation listings that
// show "Series Name (12)".
func (s *Store) SequencesWithCounts() ([]SequenceCount, error) {
	rows, err := s.db.Query(`
SELECT sq.name, COUNT(b.id)
FROM sequences sq
LEFT JOIN book_sequences bs ON bs.name = sq.name
LEFT JOIN books b ON b.id = bs.book_id AND b.replaced_by_id = ''
GROUP BY sq.name
ORDER BY sq.search_name
`)
	if err != nil {
		return nil, fmt.Errorf("store: sequences with counts: %w", err)
	}
	defer rows.Close()

	var out []SequenceCount
	for rows.Next() {
		var sc SequenceCount
		if err := rows.Scan(&sc.Name, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) distinctNames(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: distinct names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(out))
	return out, nil
}

// BooksByAuthor returns the active books by the exact author name, ordered
// by title.
func (s *Store) BooksByAuthor(name string) ([]*book.Book, error) {
	return s.queryBooks(`
JOIN book_authors ba ON ba.book_id = b.id
WHERE ba.author_name = ? AND b.replaced_by_id = ''
ORDER BY b.title`, name)
}

// BooksBySequence returns the active books in a sequence, ordered by their
// NumberInSequence (spec.md §4.4 navigation: "ordered by NumberInSequence").
func (s *Store) BooksBySequence(name string) ([]*book.Book, error) {
	return s.queryBooks(`
JOIN book_sequences bs ON bs.book_id = b.id
WHERE bs.name = ? AND b.replaced_by_id = ''
ORDER BY bs.number_in_sequence`, name)
}

// BooksByGenre returns the active books tagged with the given genre.
func (s *Store) BooksByGenre(tag string) ([]*book.Book, error) {
	return s.queryBooks(`
JOIN book_genres bg ON bg.book_id = b.id
WHERE bg.tag = ? AND b.replaced_by_id = ''
ORDER BY b.title`, tag)
}

// BooksByTitleSubstring returns active books whose title contains substr
// (case-insensitive).
func (s *Store) BooksByTitleSubstring(substr string) ([]*book.Book, error) {
	return s.queryBooks(`
WHERE b.title LIKE '%' || ? || '%' ESCAPE '\' AND b.replaced_by_id = ''
ORDER BY b.title`, escapeLike(substr))
}

// BooksByFileNamePrefix returns active books whose FileName begins with
// prefix; used to enumerate the members of a known archive.
func (s *Store) BooksByFileNamePrefix(prefix string) ([]*book.Book, error) {
	return s.queryBooks(`
WHERE b.file_name LIKE ? || '%' ESCAPE '\' AND b.replaced_by_id = ''
ORDER BY b.file_name`, escapeLike(prefix))
}

// NewBooksSince returns active books added at or after cutoff, newest first.
func (s *Store) NewBooksSince(cutoff time.Time) ([]*book.Book, error) {
	return s.queryBooks(`
WHERE b.added_date >= ? AND b.replaced_by_id = ''
ORDER BY b.added_date DESC`, cutoff.Unix())
}

// PaginatedBooks is the result shape for NewBooksPaginated (spec.md §4.5
// "new-books query").
type PaginatedBooks struct {
	Books           []*book.Book
	TotalBooks      int
	TotalPages      int
	CurrentPage     int
	PageSize        int
	HasPreviousPage bool
	HasNextPage     bool
}

// NewBooksPaginated returns one page of active books added at or after
// cutoff, ordered by date (newest first) or by title when sortByTitle is
// true. page is 1-based.
func (s *Store) NewBooksPaginated(cutoff time.Time, page, pageSize int, sortByTitle bool) (PaginatedBooks, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total, err := s.countBooks(`WHERE b.added_date >= ? AND b.replaced_by_id = ''`, cutoff.Unix())
	if err != nil {
		return PaginatedBooks{}, err
	}

	order := "b.added_date DESC"
	if sortByTitle {
		order = "b.title"
	}

	offset := (page - 1) * pageSize
	books, err := s.queryBooks(fmt.Sprintf(`
WHERE b.added_date >= ? AND b.replaced_by_id = ''
ORDER BY %s
LIMIT ? OFFSET ?`, order), cutoff.Unix(), pageSize, offset)
	if err != nil {
		return PaginatedBooks{}, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	return PaginatedBooks{
		Books:           books,
		TotalBooks:      total,
		TotalPages:      totalPages,
		CurrentPage:     page,
		PageSize:        pageSize,
		HasPreviousPage: page > 1,
		HasNextPage:     page < totalPages,
	}, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
