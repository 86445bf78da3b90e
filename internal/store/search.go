package store

import (
	"fmt"
	"strings"

	"tinyopds/internal/book"
	"tinyopds/internal/soundex"
	"tinyopds/internal/translit"
)

// OpenSearchAuthors implements the OpenSearch author cascade of spec.md
// §4.4, tried in order and returning on the first stage that yields a hit:
//
//  1. Two-token pattern: FTS exact phrase, then the reversed phrase.
//  2. One-token pattern: FTS prefix search.
//  3. Latin input: transliterate to Cyrillic (GOST, then ISO 9) and retry
//     from the top.
//  4. Soundex of the last token against the authors' last-name soundex
//     index.
//  5. Otherwise, empty.
func (s *Store) OpenSearchAuthors(pattern string) ([]string, error) {
	return s.openSearchAuthors(pattern, true)
}

func (s *Store) openSearchAuthors(pattern string, allowTranslit bool) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	tokens := strings.Fields(pattern)

	if len(tokens) == 2 {
		if names, err := s.authorsFTSPhrase(tokens[0] + " " + tokens[1]); err != nil {
			return nil, err
		} else if len(names) > 0 {
			return names, nil
		}
		if names, err := s.authorsFTSPhrase(tokens[1] + " " + tokens[0]); err != nil {
			return nil, err
		} else if len(names) > 0 {
			return names, nil
		}
	}

	if len(tokens) == 1 {
		names, err := s.authorsFTSPrefix(tokens[0])
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			return names, nil
		}
	}

	if allowTranslit && translit.HasLatin(pattern) {
		// Back is latin->ru; the stored index is keyed by Cyrillic names, so
		// the retry must transliterate the query into Cyrillic, not leave it
		// untouched (Front is ru->latin and is a no-op on already-Latin
		// input).
		if names, err := s.openSearchAuthors(translit.Back(translit.GOST16876, pattern), false); err != nil {
			return nil, err
		} else if len(names) > 0 {
			return names, nil
		}
		if names, err := s.openSearchAuthors(translit.Back(translit.ISO9, pattern), false); err != nil {
			return nil, err
		} else if len(names) > 0 {
			return names, nil
		}
	}

	last := tokens[len(tokens)-1]
	var code string
	if translit.HasLatin(last) {
		code = soundex.Encode(last)
	} else {
		code = soundex.EncodeCyrillic(translit.GOST16876, last)
	}
	if code == "" {
		return nil, nil
	}
	return s.authorsBySoundex(code)
}

func (s *Store) authorsFTSPhrase(phrase string) ([]string, error) {
	rows, err := s.db.Query(`
SELECT a.name FROM authors_fts f
JOIN authors a ON a.rowid = f.rowid
WHERE authors_fts MATCH ?
ORDER BY rank`, ftsQuote(phrase))
	if err != nil {
		return nil, fmt.Errorf("store: authors fts phrase: %w", err)
	}
	return scanNames(rows)
}

func (s *Store) authorsFTSPrefix(token string) ([]string, error) {
	rows, err := s.db.Query(`
SELECT a.name FROM authors_fts f
JOIN authors a ON a.rowid = f.rowid
WHERE authors_fts MATCH ?
ORDER BY rank`, ftsQuote(token)+"*")
	if err != nil {
		return nil, fmt.Errorf("store: authors fts prefix: %w", err)
	}
	return scanNames(rows)
}

func (s *Store) authorsBySoundex(code string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM authors WHERE last_name_soundex = ? ORDER BY search_name`, code)
	if err != nil {
		return nil, fmt.Errorf("store: authors by soundex: %w", err)
	}
	return scanNames(rows)
}

func scanNames(rows interface {
	Next() bool
	Scan(...any) error
	Close() error
	Err() error
}) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SearchBooks implements the book-title search of spec.md §4.4: FTS MATCH
// with a '*' suffix on every token, ordered with a bonus for titles that
// start with the literal pattern, then BM25 rank, then title; falls back to
// a LIKE-anywhere scan when FTS returns nothing, and on input containing
// any Latin letter additionally retries with transliterated variants.
func (s *Store) SearchBooks(pattern string) ([]*book.Book, error) {
	return s.searchBooks(pattern, true)
}

func (s *Store) searchBooks(pattern string, allowTranslit bool) ([]*book.Book, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}

	if books, err := s.booksFTS(pattern); err != nil {
		return nil, err
	} else if len(books) > 0 {
		return books, nil
	}

	if books, err := s.BooksByTitleSubstring(pattern); err != nil {
		return nil, err
	} else if len(books) > 0 {
		return books, nil
	}

	if allowTranslit && translit.HasLatin(pattern) {
		// Back (latin->ru), not Front (ru->latin, a no-op here): the stored
		// titles are Cyrillic, so the retry must transliterate the Latin
		// query into Cyrillic to have any chance of matching.
		if books, err := s.searchBooks(translit.Back(translit.GOST16876, pattern), false); err != nil {
			return nil, err
		} else if len(books) > 0 {
			return books, nil
		}
		if books, err := s.searchBooks(translit.Back(translit.ISO9, pattern), false); err != nil {
			return nil, err
		} else if len(books) > 0 {
			return books, nil
		}
	}

	return nil, nil
}

func (s *Store) booksFTS(pattern string) ([]*book.Book, error) {
	tokens := strings.Fields(pattern)
	if len(tokens) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = ftsQuote(t) + "*"
	}
	matchQuery := strings.Join(quoted, " ")

	return s.queryBooks(`
JOIN books_fts f ON f.rowid = b.rowid
WHERE books_fts MATCH ?
ORDER BY (b.title NOT LIKE ? || '%'), bm25(books_fts), b.title`, matchQuery, pattern)
}

// ftsQuote wraps a token in double quotes and escapes embedded quotes, so
// that arbitrary user input cannot break out of an FTS5 MATCH string or
// contaminate the query with FTS operators.
func ftsQuote(token string) string {
	return `"` + strings.ReplaceAll(token, `"`, `""`) + `"`
}
