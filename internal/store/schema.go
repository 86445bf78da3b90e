package store

import (
	"database/sql"
	"fmt"
)

// currentSchemaVersion is the latest schema version this binary expects.
// Bump this and append a migration to schemaMigrations whenever the schema
// changes, following the teacher's PRAGMA user_version idiom.
const currentSchemaVersion = 2

type schemaMigration struct {
	version int
	apply   func(db *sql.DB) error
}

var schemaMigrations = []schemaMigration{
	{version: 1, apply: migration1},
	{version: 2, apply: migration2},
}

// migration1 creates the normalized schema of spec.md §4.3: the books table
// and its junction tables (authors, translators, genres, sequences), the
// author/sequence dictionaries with their precomputed search/phonetic
// columns, the FTS5 shadow tables, the triggers that keep them in sync
// (including on batch loads), and the persisted statistics table.
func migration1(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS books (
    id                  TEXT PRIMARY KEY,
    document_id_trusted INTEGER NOT NULL DEFAULT 0,
    version             REAL    NOT NULL DEFAULT 0,
    file_name           TEXT    NOT NULL,
    title               TEXT    NOT NULL DEFAULT '',
    language            TEXT    NOT NULL DEFAULT '',
    book_date           INTEGER,
    document_date       INTEGER,
    annotation          TEXT    NOT NULL DEFAULT '',
    document_size       INTEGER NOT NULL DEFAULT 0,
    added_date          INTEGER NOT NULL,
    last_download_date  INTEGER,
    book_type           INTEGER NOT NULL DEFAULT 0,
    duplicate_key       TEXT    NOT NULL DEFAULT '',
    replaced_by_id      TEXT    NOT NULL DEFAULT '',
    content_hash        TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS book_authors (
    book_id     TEXT    NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    author_name TEXT    NOT NULL,
    position    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (book_id, position)
);

CREATE TABLE IF NOT EXISTS book_translators (
    book_id         TEXT    NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    translator_name TEXT    NOT NULL,
    position        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (book_id, position)
);

CREATE TABLE IF NOT EXISTS book_genres (
    book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    tag     TEXT NOT NULL,
    PRIMARY KEY (book_id, tag)
);

CREATE TABLE IF NOT EXISTS book_sequences (
    book_id            TEXT    NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    name               TEXT    NOT NULL,
    number_in_sequence INTEGER NOT NULL DEFAULT 0,
    position           INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (book_id, position)
);

CREATE TABLE IF NOT EXISTS authors (
    name              TEXT PRIMARY KEY,
    first_name        TEXT NOT NULL DEFAULT '',
    middle_name       TEXT NOT NULL DEFAULT '',
    last_name         TEXT NOT NULL DEFAULT '',
    search_name       TEXT NOT NULL DEFAULT '',
    last_name_soundex TEXT NOT NULL DEFAULT '',
    name_translit     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sequences (
    name        TEXT PRIMARY KEY,
    search_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS library_stats (
    key         TEXT PRIMARY KEY,
    value       INTEGER NOT NULL DEFAULT 0,
    period_days INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_books_duplicate_key   ON books(duplicate_key);
CREATE INDEX IF NOT EXISTS idx_books_content_hash     ON books(content_hash);
CREATE INDEX IF NOT EXISTS idx_books_replaced_by      ON books(replaced_by_id);
CREATE INDEX IF NOT EXISTS idx_books_added_date       ON books(added_date DESC);
CREATE INDEX IF NOT EXISTS idx_book_authors_name      ON book_authors(author_name);
CREATE INDEX IF NOT EXISTS idx_book_genres_tag        ON book_genres(tag);
CREATE INDEX IF NOT EXISTS idx_book_sequences_name    ON book_sequences(name);
CREATE INDEX IF NOT EXISTS idx_authors_soundex        ON authors(last_name_soundex);

CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
    title, annotation, content='books', content_rowid='rowid'
);
CREATE VIRTUAL TABLE IF NOT EXISTS authors_fts USING fts5(
    name, content='authors', content_rowid='rowid'
);
CREATE VIRTUAL TABLE IF NOT EXISTS sequences_fts USING fts5(
    name, content='sequences', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS books_ai AFTER INSERT ON books BEGIN
    INSERT INTO books_fts(rowid, title, annotation) VALUES (new.rowid, new.title, new.annotation);
END;
CREATE TRIGGER IF NOT EXISTS books_ad AFTER DELETE ON books BEGIN
    INSERT INTO books_fts(books_fts, rowid, title, annotation) VALUES('delete', old.rowid, old.title, old.annotation);
END;
CREATE TRIGGER IF NOT EXISTS books_au AFTER UPDATE ON books BEGIN
    INSERT INTO books_fts(books_fts, rowid, title, annotation) VALUES('delete', old.rowid, old.title, old.annotation);
    INSERT INTO books_fts(rowid, title, annotation) VALUES (new.rowid, new.title, new.annotation);
END;

CREATE TRIGGER IF NOT EXISTS authors_ai AFTER INSERT ON authors BEGIN
    INSERT INTO authors_fts(rowid, name) VALUES (new.rowid, new.name);
END;
CREATE TRIGGER IF NOT EXISTS authors_ad AFTER DELETE ON authors BEGIN
    INSERT INTO authors_fts(authors_fts, rowid, name) VALUES('delete', old.rowid, old.name);
END;
CREATE TRIGGER IF NOT EXISTS authors_au AFTER UPDATE ON authors BEGIN
    INSERT INTO authors_fts(authors_fts, rowid, name) VALUES('delete', old.rowid, old.name);
    INSERT INTO authors_fts(rowid, name) VALUES (new.rowid, new.name);
END;

CREATE TRIGGER IF NOT EXISTS sequences_ai AFTER INSERT ON sequences BEGIN
    INSERT INTO sequences_fts(rowid, name) VALUES (new.rowid, new.name);
END;
CREATE TRIGGER IF NOT EXISTS sequences_ad AFTER DELETE ON sequences BEGIN
    INSERT INTO sequences_fts(sequences_fts, rowid, name) VALUES('delete', old.rowid, old.name);
END;
CREATE TRIGGER IF NOT EXISTS sequences_au AFTER UPDATE ON sequences BEGIN
    INSERT INTO sequences_fts(sequences_fts, rowid, name) VALUES('delete', old.rowid, old.name);
    INSERT INTO sequences_fts(rowid, name) VALUES (new.rowid, new.name);
END;
`)
	return err
}

// migration2 adds the Genre Dictionary table of spec.md §4.3/§4.6: parent
// genres are persisted as pseudo-rows tagged "_MAIN_<tag>" carrying only
// their bilingual label, and only subgenres carry a tag usable in
// book_genres; parent_tag links a subgenre back to its parent's pseudo-row.
func migration2(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS genres (
    tag        TEXT PRIMARY KEY,
    parent_tag TEXT NOT NULL DEFAULT '',
    name_en    TEXT NOT NULL DEFAULT '',
    name_ru    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_genres_parent_tag ON genres(parent_tag);
`)
	return err
}

// migrateSchema reads PRAGMA user_version and applies every outstanding
// migration in order, exactly as the teacher's migrateSchema does.
func (s *Store) migrateSchema() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	applied := false
	for _, m := range schemaMigrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(s.db); err != nil {
			return err
		}
		// PRAGMA user_version does not support ? placeholders.
		if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			return err
		}
		applied = true
	}
	if applied {
		// spec.md §4.3 startup contract: "Run ANALYZE after schema changes."
		if _, err := s.db.Exec(`ANALYZE`); err != nil {
			return err
		}
	}
	return nil
}
