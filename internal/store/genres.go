package store

import (
	"fmt"

	"tinyopds/internal/genre"
)

// SeedGenreTaxonomy implements spec.md §4.3's startup contract for the
// Genre Dictionary: seed the genres table from t only when t carries
// strictly more subgenre entries than the store already holds, and never
// delete existing rows (book_genres may already reference them). This is
// the additive incremental seed; a destructive reload-from-XML is a
// separate operation spec.md §4.6 describes and this package does not
// perform implicitly.
func (s *Store) SeedGenreTaxonomy(t *genre.Taxonomy) error {
	existing, err := s.genreSubgenreCount()
	if err != nil {
		return fmt.Errorf("store: count genres: %w", err)
	}

	incoming := 0
	for _, p := range t.Parents() {
		incoming += len(p.Children)
	}
	if incoming <= existing {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin genre seed: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range t.Parents() {
		if _, err := tx.Exec(`
INSERT INTO genres (tag, parent_tag, name_en, name_ru) VALUES (?, '', ?, ?)
ON CONFLICT(tag) DO NOTHING`, p.Tag, p.NameEn, p.NameRu); err != nil {
			return fmt.Errorf("store: seed parent genre %s: %w", p.Tag, err)
		}
		for _, g := range p.Children {
			if _, err := tx.Exec(`
INSERT INTO genres (tag, parent_tag, name_en, name_ru) VALUES (?, ?, ?, ?)
ON CONFLICT(tag) DO NOTHING`, g.Tag, g.ParentTag, g.NameEn, g.NameRu); err != nil {
				return fmt.Errorf("store: seed genre %s: %w", g.Tag, err)
			}
		}
	}
	return tx.Commit()
}

// genreSubgenreCount counts stored rows with a usable tag (actual
// subgenres), excluding the "_MAIN_<tag>" parent pseudo-rows, matching the
// quantified invariant of spec.md §8 ("stored subgenre tags are a superset
// of the XML resource").
func (s *Store) genreSubgenreCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM genres WHERE parent_tag != ''`).Scan(&n)
	return n, err
}
