package library

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"tinyopds/internal/alias"
	"tinyopds/internal/book"
	"tinyopds/internal/store"
)

// These read-path methods are thin, cache-aware wrappers over the
// Repository: the cached ones (Counts, Lists, AuthorsByInitial, GenreTree)
// live in counts.go/lists.go; everything here queries the store directly,
// since spec.md §4.5 only names the four caches above and leaves the rest
// of navigation/search as live reads.

// BookByID looks up a single Book by ID, or nil if none exists.
func (f *Facade) BookByID(id string) (*book.Book, error) {
	f.touch()
	return f.st.GetBookByID(id)
}

// BookByFileName looks up a single Book by its exact FileName.
func (f *Facade) BookByFileName(fileName string) (*book.Book, error) {
	f.touch()
	return f.st.GetBookByFileName(fileName)
}

// BooksByAuthor returns the active books credited to the exact author name.
func (f *Facade) BooksByAuthor(name string) ([]*book.Book, error) {
	f.touch()
	return f.st.BooksByAuthor(name)
}

// BooksBySequence returns the active books in a named sequence, ordered by
// NumberInSequence.
func (f *Facade) BooksBySequence(name string) ([]*book.Book, error) {
	f.touch()
	return f.st.BooksBySequence(name)
}

// BooksByGenre returns the active books tagged with the given genre.
func (f *Facade) BooksByGenre(tag string) ([]*book.Book, error) {
	f.touch()
	return f.st.BooksByGenre(tag)
}

// SequencesWithCounts returns every sequence with its active-book count.
func (f *Facade) SequencesWithCounts() ([]store.SequenceCount, error) {
	f.touch()
	return f.st.SequencesWithCounts()
}

// SearchAuthors runs the OpenSearch author cascade of spec.md §4.4.
func (f *Facade) SearchAuthors(pattern string) ([]string, error) {
	f.touch()
	return f.st.OpenSearchAuthors(pattern)
}

// SearchBooks runs the book-title search cascade of spec.md §4.4.
func (f *Facade) SearchBooks(pattern string) ([]*book.Book, error) {
	f.touch()
	return f.st.SearchBooks(pattern)
}

// NewBooks returns one page of recently added books, using the configured
// "new books" window as the cutoff (spec.md §4.5 "new-books query").
func (f *Facade) NewBooks(page, pageSize int, sortByTitle bool) (store.PaginatedBooks, error) {
	f.touch()
	cutoff := time.Now().AddDate(0, 0, -f.cfg.NewBooksPeriodDays())
	return f.st.NewBooksPaginated(cutoff, page, pageSize, sortByTitle)
}

// Backup writes a defragmented snapshot of the catalog database, pruning
// older backups beyond keep (spec.md §4.4 "Backup").
func (f *Facade) Backup(destDir string, keep int) (string, error) {
	f.touch()
	path, err := f.st.Backup(destDir, keep)
	if err != nil {
		return path, err
	}
	if info, statErr := os.Stat(path); statErr == nil {
		f.logger.Info("library: backup written",
			zap.String("path", path),
			zap.String("size", humanize.Bytes(uint64(info.Size()))),
		)
	}
	return path, nil
}

// ReplaceAliasTable swaps in a freshly loaded alias table at runtime, for a
// deployment that edits its alias file without restarting.
func (f *Facade) ReplaceAliasTable(path string) error {
	t, err := alias.Load(path)
	if err != nil {
		return err
	}
	f.aliases = t
	return nil
}
