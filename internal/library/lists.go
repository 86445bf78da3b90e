package library

import (
	"sort"
	"unicode"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"tinyopds/internal/genre"
)

// Lists returns the cached, sorted author and sequence name lists (spec.md
// §4.5 "Lists cache", 10-minute TTL), refreshing synchronously on a miss.
func (f *Facade) Lists() (authors, sequences []string) {
	f.touch()
	if snap, ok := f.listsCache.Get(cacheKey); ok {
		return snap.Authors, snap.Sequences
	}
	snap := f.buildListsSnapshot()
	f.listsCache.Add(cacheKey, snap)
	return snap.Authors, snap.Sequences
}

func (f *Facade) buildListsSnapshot() listsSnapshot {
	authors, err := f.st.Authors()
	if err != nil {
		f.logger.Warn("library: load authors for lists cache failed", zap.Error(err))
	}
	sequences, err := f.st.Sequences()
	if err != nil {
		f.logger.Warn("library: load sequences for lists cache failed", zap.Error(err))
	}
	cyrillicFirst := f.cfg.SortOrder > 0
	return listsSnapshot{
		Authors:   sortByCollation(authors, cyrillicFirst),
		Sequences: sortByCollation(sequences, cyrillicFirst),
	}
}

// invalidateLists drops the lists and alphabetical caches so the next read
// rebuilds them; called after a successful Add/AddBatch.
func (f *Facade) invalidateLists() {
	f.listsCache.Remove(cacheKey)
	f.alphaCache.Remove(cacheKey)
}

// AuthorsByInitial returns the sorted authors whose first letter
// (uppercased) is letter, from the alphabetical author cache (spec.md §4.5,
// two-hour TTL). It never blocks on a cold cache: a miss triggers an async
// rebuild and returns nothing until the rebuild lands.
func (f *Facade) AuthorsByInitial(letter string) []string {
	f.touch()
	snap, ok := f.alphaCache.Get(cacheKey)
	if !ok {
		f.warmAuthorsCacheAsync()
		return nil
	}
	return snap.ByInitial[letter]
}

// AuthorInitials returns the sorted set of first letters that currently
// have at least one author, for rendering an alphabet picker.
func (f *Facade) AuthorInitials() []string {
	f.touch()
	snap, ok := f.alphaCache.Get(cacheKey)
	if !ok {
		f.warmAuthorsCacheAsync()
		return nil
	}
	return snap.Letters
}

func (f *Facade) warmAuthorsCacheAsync() {
	if f.isAuthorsCacheLoading.CompareAndSwap(false, true) {
		go f.warmAuthorsCache()
	}
}

// warmAuthorsCache rebuilds the alphabetical author cache from scratch.
func (f *Facade) warmAuthorsCache() {
	defer f.isAuthorsCacheLoading.Store(false)

	authors, err := f.st.Authors()
	if err != nil {
		f.logger.Warn("library: build alphabetical author cache failed", zap.Error(err))
		return
	}

	byInitial := make(map[string][]string)
	for _, name := range authors {
		letter := firstLetterUpper(name)
		if letter == "" {
			continue
		}
		byInitial[letter] = append(byInitial[letter], name)
	}

	letters := make([]string, 0, len(byInitial))
	for letter, names := range byInitial {
		sort.Sort(natural.StringSlice(names))
		byInitial[letter] = names
		letters = append(letters, letter)
	}
	letters = sortByCollation(letters, f.cfg.SortOrder > 0)

	f.alphaCache.Add(cacheKey, alphaSnapshot{ByInitial: byInitial, Letters: letters})
}

// firstLetterUpper returns the uppercased first letter of name, skipping
// any leading non-letter runes (e.g. a stray leading quote or digit).
func firstLetterUpper(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return ""
}

// isCyrillic reports whether r belongs to the Cyrillic script, for the
// Latin/Cyrillic collation split SortOrder selects.
func isCyrillic(r rune) bool {
	return unicode.Is(unicode.Cyrillic, r)
}

// sortByCollation orders names per config.Config.SortOrder (spec.md §6):
// Latin-first when cyrillicFirst is false, Cyrillic-first otherwise, each
// script group naturally sorted within itself.
func sortByCollation(names []string, cyrillicFirst bool) []string {
	var latin, cyrillic, other []string
	for _, n := range names {
		switch {
		case n == "":
			other = append(other, n)
		case isCyrillic([]rune(n)[0]):
			cyrillic = append(cyrillic, n)
		default:
			latin = append(latin, n)
		}
	}
	sort.Sort(natural.StringSlice(latin))
	sort.Sort(natural.StringSlice(cyrillic))

	out := make([]string, 0, len(names))
	if cyrillicFirst {
		out = append(out, cyrillic...)
		out = append(out, latin...)
	} else {
		out = append(out, latin...)
		out = append(out, cyrillic...)
	}
	return append(out, other...)
}

// GenreTree returns the genre taxonomy's parent/child structure from the
// genre tree cache (spec.md §4.5, five-minute TTL). The tree carries no
// book counts; GenreCounts supplies those.
func (f *Facade) GenreTree() []genre.Parent {
	f.touch()
	if tree, ok := f.genreCache.Get(cacheKey); ok {
		return tree
	}
	tree := f.taxonomy.Parents()
	f.genreCache.Add(cacheKey, tree)
	return tree
}

// GenreCounts returns the number of active books per genre tag, uncached;
// it is the only source of per-genre counts, since GenreTree holds none.
func (f *Facade) GenreCounts() (map[string]int, error) {
	return f.st.GenreCounts()
}
