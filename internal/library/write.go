package library

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"tinyopds/internal/book"
	"tinyopds/internal/dedup"
	"tinyopds/internal/store"
)

// Add runs a single Book through the facade's write path: alias
// application, genre normalization, duplicate detection/resolution, and
// persistence, then invalidates the affected caches and schedules a
// background refresh (spec.md §4.5 "Add/AddBatch call paths"). It reports
// whether the book was actually inserted (false for a skipped/rejected
// duplicate or an invalid record).
func (f *Facade) Add(b *book.Book) (bool, error) {
	return f.addOne(b, nil)
}

// AddFromStream is Add, but also computes ContentHash from r before
// dedup runs, for callers (the MetadataParser collaborator) that have
// stream access to the source file.
func (f *Facade) AddFromStream(b *book.Book, r io.ReadSeeker) (bool, error) {
	return f.addOne(b, r)
}

func (f *Facade) addOne(b *book.Book, r io.ReadSeeker) (bool, error) {
	f.touch()
	f.prepareForInsert(b, r)
	if !b.IsValid() {
		return false, nil
	}

	res, err := dedup.CheckDuplicate(f.st, b)
	if err != nil {
		return false, fmt.Errorf("library: check duplicate: %w", err)
	}
	if !dedup.ProcessDuplicate(b, res) {
		return false, nil
	}

	if err := f.persistLosers(res.Losers); err != nil {
		return false, err
	}
	if err := f.st.AddBook(b); err != nil {
		return false, fmt.Errorf("library: add book: %w", err)
	}

	f.afterWrite()
	return true, nil
}

// AddBatch runs a slice of Books through the write path as one unit,
// relaxing store durability pragmas for the duration of the actual insert
// (spec.md §4.4 "Batch insert"). None of the batch is committed until every
// candidate has been classified, so dedup runs against a prober that
// overlays the not-yet-committed candidates on top of the store — otherwise
// two colliding candidates in the same batch would both look brand new.
func (f *Facade) AddBatch(books []*book.Book) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{TotalProcessed: len(books)}
	if len(books) == 0 {
		return summary, nil
	}

	var toInsert []*book.Book
	var losers []*book.Book
	prober := &batchProber{st: f.st, pending: &toInsert}
	for _, b := range books {
		f.prepareForInsert(b, nil)
		if !b.IsValid() {
			summary.Errors++
			summary.ErrorMessages = append(summary.ErrorMessages, fmt.Sprintf("%s: invalid book record", b.FileName))
			continue
		}

		res, err := dedup.CheckDuplicate(prober, b)
		if err != nil {
			summary.Errors++
			summary.ErrorMessages = append(summary.ErrorMessages, fmt.Sprintf("%s: %v", b.FileName, err))
			continue
		}
		if !dedup.ProcessDuplicate(b, res) {
			summary.Duplicates++
			continue
		}
		if res.ShouldReplace {
			losers = append(losers, res.Losers...)
		}
		toInsert = append(toInsert, b)
	}

	if len(toInsert) > 0 {
		insertResult, err := f.st.AddBooksBatch(toInsert)
		if err != nil {
			return summary, fmt.Errorf("library: add batch: %w", err)
		}
		summary.Added += insertResult.Added
		summary.Duplicates += insertResult.Duplicates
		summary.Errors += insertResult.Errors
		summary.FB2Count += insertResult.FB2Count
		summary.EPUBCount += insertResult.EPUBCount
		summary.ErrorMessages = append(summary.ErrorMessages, insertResult.ErrorMessages...)
	}

	if err := f.persistLosers(losers); err != nil {
		summary.Errors++
		summary.ErrorMessages = append(summary.ErrorMessages, err.Error())
	}

	summary.ProcessingTime = time.Since(start)
	if len(toInsert) > 0 {
		f.afterWrite()
	}
	return summary, nil
}

// batchProber implements dedup.Prober over the store plus a slice of
// candidates already classified earlier in the same AddBatch call but not
// yet committed, so in-batch collisions are caught without a premature
// store write. pending is a pointer because toInsert grows (and may
// reallocate) as the batch loop progresses.
type batchProber struct {
	st      *store.Store
	pending *[]*book.Book
}

func (p *batchProber) BookByTrustedID(id string) (*book.Book, error) {
	if b, err := p.st.BookByTrustedID(id); err != nil || b != nil {
		return b, err
	}
	for _, cand := range *p.pending {
		if cand.DocumentIDTrusted && cand.ID == id {
			return cand, nil
		}
	}
	return nil, nil
}

func (p *batchProber) BookByContentHash(hash string) (*book.Book, error) {
	if b, err := p.st.BookByContentHash(hash); err != nil || b != nil {
		return b, err
	}
	for _, cand := range *p.pending {
		if cand.ContentHash == hash {
			return cand, nil
		}
	}
	return nil, nil
}

func (p *batchProber) BooksByDuplicateKey(key string) ([]*book.Book, error) {
	out, err := p.st.BooksByDuplicateKey(key)
	if err != nil {
		return nil, err
	}
	for _, cand := range *p.pending {
		if cand.DuplicateKey == key {
			out = append(out, cand)
		}
	}
	return out, nil
}

// BatchSummary mirrors store.BatchResult, adding the candidates Library
// rejected before they ever reached the store (invalid records, or
// duplicates skipped purely on in-memory comparison).
type BatchSummary struct {
	TotalProcessed int
	Added          int
	Duplicates     int
	Errors         int
	FB2Count       int
	EPUBCount      int
	ProcessingTime time.Duration
	ErrorMessages  []string
}

// prepareForInsert applies the facade's insert-time transforms to b:
// trusted-ID assignment, content-hash computation (if a stream is
// available), Cyrillic alias substitution, genre tag normalization, and
// AddedDate/duplicate-key stamping. Order matters: aliases and genre
// normalization must run before GenerateDuplicateKey, since the key is
// derived from the normalized values.
//
// b.ID is expected to hold the raw, uninterpreted external identifier the
// MetadataParser collaborator found (or "" if it found none); SetID applies
// spec.md §4.1's trust rules to that candidate exactly once here. Calling
// prepareForInsert a second time on the same Book would re-interpret an
// already-derived UUID as if it were a fresh external candidate, so callers
// must not call Add/AddBatch twice on one Book instance.
func (f *Facade) prepareForInsert(b *book.Book, r io.ReadSeeker) {
	b.SetID(b.ID)
	if r != nil && b.ContentHash == "" {
		b.GenerateContentHash(r)
	}

	f.applyAliases(b)
	f.normalizeGenres(b)

	if b.AddedDate.IsZero() {
		b.AddedDate = time.Now()
	}
	b.GenerateDuplicateKey()
}

// applyAliases resolves every Cyrillic author/translator name to its
// canonical spelling, per spec.md §4.5's Cyrillic-only alias policy. A nil
// table (embedded alias data failed to load) or a disabled policy is a
// no-op.
func (f *Facade) applyAliases(b *book.Book) {
	if f.aliases == nil || !f.cfg.UseAuthorsAliases {
		return
	}
	for i, name := range b.Authors {
		b.Authors[i] = f.aliases.ResolveCyrillic(name)
	}
	for i, name := range b.Translators {
		b.Translators[i] = f.aliases.ResolveCyrillic(name)
	}
}

// normalizeGenres maps each of b.Genres to a taxonomy tag: an exact match
// is kept as-is, an unmatched label is run through Soundex recovery, and a
// label with no phonetic match at all is kept unchanged (spec.md §4.6
// "unknown genre strings are preserved, not discarded").
func (f *Facade) normalizeGenres(b *book.Book) {
	if f.taxonomy == nil {
		return
	}
	for i, tag := range b.Genres {
		if _, ok := f.taxonomy.Tag(tag); ok {
			continue
		}
		if recovered, ok := f.taxonomy.RecoverTag(tag); ok {
			b.Genres[i] = recovered
		}
	}
}

// persistLosers writes back every Book whose ReplacedByID ProcessDuplicate
// set in memory, per spec.md §4.2 ("mark every other matching record as
// replaced").
func (f *Facade) persistLosers(losers []*book.Book) error {
	for _, loser := range losers {
		if loser.ReplacedByID == "" {
			continue
		}
		if err := f.st.MarkReplaced(loser.ID, loser.ReplacedByID); err != nil {
			return fmt.Errorf("library: mark replaced %s: %w", loser.ID, err)
		}
	}
	return nil
}

// afterWrite invalidates the caches a successful insert can affect and
// kicks off the background refreshes spec.md §4.5 describes: the count
// cache's timestamps are cleared (not its values, so stale reads still see
// the last-known numbers) and the lists/alphabetical caches are dropped
// outright, since there is no cheap incremental update for them.
func (f *Facade) afterWrite() {
	f.invalidateCounts()
	f.invalidateLists()
	f.scheduleAsyncRefresh()
	f.warmAuthorsCacheAsync()
	if f.logger.Core().Enabled(zap.DebugLevel) {
		f.logger.Debug("library: write path invalidated caches")
	}
}
