// Package dedup implements the Duplicate Detector of spec.md §4.2: given a
// freshly-parsed candidate Book, classify it as new / exact-duplicate /
// fuzzy-duplicate against whatever is already stored, and decide whether the
// stored record should be replaced.
package dedup

import "tinyopds/internal/book"

// MatchType tags how a candidate was found to overlap an existing Book.
type MatchType int

const (
	// MatchNone: the candidate is new; nothing to compare it against.
	MatchNone MatchType = iota
	// MatchContentHash: identical file bytes, detected by prefix hash.
	MatchContentHash
	// MatchDuplicateKey: same canonicalized title/author/language/sequence
	// key, confirmed by the pairwise comparator against every collision.
	MatchDuplicateKey
	// MatchFuzzy: same trusted external ID; weaker than a byte-identical
	// match but strong enough to treat the same way. Not named as a
	// separate probe step in spec.md §4.2's algorithm, but spec.md §4.1's
	// duplicate predicate lists "identical trusted IDs" as an unconditional
	// duplicate signal, so it gets its own cheap first-pass probe here.
	MatchFuzzy
)

// Prober is the narrow read access the duplicate detector needs from
// storage. internal/store's Store satisfies it; tests use a fake.
type Prober interface {
	BookByTrustedID(id string) (*book.Book, error)
	BookByContentHash(hash string) (*book.Book, error)
	BooksByDuplicateKey(key string) ([]*book.Book, error)
}

// Result is the outcome of CheckDuplicate, mirroring spec.md §4.2's
// CheckDuplicate contract.
type Result struct {
	IsDuplicate   bool
	ExistingBook  *book.Book
	ShouldReplace bool
	MatchType     MatchType
	Score         int
	// Losers holds every stored Book that the duplicate-key cascade found
	// to collide with candidate (per the duplicate predicate), not just the
	// best-scoring one. ProcessDuplicate marks all of them replaced when
	// ShouldReplace is true, per spec.md §4.2 ("mark every other matching
	// record as replaced by the new one").
	Losers []*book.Book
}

// replaceThreshold is the score above which a duplicate-key match triggers
// replacement; spec.md §4.2 calls this "the replacement threshold [that]
// prevents thrashing on near-ties".
const replaceThreshold = 2

// skipThreshold is the score below which a non-replacing duplicate-key match
// is discarded rather than kept alongside the existing record.
const skipThreshold = -1

// CheckDuplicate probes p for an existing Book that candidate overlaps,
// following spec.md §4.2's algorithm: reject invalid input, probe by trusted
// ID (cheap, unconditional per the duplicate predicate), then content hash
// (an identical file carries no new information), then duplicate key (a
// cascading comparison against every collision, scored by the pairwise
// comparator).
func CheckDuplicate(p Prober, candidate *book.Book) (Result, error) {
	if !candidate.IsValid() {
		return Result{}, nil
	}

	if candidate.DocumentIDTrusted && candidate.ID != "" {
		match, err := p.BookByTrustedID(candidate.ID)
		if err != nil {
			return Result{}, err
		}
		if match != nil && candidate.IsDuplicateOf(match) {
			return Result{
				IsDuplicate:  true,
				ExistingBook: match,
				MatchType:    MatchFuzzy,
				Losers:       []*book.Book{match},
			}, nil
		}
	}

	if candidate.ContentHash != "" {
		match, err := p.BookByContentHash(candidate.ContentHash)
		if err != nil {
			return Result{}, err
		}
		if match != nil {
			// An identical file carries no new information: never replace.
			return Result{
				IsDuplicate:  true,
				ExistingBook: match,
				MatchType:    MatchContentHash,
				Losers:       []*book.Book{match},
			}, nil
		}
	}

	if candidate.DuplicateKey == "" {
		return Result{}, nil
	}
	candidates, err := p.BooksByDuplicateKey(candidate.DuplicateKey)
	if err != nil {
		return Result{}, err
	}

	var losers []*book.Book
	var best *book.Book
	bestScore := 0
	haveBest := false
	for _, existing := range candidates {
		if !candidate.IsDuplicateOf(existing) {
			continue
		}
		losers = append(losers, existing)
		score := candidate.CompareTo(existing)
		if !haveBest || score > bestScore {
			best, bestScore, haveBest = existing, score, true
		}
	}
	if !haveBest {
		// The key collided but nothing actually qualifies as a duplicate
		// (different translation, different volume): not a duplicate.
		return Result{}, nil
	}
	if bestScore == 0 {
		// Indistinguishable in quality: both must be kept.
		return Result{
			ExistingBook: best,
			MatchType:    MatchDuplicateKey,
			Score:        0,
			Losers:       losers,
		}, nil
	}

	return Result{
		IsDuplicate:   true,
		ExistingBook:  best,
		ShouldReplace: bestScore > replaceThreshold,
		MatchType:     MatchDuplicateKey,
		Score:         bestScore,
		Losers:        losers,
	}, nil
}

// ProcessDuplicate applies the CheckDuplicate outcome to candidate: it
// reports whether candidate should be inserted and, when the existing
// record(s) lose, stamps their ReplacedByID so the caller can persist the
// change atomically alongside the insert (spec.md §4.2 "ProcessDuplicate").
//
// Exact content duplicates are always skipped. A duplicate-key match that
// clears the replace threshold replaces every collision found during the
// cascade. A near-tie (score in [skipThreshold, replaceThreshold]) is
// inserted anyway, erring toward preservation; a clear loss for the
// candidate (score below skipThreshold) is skipped.
func ProcessDuplicate(candidate *book.Book, res Result) (insert bool) {
	if !res.IsDuplicate {
		return true
	}
	switch res.MatchType {
	case MatchContentHash:
		return false
	case MatchFuzzy:
		return false
	case MatchDuplicateKey:
		if res.ShouldReplace {
			for _, loser := range res.Losers {
				loser.ReplacedByID = candidate.ID
			}
			return true
		}
		return res.Score >= skipThreshold
	default:
		return true
	}
}
