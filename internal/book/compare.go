package book

import "time"

const dayTolerance = 24 * time.Hour

// CompareTo implements the pairwise comparator of spec.md §4.1. A positive
// result favors b over other; the function is skew-symmetric
// (b.CompareTo(other) == -other.CompareTo(b)), which spec.md §8 requires,
// because every branch is computed purely from the two books' fields
// without favoring either argument's identity.
func (b *Book) CompareTo(other *Book) int {
	bp, op := b.GetArchivePriority(), other.GetArchivePriority()
	if bp > 0 && op > 0 {
		// Newer (higher-numbered) archive wins outright; the comparison
		// terminates here regardless of every other signal.
		switch {
		case bp > op:
			return 10
		case bp < op:
			return -10
		default:
			return 0
		}
	}

	if b.DocumentIDTrusted && other.DocumentIDTrusted && b.ID != "" && b.ID == other.ID {
		score := 0
		if b.Version != other.Version {
			score += sign(b.Version-other.Version) * 5
		}
		if !withinTolerance(b.DocumentDate, other.DocumentDate) {
			score += sign(float64(b.DocumentDate.Sub(other.DocumentDate))) * 2
		}
		return score
	}

	score := 0
	switch {
	case b.BookType == TypeFB2 && other.BookType != TypeFB2:
		score += 2
	case other.BookType == TypeFB2 && b.BookType != TypeFB2:
		score -= 2
	}
	if !withinTolerance(b.DocumentDate, other.DocumentDate) {
		score += sign(float64(b.DocumentDate.Sub(other.DocumentDate))) * 3
	}
	if beyondSizeRatio(b.DocumentSize, other.DocumentSize, 1.2) {
		if b.DocumentSize > other.DocumentSize {
			score++
		} else {
			score--
		}
	}
	if score == 0 && b.DocumentIDTrusted != other.DocumentIDTrusted {
		if b.DocumentIDTrusted {
			score++
		} else {
			score--
		}
	}
	return score
}

// IsDuplicateOf implements the duplicate predicate of spec.md §4.1:
// identical trusted IDs, or identical non-empty content hashes, always
// indicate a duplicate; an identical non-empty DuplicateKey indicates a
// duplicate only when the translator sets also match as sets (both empty
// counts as a match; one empty and one non-empty does not).
func (b *Book) IsDuplicateOf(other *Book) bool {
	if b.DocumentIDTrusted && other.DocumentIDTrusted && b.ID != "" && b.ID == other.ID {
		return true
	}
	if b.ContentHash != "" && b.ContentHash == other.ContentHash {
		return true
	}
	if b.DuplicateKey != "" && b.DuplicateKey == other.DuplicateKey {
		return translatorSetsEqual(b.Translators, other.Translators)
	}
	return false
}

func translatorSetsEqual(a, c []string) bool {
	setA := translatorSet(a)
	setC := translatorSet(c)
	if len(setA) != len(setC) {
		return false
	}
	for k := range setA {
		if !setC[k] {
			return false
		}
	}
	return true
}

func translatorSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[normalizeAuthor(n)] = true
	}
	return set
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func withinTolerance(a, c time.Time) bool {
	if a.IsZero() || c.IsZero() {
		return true
	}
	d := a.Sub(c)
	if d < 0 {
		d = -d
	}
	return d <= dayTolerance
}

func beyondSizeRatio(a, c uint64, ratio float64) bool {
	if a == 0 || c == 0 {
		return false
	}
	bigger, smaller := a, c
	if smaller > bigger {
		bigger, smaller = smaller, bigger
	}
	return float64(bigger)/float64(smaller) > ratio
}
