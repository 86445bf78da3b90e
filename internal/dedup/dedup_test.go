package dedup_test

import (
	"errors"
	"testing"

	"tinyopds/internal/book"
	"tinyopds/internal/dedup"
)

type fakeProber struct {
	byTrustedID   map[string]*book.Book
	byHash        map[string]*book.Book
	byDupKey      map[string][]*book.Book
	failOnTrusted bool
}

func (f *fakeProber) BookByTrustedID(id string) (*book.Book, error) {
	if f.failOnTrusted {
		return nil, errors.New("boom")
	}
	return f.byTrustedID[id], nil
}

func (f *fakeProber) BookByContentHash(hash string) (*book.Book, error) {
	return f.byHash[hash], nil
}

func (f *fakeProber) BooksByDuplicateKey(key string) ([]*book.Book, error) {
	return f.byDupKey[key], nil
}

func validCandidate() *book.Book {
	return &book.Book{
		Title:   "Title",
		Authors: []string{"Author"},
		Genres:  []string{"genre"},
	}
}

func TestCheckDuplicate_TrustedIDMatch(t *testing.T) {
	existing := validCandidate()
	existing.ID, existing.DocumentIDTrusted = "same", true
	p := &fakeProber{byTrustedID: map[string]*book.Book{"same": existing}}
	candidate := validCandidate()
	candidate.ID, candidate.DocumentIDTrusted = "same", true

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.ExistingBook != existing || res.MatchType != dedup.MatchFuzzy {
		t.Fatalf("CheckDuplicate = %+v, want trusted-ID duplicate", res)
	}
	if dedup.ProcessDuplicate(candidate, res) {
		t.Error("trusted-ID match should never be inserted")
	}
}

func TestCheckDuplicate_ContentHashMatch(t *testing.T) {
	existing := validCandidate()
	existing.ContentHash = "deadbeef"
	p := &fakeProber{byHash: map[string]*book.Book{"deadbeef": existing}}
	candidate := validCandidate()
	candidate.ContentHash = "deadbeef"

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.ExistingBook != existing || res.MatchType != dedup.MatchContentHash {
		t.Fatalf("CheckDuplicate = %+v, want content-hash duplicate", res)
	}
	if res.ShouldReplace {
		t.Error("content-hash duplicates must never replace")
	}
	if dedup.ProcessDuplicate(candidate, res) {
		t.Error("exact content duplicates must always be skipped")
	}
}

func TestCheckDuplicate_DuplicateKeyRequiresTranslatorMatch(t *testing.T) {
	existing := validCandidate()
	existing.DuplicateKey, existing.Translators = "k", []string{"Smith"}
	p := &fakeProber{byDupKey: map[string][]*book.Book{"k": {existing}}}

	matching := validCandidate()
	matching.DuplicateKey, matching.Translators = "k", []string{"Smith"}
	if res, _ := dedup.CheckDuplicate(p, matching); !res.IsDuplicate && res.ExistingBook == nil {
		t.Error("expected duplicate-key match with equal translator sets to be found")
	}

	nonMatching := validCandidate()
	nonMatching.DuplicateKey, nonMatching.Translators = "k", []string{"Jones"}
	res, _ := dedup.CheckDuplicate(p, nonMatching)
	if res.MatchType != dedup.MatchNone {
		t.Error("expected duplicate-key match with differing translator sets to be rejected")
	}
}

func TestCheckDuplicate_EqualScoreTieKeepsBoth(t *testing.T) {
	existing := validCandidate()
	existing.ID, existing.DuplicateKey = "old", "k"
	p := &fakeProber{byDupKey: map[string][]*book.Book{"k": {existing}}}

	candidate := validCandidate()
	candidate.ID, candidate.DuplicateKey = "new", "k"

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsDuplicate {
		t.Fatalf("indistinguishable candidates must be reported as not-duplicate, got %+v", res)
	}
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0", res.Score)
	}
	if !dedup.ProcessDuplicate(candidate, res) {
		t.Error("a non-duplicate candidate must always be inserted")
	}
}

func TestCheckDuplicate_ReplacementAboveThreshold(t *testing.T) {
	// Archive priority difference of 10 clears the replace threshold.
	existing := validCandidate()
	existing.ID, existing.DuplicateKey = "old", "k"
	existing.FileName = "fb2-000001-000100.zip@a.fb2"
	p := &fakeProber{byDupKey: map[string][]*book.Book{"k": {existing}}}

	candidate := validCandidate()
	candidate.ID, candidate.DuplicateKey = "new", "k"
	candidate.FileName = "fb2-000200-000300.zip@a.fb2"

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || !res.ShouldReplace || res.Score < 10 {
		t.Fatalf("CheckDuplicate = %+v, want a clear replacement", res)
	}
	if !dedup.ProcessDuplicate(candidate, res) {
		t.Error("a replacing candidate must be inserted")
	}
	if existing.ReplacedByID != candidate.ID {
		t.Errorf("existing.ReplacedByID = %q, want %q", existing.ReplacedByID, candidate.ID)
	}
}

func TestCheckDuplicate_NearTieInsertedAnyway(t *testing.T) {
	existing := validCandidate()
	existing.ID, existing.DuplicateKey = "old", "k"
	existing.BookType = book.TypeEPUB
	p := &fakeProber{byDupKey: map[string][]*book.Book{"k": {existing}}}

	candidate := validCandidate()
	candidate.ID, candidate.DuplicateKey = "new", "k"
	candidate.BookType = book.TypeFB2 // +2: within [-1, 2], below replace threshold

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.ShouldReplace {
		t.Fatalf("CheckDuplicate = %+v, want a non-replacing duplicate", res)
	}
	if !dedup.ProcessDuplicate(candidate, res) {
		t.Error("a near-tie duplicate should be inserted anyway, erring toward preservation")
	}
}

func TestCheckDuplicate_ClearLossSkipped(t *testing.T) {
	existing := validCandidate()
	existing.ID, existing.DuplicateKey = "old", "k"
	existing.BookType = book.TypeFB2
	existing.DocumentIDTrusted = true
	p := &fakeProber{byDupKey: map[string][]*book.Book{"k": {existing}}}

	candidate := validCandidate()
	candidate.ID, candidate.DuplicateKey = "new", "k"
	candidate.BookType = book.TypeEPUB // -2 against FB2; the trusted-ID tie-break only applies at score 0

	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsDuplicate || res.ShouldReplace {
		t.Fatalf("CheckDuplicate = %+v, want a non-replacing duplicate", res)
	}
	if res.Score >= -1 {
		t.Fatalf("Score = %d, want a clear loss below -1 for this fixture", res.Score)
	}
	if dedup.ProcessDuplicate(candidate, res) {
		t.Error("a clearly worse candidate should be skipped")
	}
}

func TestCheckDuplicate_NoMatch(t *testing.T) {
	p := &fakeProber{}
	candidate := validCandidate()
	candidate.ID, candidate.DuplicateKey = "x", "y"
	res, err := dedup.CheckDuplicate(p, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if res.MatchType != dedup.MatchNone {
		t.Error("expected no duplicate for an empty store")
	}
}

func TestCheckDuplicate_InvalidCandidateRejected(t *testing.T) {
	p := &fakeProber{}
	res, err := dedup.CheckDuplicate(p, &book.Book{})
	if err != nil {
		t.Fatal(err)
	}
	if res.MatchType != dedup.MatchNone || res.IsDuplicate {
		t.Error("an invalid candidate must never be reported as a duplicate")
	}
}

func TestCheckDuplicate_PropagatesProberError(t *testing.T) {
	p := &fakeProber{failOnTrusted: true}
	candidate := validCandidate()
	candidate.ID, candidate.DocumentIDTrusted = "x", true
	_, err := dedup.CheckDuplicate(p, candidate)
	if err == nil {
		t.Fatal("expected error from prober to propagate")
	}
}
