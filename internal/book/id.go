package book

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// fileNamespace is the fixed UUID namespace used to derive deterministic
// IDs from a FileName for books with no trusted external identifier
// (spec.md §3 invariant i). It is an arbitrary but stable constant so the
// same FileName always yields the same untrusted ID across runs.
var fileNamespace = uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")

var fbdPattern = regexp.MustCompile(`^FBD-[0-9A-Fa-f]+(?:-[0-9A-Fa-f]+)*$`)

// placeholderUUIDs are well-known non-identifying UUIDs that some FB2
// toolchains stamp into DocumentID when they have no real one.
var placeholderUUIDs = map[string]bool{
	"00000000-0000-0000-0000-000000000000": true,
	"ffffffff-ffff-ffff-ffff-ffffffffffff": true,
}

// weekdayMonthSubstrings catches the LibRusEc-kit misuse case named in
// spec.md §4.1: tools that accidentally stamp a formatted date/time string
// into the ID field, recognizable by containing a weekday or month name.
var weekdayMonthSubstrings = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "june", "july",
	"august", "september", "october", "november", "december",
}

// SetID assigns the Book's ID from a candidate string, applying the
// trust rules of spec.md §4.1: a candidate that matches the FBD pattern,
// or parses as an integer greater than 100000, or parses as a non-
// placeholder UUID without an embedded weekday/month substring, is
// accepted as-is and marked trusted. Otherwise a deterministic UUIDv3 is
// derived from the Book's FileName and marked untrusted.
func (b *Book) SetID(candidate string) {
	if looksTrusted(candidate) {
		b.ID = candidate
		b.DocumentIDTrusted = true
		return
	}
	b.ID = DeriveID(b.FileName)
	b.DocumentIDTrusted = false
}

// DeriveID returns the deterministic UUIDv3 derived from fileName, the
// fallback identity for books with no trusted external ID.
func DeriveID(fileName string) string {
	return uuid.NewMD5(fileNamespace, []byte(fileName)).String()
}

func looksTrusted(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}

	if fbdPattern.MatchString(candidate) {
		return true
	}

	if n, err := strconv.ParseInt(candidate, 10, 64); err == nil {
		return n > 100000
	}

	if u, err := uuid.Parse(candidate); err == nil {
		s := u.String()
		if placeholderUUIDs[s] {
			return false
		}
		lower := strings.ToLower(candidate)
		for _, sub := range weekdayMonthSubstrings {
			if strings.Contains(lower, sub) {
				return false
			}
		}
		return true
	}

	return false
}
