package alias_test

import (
	"os"
	"path/filepath"
	"testing"

	"tinyopds/internal/alias"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "aliases.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ParsesTabSeparatedLines(t *testing.T) {
	path := writeTempFile(t, "Chkhartishvili\tGrigory\tShalvovich\t-\t-\t-\tAkunin\tBoris\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Resolve("Akunin Boris"); got != "Shalvovich Chkhartishvili Grigory" {
		t.Errorf("Resolve(alias) = %q, want %q", got, "Shalvovich Chkhartishvili Grigory")
	}
}

func TestLoad_ParsesCommaSeparatedLines(t *testing.T) {
	path := writeTempFile(t, "Last1,First1,Middle1,-,-,-,Last2,First2\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Resolve("Last2 First2"); got != "Middle1 Last1 First1" {
		t.Errorf("Resolve(alias) = %q, want %q", got, "Middle1 Last1 First1")
	}
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := writeTempFile(t, "too\tfew\tfields\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Entries()) != 0 {
		t.Errorf("expected malformed line to be skipped, got %d entries", len(tbl.Entries()))
	}
}

func TestLoad_UnknownFileReturnsError(t *testing.T) {
	if _, err := alias.Load("/nonexistent/path/aliases.txt"); err == nil {
		t.Error("expected an error for a nonexistent alias file")
	}
}

func TestResolve_UnknownNamePassesThrough(t *testing.T) {
	path := writeTempFile(t, "Last1\tFirst1\tMiddle1\t-\t-\t-\tLast2\tFirst2\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Resolve("Someone Else"); got != "Someone Else" {
		t.Errorf("Resolve(unknown) = %q, want unchanged input", got)
	}
}

func TestResolveCyrillic_OnlyAppliesToCyrillicNames(t *testing.T) {
	path := writeTempFile(t, "Чхартишвили\tГригорий\t-\t-\t-\t-\tAkunin\tBoris\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.ResolveCyrillic("Akunin Boris"); got != "Akunin Boris" {
		t.Errorf("ResolveCyrillic(latin) = %q, want unchanged (policy guard is Cyrillic-only)", got)
	}

	path2 := writeTempFile(t, "Last1\tFirst1\tMiddle1\t-\t-\t-\tАкунин\tБорис\n")
	tbl2, err := alias.Load(path2)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl2.ResolveCyrillic("Акунин Борис"); got != "Middle1 Last1 First1" {
		t.Errorf("ResolveCyrillic(cyrillic alias) = %q, want canonical form", got)
	}
}

func TestAliasOf_ReverseLookup(t *testing.T) {
	path := writeTempFile(t, "Last1\tFirst1\tMiddle1\t-\t-\t-\tLast2\tFirst2\n")
	tbl, err := alias.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := tbl.AliasOf("Middle1 Last1 First1")
	if !ok || got != "Last2 First2" {
		t.Errorf("AliasOf(canonical) = %q, %v, want %q, true", got, ok, "Last2 First2")
	}
}

func TestLoadDefault_ParsesEmbeddedTable(t *testing.T) {
	tbl, err := alias.LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Entries()) == 0 {
		t.Fatal("expected the embedded alias table to contain at least one entry")
	}
}
