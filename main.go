// Command tinyopds is a demo driver for the library metadata engine: it
// walks a directory of .fb2 files, sniffs just enough of each header to
// populate a book.Book, and feeds the result through
// library.Facade.AddFromStream.
// It is not the OPDS/HTML server spec.md §1 scopes out of the core — there
// is no FilesystemEnumerator, MetadataParser, or OPDSLayer implementation
// here, just enough glue to exercise Library end-to-end from the command
// line.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tinyopds/internal/book"
	"tinyopds/internal/config"
	"tinyopds/internal/library"
	"tinyopds/internal/logging"
	"tinyopds/internal/store"
)

func main() {
	var (
		libraryPath string
		debug       bool
	)
	flag.StringVar(&libraryPath, "library", "", "directory to scan for .fb2 books (defaults to config's library_path)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfgPath := config.FindConfigFile()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if libraryPath != "" {
		cfg.LibraryPath = libraryPath
	}
	if cfg.LogLevel == "debug" {
		debug = true
	}

	logger := logging.New(debug)
	if cfg.LogLevel == "none" {
		logger = logging.Nop()
	}
	defer logger.Sync() //nolint:errcheck

	lib, err := library.Open(cfg, logger)
	if err != nil {
		log.Fatalf("open library: %v", err)
	}
	defer lib.Close()

	summary, err := scan(lib, cfg.LibraryPath)
	if err != nil {
		log.Fatalf("scan %q: %v", cfg.LibraryPath, err)
	}

	stats := lib.Counts()
	fmt.Printf("scanned %q: %d added, %d duplicates, %d errors (%s)\n",
		cfg.LibraryPath, summary.added, summary.duplicates, summary.errors, summary.elapsed)
	fmt.Printf("catalog totals: %d books (%d FB2, %d EPUB), %d authors, %d sequences\n",
		stats.TotalBooks, stats.FB2Books, stats.EPUBBooks, stats.AuthorsCount, stats.SequencesCount)
}

type scanSummary struct {
	added, duplicates, errors int
	elapsed                   time.Duration
}

// scan walks root for .fb2 files, sniffs each one, and adds it to lib. A
// file that fails to sniff or fails Library's validity/dedup checks is
// counted, not fatal — one bad book must not stop the rest of a large
// directory from loading.
func scan(lib *library.Facade, root string) (scanSummary, error) {
	start := time.Now()
	var summary scanSummary

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".fb2") {
			return nil
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			summary.errors++
			return nil
		}
		defer f.Close()

		// The store relativizes FileName against the configured library
		// root again on AddBook (store.RelativizeFileName, OQ-3); passing
		// the already-relative form here just keeps sniffFB2's relName
		// argument (used for display and the untrusted-ID fallback) short.
		rel := store.RelativizeFileName(root, path)

		b, sniffErr := sniffFB2(rel, f)
		if sniffErr != nil {
			summary.errors++
			return nil
		}
		if info, statErr := d.Info(); statErr == nil {
			b.DocumentSize = uint64(info.Size())
		}

		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			summary.errors++
			return nil
		}
		inserted, addErr := lib.AddFromStream(b, f)
		switch {
		case addErr != nil:
			summary.errors++
		case inserted:
			summary.added++
		default:
			summary.duplicates++
		}
		return nil
	})
	summary.elapsed = time.Since(start)
	return summary, err
}

// fb2*Tag extract the flat text content of the handful of title-info
// fields this sniffer reads. A real MetadataParser collaborator
// (internal/collab) would use a proper XML decoder; this is deliberately
// the trivial built-in stand-in spec.md's demo CLI calls for.
var (
	fb2TitleTag  = regexp.MustCompile(`(?is)<book-title>(.*?)</book-title>`)
	fb2LangTag   = regexp.MustCompile(`(?is)<lang>(.*?)</lang>`)
	fb2GenreTag  = regexp.MustCompile(`(?is)<genre[^>]*>(.*?)</genre>`)
	fb2AuthorTag = regexp.MustCompile(`(?is)<author>(.*?)</author>`)
	fb2FirstName = regexp.MustCompile(`(?is)<first-name>(.*?)</first-name>`)
	fb2LastName  = regexp.MustCompile(`(?is)<last-name>(.*?)</last-name>`)
)

// sniffFB2 populates a book.Book from a plain regexp search over the
// first chunk of the file, rather than a real XML parse.
func sniffFB2(relName string, r io.Reader) (*book.Book, error) {
	head := make([]byte, 64*1024)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	head = head[:n]

	// ID is left unset here: Library.AddFromStream's prepareForInsert calls
	// SetID exactly once, treating b.ID ("" in this sniffer's case, since
	// the trivial regexp scan below does not look for a <document-info>
	// id) as the untrusted-candidate slot spec.md §4.1 describes.
	b := book.New(relName)

	if m := fb2TitleTag.FindSubmatch(head); m != nil {
		b.Title = strings.TrimSpace(string(m[1]))
	}
	if m := fb2LangTag.FindSubmatch(head); m != nil {
		b.Language = strings.TrimSpace(string(m[1]))
	}
	for _, m := range fb2AuthorTag.FindAllSubmatch(head, -1) {
		block := m[1]
		var first, last string
		if fm := fb2FirstName.FindSubmatch(block); fm != nil {
			first = strings.TrimSpace(string(fm[1]))
		}
		if lm := fb2LastName.FindSubmatch(block); lm != nil {
			last = strings.TrimSpace(string(lm[1]))
		}
		name := strings.TrimSpace(first + " " + last)
		if name != "" {
			b.Authors = append(b.Authors, name)
		}
	}
	for _, m := range fb2GenreTag.FindAllSubmatch(head, -1) {
		genre := strings.TrimSpace(string(m[1]))
		if genre != "" {
			b.Genres = append(b.Genres, genre)
		}
	}

	return b, nil
}
