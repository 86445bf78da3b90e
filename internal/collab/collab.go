// Package collab defines, but does not implement, the contracts spec.md §6
// assigns to the core's external collaborators: the components spec.md §1
// explicitly scopes out of the library metadata engine (FB2/EPUB parsing,
// archive iteration, OPDS/HTML rendering, cover caching). Keeping these as
// interfaces here, rather than concrete packages, is what makes
// internal/library demonstrably pluggable: the core depends on nothing
// below this package, and anything satisfying these contracts can drive it.
package collab

import (
	"context"
	"io"

	"tinyopds/internal/book"
)

// MetadataParser turns a raw file (or archive member) into a populated
// book.Book, per spec.md §6 "a metadata parser that returns a populated
// Book with stream-like access to the file prefix for content hashing".
// Implementations cover FB2 (natively) and EPUB (derivatively); neither is
// part of the core.
type MetadataParser interface {
	// Parse reads enough of r to populate a book.Book's bibliographic
	// fields (Title, Authors, Genres, ...). r must also support the seeking
	// GenerateContentHash needs, so implementations typically return an
	// io.ReadSeeker-backed Book alongside the parsed record rather than
	// consuming r to EOF.
	Parse(ctx context.Context, fileName string, r io.ReadSeeker) (*book.Book, error)
}

// FilesystemEnumerator streams the (relativePath, optional archive member)
// pairs that feed the Add path, per spec.md §6 "a filesystem enumerator
// that streams (relativePath, optional archiveMember) pairs". Archive
// iteration itself (zip/rar member listing) is an external collaborator,
// not core.
type FilesystemEnumerator interface {
	// Enumerate calls yield once per discovered file. archiveMember is ""
	// for a plain file, or the in-archive entry name for a member of a zip
	// (matching the "archive@entry" FileName convention book.Book uses).
	// Enumerate stops and returns yield's error if it returns one.
	Enumerate(ctx context.Context, root string, yield func(relativePath, archiveMember string) error) error
}

// OPDSLayer is the upper HTTP/OPDS/HTML layer that calls the facade's query
// API. spec.md §7 requires that exactly two failure conditions reach this
// layer as explicit, user-visible outcomes; every other query failure is
// absorbed by the facade and returned as an empty result.
type OPDSLayer interface {
	// BookNotFound reports the 404-equivalent: a requested book ID does not
	// exist in the catalog.
	BookNotFound(id string)
	// DownloadFileMissing reports the 410-equivalent: a catalog entry
	// exists but its backing file is no longer present on disk.
	DownloadFileMissing(id, fileName string)
}

// CoverCache persists per-Book cover image blobs keyed by ID, per spec.md §6
// "a cover cache that persists per-Book image blobs keyed by ID" and §6's
// CacheImagesInMemory / MaxRAMImageCacheSizeMB configuration surface.
type CoverCache interface {
	Get(id string) ([]byte, bool)
	Put(id string, data []byte) error
}
