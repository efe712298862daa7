package storage

import "errors"

// PageSize is the fixed page granularity used to cache a file inode's body.
// Unlike the teacher's slotted B+Tree page (which carried an in-band header,
// free-space pointers, and a cell directory describing how the rest of the
// bytes were laid out for catalog storage), a DBFS file-content page is
// opaque: it is simply a PageSize-byte window into the file's byte stream.
// Identity (which page index) and lifecycle state (dirty, pinned) live in
// BufferPool's CachedPage wrapper, not in-band in the page bytes.
const PageSize = 4096

var ErrInvalidPageID = errors.New("invalid page ID")

// NewPageData returns a zero-filled, PageSize-byte buffer for a fresh page.
func NewPageData() []byte {
	return make([]byte, PageSize)
}
