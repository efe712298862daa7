package fs

import (
	"sync"

	"github.com/elledbfs/dbfs/pkg/storage"
)

// Kind distinguishes a file inode from a directory inode.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// DirEntry is a single (name, child_ino, kind) triple stored in a directory.
type DirEntry struct {
	Name string
	Ino  uint64
	Kind Kind
}

// Inode is the filesystem's handle for a file or directory, independent of
// its names. A file's body is paged through a per-inode BufferPool (see
// storage.BufferPool) backed by its own MemoryBackend; a directory's body
// is a name -> DirEntry map. Every inode carries its own RWMutex so
// concurrent operations on unrelated inodes never contend.
type Inode struct {
	mu   sync.RWMutex
	ino  uint64
	kind Kind
	perm uint16
	path string

	// file body
	backend *storage.MemoryBackend
	pool    *storage.BufferPool
	size    int64

	// directory body
	entries map[string]DirEntry
}

func newFileInode(ino uint64, path string, perm uint16) *Inode {
	backend := storage.NewMemory()
	return &Inode{
		ino:     ino,
		kind:    KindFile,
		perm:    perm,
		path:    path,
		backend: backend,
		pool:    storage.NewBufferPool(64, backend),
	}
}

func newDirInode(ino uint64, path string, perm uint16) *Inode {
	return &Inode{
		ino:     ino,
		kind:    KindDir,
		perm:    perm,
		path:    path,
		entries: make(map[string]DirEntry),
	}
}

// Ino returns the inode number.
func (in *Inode) Ino() uint64 { return in.ino }

// InodeType returns the inode's kind.
func (in *Inode) InodeType() Kind {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.kind
}

// NodePerm returns the inode's permission bits.
func (in *Inode) NodePerm() uint16 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.perm
}

// Path returns the inode's resolved absolute path.
func (in *Inode) Path() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.path
}

// Size returns the file's current byte length. Zero for directories.
func (in *Inode) Size() int64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.size
}

// readAt copies up to len(buf) bytes starting at offset into buf, returning
// the number of bytes copied. Returns 0 at or past EOF. readAt takes in.mu
// for reading itself, so the caller must not already hold it.
func (in *Inode) readAt(offset int64, buf []byte) int {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if offset >= in.size || len(buf) == 0 {
		return 0
	}

	n := 0
	for n < len(buf) {
		pos := offset + int64(n)
		if pos >= in.size {
			break
		}
		pageID := uint32(pos / storage.PageSize)
		pageOff := int(pos % storage.PageSize)

		page, err := in.pool.GetPage(pageID)
		if err != nil {
			break
		}
		avail := storage.PageSize - pageOff
		remaining := len(buf) - n
		untilEOF := int(in.size - pos)
		toCopy := min(avail, min(remaining, untilEOF))
		copy(buf[n:n+toCopy], page.Data()[pageOff:pageOff+toCopy])
		in.pool.Unpin(page)
		n += toCopy
	}
	return n
}

// writeAt overwrites bytes [offset, offset+len(data)) with data, growing the
// file and zero-filling any gap if offset is past the current size. Returns
// the number of bytes written (always len(data)).
func (in *Inode) writeAt(offset int64, data []byte) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	end := offset + int64(len(data))
	if end > in.size {
		in.size = end
	}

	n := 0
	for n < len(data) {
		pos := offset + int64(n)
		pageID := uint32(pos / storage.PageSize)
		pageOff := int(pos % storage.PageSize)

		page, err := in.pool.GetPage(pageID)
		if err != nil {
			break
		}
		avail := storage.PageSize - pageOff
		toCopy := min(avail, len(data)-n)
		copy(page.Data()[pageOff:pageOff+toCopy], data[n:n+toCopy])
		page.SetDirty(true)
		in.pool.Unpin(page)
		n += toCopy
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
