// Package fs implements DBFS's transactional inode tree: a directory/file
// hierarchy whose mutations are always mediated by a WAL record (see
// pkg/wal). It is grounded on the donor OS's alien_integration inode model
// (original_source/.../inode.rs), re-expressed with Go mutexes in place of
// the source's process-wide CURRENT_TX slot.
package fs

import (
	"sort"
	"strings"
	"sync"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/wal"
)

const (
	rootIno     = 1
	defaultPerm = 0644
	dirPerm     = 0755
)

// Filesystem is the shared inode tree. A single Filesystem backs every
// session the protocol server accepts; WAL mutations go through the shared
// *wal.Engine, while directory/file state lives in the inodes map below.
type Filesystem struct {
	engine *wal.Engine

	mu      sync.RWMutex
	inodes  map[uint64]*Inode
	parent  map[uint64]uint64 // child ino -> parent ino; never a direct pointer to the parent Inode
	nextIno uint64
}

// New builds a Filesystem rooted at ino 1, "/", over engine.
func New(engine *wal.Engine) *Filesystem {
	root := newDirInode(rootIno, "/", dirPerm)
	fs := &Filesystem{
		engine:  engine,
		inodes:  map[uint64]*Inode{rootIno: root},
		parent:  map[uint64]uint64{rootIno: rootIno},
		nextIno: 2,
	}
	return fs
}

// NewSession opens a fresh per-connection transaction context over fs.
func (fs *Filesystem) NewSession() *Session {
	return &Session{fs: fs}
}

func (fs *Filesystem) allocIno() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextIno
	fs.nextIno++
	return ino
}

func (fs *Filesystem) get(ino uint64) (*Inode, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	in, ok := fs.inodes[ino]
	return in, ok
}

func (fs *Filesystem) parentOf(ino uint64) uint64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if p, ok := fs.parent[ino]; ok {
		return p
	}
	return rootIno
}

func childPath(parentPath, name string) string {
	if parentPath == "/" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// Lookup resolves name within the directory parentIno. "." resolves to
// parentIno itself; ".." resolves to parentIno's parent (root's parent is
// root). Read-only: no WAL record, no transaction required.
func (fs *Filesystem) Lookup(parentIno uint64, name string) (*Inode, error) {
	parent, ok := fs.get(parentIno)
	if !ok {
		return nil, dbfserr.ErrNoEntry
	}
	parent.mu.RLock()
	if parent.kind != KindDir {
		parent.mu.RUnlock()
		return nil, dbfserr.ErrNotDir
	}
	parent.mu.RUnlock()

	switch name {
	case ".":
		return parent, nil
	case "..":
		pp := fs.parentOf(parentIno)
		in, ok := fs.get(pp)
		if !ok {
			return nil, dbfserr.ErrNoEntry
		}
		return in, nil
	}

	parent.mu.RLock()
	entry, ok := parent.entries[name]
	parent.mu.RUnlock()
	if !ok {
		return nil, dbfserr.ErrNoEntry
	}
	child, ok := fs.get(entry.Ino)
	if !ok {
		return nil, dbfserr.ErrNoEntry
	}
	return child, nil
}

// Create adds a new file or directory entry named name inside parentIno,
// recording FileCreate or Mkdir in the WAL. name must be non-empty and not
// already present.
func (fs *Filesystem) Create(s *Session, parentIno uint64, name string, kind Kind) (*Inode, error) {
	tx, err := s.requireTx()
	if err != nil {
		return nil, err
	}
	if name == "" || name == "." || name == ".." {
		return nil, dbfserr.ErrExists
	}

	parent, ok := fs.get(parentIno)
	if !ok {
		return nil, dbfserr.ErrNoEntry
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != KindDir {
		return nil, dbfserr.ErrNotDir
	}
	if _, exists := parent.entries[name]; exists {
		return nil, dbfserr.ErrExists
	}

	ino := fs.allocIno()
	path := childPath(parent.path, name)

	var child *Inode
	if kind == KindDir {
		fs.engine.Mkdir(tx, path)
		child = newDirInode(ino, path, dirPerm)
	} else {
		fs.engine.CreateFile(tx, path)
		child = newFileInode(ino, path, defaultPerm)
	}

	fs.mu.Lock()
	fs.inodes[ino] = child
	fs.parent[ino] = parentIno
	fs.mu.Unlock()

	parent.entries[name] = DirEntry{Name: name, Ino: ino, Kind: kind}
	return child, nil
}

// Unlink removes the directory entry name from parentIno, recording
// FileDelete. rmdir is an alias of Unlink: directory emptiness is not
// checked, matching the source's permissive behavior (see DESIGN.md).
func (fs *Filesystem) Unlink(s *Session, parentIno uint64, name string) (wal.LSN, error) {
	tx, err := s.requireTx()
	if err != nil {
		return 0, err
	}
	if name == "." || name == ".." {
		return 0, dbfserr.ErrExists
	}

	parent, ok := fs.get(parentIno)
	if !ok {
		return 0, dbfserr.ErrNoEntry
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	if parent.kind != KindDir {
		return 0, dbfserr.ErrNotDir
	}
	entry, exists := parent.entries[name]
	if !exists {
		return 0, dbfserr.ErrNoEntry
	}

	path := childPath(parent.path, name)
	lsn := fs.engine.DeleteFile(tx, path)

	delete(parent.entries, name)
	fs.mu.Lock()
	delete(fs.inodes, entry.Ino)
	delete(fs.parent, entry.Ino)
	fs.mu.Unlock()

	return lsn, nil
}

// Rmdir is an alias of Unlink (see Design Notes: the source's rmdir does
// not check for emptiness, and this implementation pins that behavior).
func (fs *Filesystem) Rmdir(s *Session, parentIno uint64, name string) (wal.LSN, error) {
	return fs.Unlink(s, parentIno, name)
}

// ReadAt reads up to len(buf) bytes from ino starting at offset. Read-only;
// no transaction required.
func (fs *Filesystem) ReadAt(ino uint64, offset int64, buf []byte) (int, error) {
	in, ok := fs.get(ino)
	if !ok {
		return 0, dbfserr.ErrNoEntry
	}
	if in.InodeType() != KindFile {
		return 0, dbfserr.ErrIsDir
	}
	return in.readAt(offset, buf), nil
}

// WriteAt overwrites ino's body at offset with data, recording FileWrite.
// The body grows to max(size, offset+len(data)) with any gap zero-filled.
func (fs *Filesystem) WriteAt(s *Session, ino uint64, offset int64, data []byte) (int, wal.LSN, error) {
	tx, err := s.requireTx()
	if err != nil {
		return 0, 0, err
	}

	in, ok := fs.get(ino)
	if !ok {
		return 0, 0, dbfserr.ErrNoEntry
	}
	if in.InodeType() != KindFile {
		return 0, 0, dbfserr.ErrIsDir
	}

	lsn := fs.engine.WriteFile(tx, in.Path(), uint64(offset), data)
	n := in.writeAt(offset, data)
	return n, lsn, nil
}

// Readdir returns ino's directory entries. Ordering is deterministic
// (lexicographic by name) but otherwise unspecified by the contract.
func (fs *Filesystem) Readdir(ino uint64) ([]DirEntry, error) {
	in, ok := fs.get(ino)
	if !ok {
		return nil, dbfserr.ErrNoEntry
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.kind != KindDir {
		return nil, dbfserr.ErrNotDir
	}

	out := make([]DirEntry, 0, len(in.entries))
	for _, e := range in.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetAttr returns (kind, perm, size) for ino.
func (fs *Filesystem) GetAttr(ino uint64) (Kind, uint16, int64, error) {
	in, ok := fs.get(ino)
	if !ok {
		return 0, 0, 0, dbfserr.ErrNoEntry
	}
	return in.InodeType(), in.NodePerm(), in.Size(), nil
}

// ResolvePath walks a "/"-separated absolute path from the root, returning
// the final component's inode. Used by the protocol server, whose requests
// address files by path rather than by ino.
func (fs *Filesystem) ResolvePath(path string) (*Inode, error) {
	if path == "" || path == "/" {
		in, _ := fs.get(rootIno)
		return in, nil
	}
	cur := uint64(rootIno)
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		child, err := fs.Lookup(cur, part)
		if err != nil {
			return nil, err
		}
		cur = child.Ino()
	}
	in, _ := fs.get(cur)
	return in, nil
}

// The remaining VFS surface (set_attr, update_time, list_xattr, truncate,
// link, symlink, readlink, rename_to) is an explicit non-goal: every one of
// these deliberately returns Unsupported rather than a partial or faked
// implementation.

func (fs *Filesystem) SetAttr(uint64) error    { return dbfserr.ErrUnsupported }
func (fs *Filesystem) UpdateTime(uint64) error { return dbfserr.ErrUnsupported }
func (fs *Filesystem) ListXattr(uint64) error  { return dbfserr.ErrUnsupported }
func (fs *Filesystem) Truncate(uint64) error   { return dbfserr.ErrUnsupported }
func (fs *Filesystem) Link(uint64) error       { return dbfserr.ErrUnsupported }
func (fs *Filesystem) Symlink(uint64) error    { return dbfserr.ErrUnsupported }
func (fs *Filesystem) Readlink(uint64) error   { return dbfserr.ErrUnsupported }
func (fs *Filesystem) RenameTo(uint64) error   { return dbfserr.ErrUnsupported }
