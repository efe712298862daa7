package wal

import (
	"bytes"
	"fmt"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/storage"
	"github.com/natefinch/atomic"
)

// Backend is the WAL engine's narrow capability set over a durable medium:
// append a record, flush buffered records, replay the log from scratch, and
// truncate it at an LSN bound. Exactly two concrete variants exist — an
// in-memory one (Flush is a no-op, IsPersistent is false) and a file-backed
// one (Flush fsyncs, IsPersistent is true) — both built on the same raw
// byte-addressable storage.Backend the rest of the package uses for file
// bodies, so there is no separate plugin mechanism to maintain.
type Backend struct {
	raw         storage.Backend
	persistent  bool
	path        string // non-empty only for the file-backed variant
	wroteHeader bool
	lastAppend  LSN
	durableLSN  LSN
}

// NewMemoryBackend returns an in-memory WAL backend. Flush is a no-op that
// advances the durable LSN; nothing survives process exit.
func NewMemoryBackend() *Backend {
	return &Backend{raw: storage.NewMemory(), persistent: false}
}

// NewFileBackend opens or creates a file-backed WAL backend at path. Flush
// always fsyncs; IsPersistent reports true.
func NewFileBackend(path string) (*Backend, error) {
	raw, err := storage.OpenDisk(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open backend: %w", err)
	}
	b := &Backend{raw: raw, persistent: true, path: path}
	if raw.Size() >= HeaderSize {
		b.wroteHeader = true
	}
	return b, nil
}

// IsPersistent reports whether Flush durably commits data to stable media.
func (b *Backend) IsPersistent() bool { return b.persistent }

// DurableLSN returns the highest LSN known to be durable.
func (b *Backend) DurableLSN() LSN { return b.durableLSN }

// Append stages a record's encoded bytes past the end of the log. The bytes
// are visible to a subsequent Replay call even before Flush, mirroring the
// engine's own pending-buffer visibility rule; only Flush claims durability.
func (b *Backend) Append(rec Record) error {
	if !b.wroteHeader {
		if _, err := b.raw.WriteAt(Header{}.Encode(), 0); err != nil {
			return fmt.Errorf("wal: write header: %w", dbfserr.ErrIo)
		}
		b.wroteHeader = true
	}
	buf := rec.Encode()
	off := b.raw.Size()
	if off < HeaderSize {
		off = HeaderSize
	}
	if _, err := b.raw.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: append record: %v", dbfserr.ErrIo, err)
	}
	b.lastAppend = rec.LSN
	return nil
}

// Flush rewrites the header with the given fields and syncs the backend.
func (b *Backend) Flush(header Header) error {
	if _, err := b.raw.WriteAt(header.Encode(), 0); err != nil {
		return fmt.Errorf("%w: write header: %v", dbfserr.ErrIo, err)
	}
	if err := b.raw.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", dbfserr.ErrIo, err)
	}
	b.durableLSN = b.lastAppend
	return nil
}

// Replay reads the header and every well-formed, checksum-valid record from
// the backend. A corrupt or torn trailing record stops the scan; everything
// decoded up to that point is returned with a nil error (per spec: a CRC
// mismatch is treated as end-of-log, not a hard failure). A backend shorter
// than the header replays as empty; a header with the wrong magic or
// version is fatal.
func (b *Backend) Replay() (Header, []Record, error) {
	size := b.raw.Size()
	if size == 0 {
		return Header{}, nil, nil
	}
	if size < HeaderSize {
		return Header{}, nil, nil
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := b.raw.ReadAt(headerBuf, 0); err != nil {
		return Header{}, nil, fmt.Errorf("%w: read header: %v", dbfserr.ErrIo, err)
	}
	header, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}

	body := make([]byte, size-HeaderSize)
	if len(body) > 0 {
		if _, err := b.raw.ReadAt(body, HeaderSize); err != nil {
			return Header{}, nil, fmt.Errorf("%w: read records: %v", dbfserr.ErrIo, err)
		}
	}

	var records []Record
	for len(body) > 0 {
		rec, n, ok := DecodeRecord(body)
		if !ok {
			break // torn trailing write: stop here, discard the remainder
		}
		records = append(records, rec)
		body = body[n:]
	}
	return header, records, nil
}

// Truncate drops every record with LSN < bound and rewrites the backend so
// that only the retained records (plus a fresh header reflecting the new
// checkpoint) remain. For the file-backed variant the rewrite is atomic
// (github.com/natefinch/atomic), so a crash mid-truncate never leaves a
// half-written log.
func (b *Backend) Truncate(bound LSN, header Header) error {
	_, records, err := b.Replay()
	if err != nil {
		return err
	}

	kept := records[:0:0]
	for _, r := range records {
		if r.LSN >= bound {
			kept = append(kept, r)
		}
	}

	var out bytes.Buffer
	out.Write(header.Encode())
	for _, r := range kept {
		out.Write(r.Encode())
	}

	if b.persistent {
		if err := atomic.WriteFile(b.path, bytes.NewReader(out.Bytes())); err != nil {
			return fmt.Errorf("%w: atomic truncate rewrite: %v", dbfserr.ErrIo, err)
		}
		reopened, err := storage.OpenDisk(b.path)
		if err != nil {
			return fmt.Errorf("%w: reopen after truncate: %v", dbfserr.ErrIo, err)
		}
		b.raw = reopened
	} else {
		if err := b.raw.Truncate(0); err != nil {
			return err
		}
		if _, err := b.raw.WriteAt(out.Bytes(), 0); err != nil {
			return err
		}
	}

	b.wroteHeader = true
	if len(kept) > 0 {
		b.lastAppend = kept[len(kept)-1].LSN
	}
	b.durableLSN = b.lastAppend
	return nil
}

// Close releases the backend's underlying resource.
func (b *Backend) Close() error {
	return b.raw.Close()
}
