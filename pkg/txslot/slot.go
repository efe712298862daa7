// Package txslot is a standalone, reference-only reconstruction of the
// donor OS's ambient "current transaction" global: a single process-wide
// slot shared by every caller, rather than one slot per session. It exists
// purely to document and test the legacy shape described in spec.md's
// Design Notes (original_source/.../inode.rs's CURRENT_TX mutex and its
// begin_tx retry loop) — the live server path in pkg/server uses
// pkg/fs.Session instead, which keeps one slot per connection.
//
// New implementations should not reach for this package; it is kept as
// adapted reference code, not as infrastructure anything in this repo
// depends on for correctness.
package txslot

import (
	"runtime"
	"sync"

	"github.com/elledbfs/dbfs/pkg/wal"
)

// MaxSpinAttempts is the number of non-blocking attempts Acquire makes
// before falling back to a blocking lock, mirroring the source's
// MAX_TX_RETRY constant.
const MaxSpinAttempts = 5

// Slot is a single process-wide "current transaction" cell.
type Slot struct {
	mu      sync.Mutex
	current *wal.TxID
}

// New returns an empty slot.
func New() *Slot {
	return &Slot{}
}

// Acquire installs tx as the slot's current transaction. It first attempts
// MaxSpinAttempts non-blocking TryLocks (yielding the processor between
// attempts via runtime.Gosched), then falls back to a blocking Lock. This
// reproduces the source's spin-then-block pattern; it does not detect or
// resolve a slot that is already occupied by a different transaction — the
// last caller to acquire wins, exactly as in the donor implementation.
func (s *Slot) Acquire(tx wal.TxID) {
	for i := 0; i < MaxSpinAttempts; i++ {
		if s.mu.TryLock() {
			s.current = &tx
			s.mu.Unlock()
			return
		}
		runtime.Gosched()
	}
	s.mu.Lock()
	s.current = &tx
	s.mu.Unlock()
}

// Release clears the slot if it currently holds tx.
func (s *Slot) Release(tx wal.TxID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && *s.current == tx {
		s.current = nil
	}
}

// Current returns the slot's active transaction, if any.
func (s *Slot) Current() (wal.TxID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}
