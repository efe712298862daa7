package fs

import (
	"sync"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/wal"
)

// Session is a per-connection transaction context: at most one active TxId,
// installed by BeginTx and cleared by CommitTx/RollbackTx. This replaces
// the teacher's pkg/txn.Manager (a database-wide active-transaction table
// with snapshot-isolation conflict detection) with the much narrower shape
// spec.md §4.2 actually calls for — DBFS has no read/write-set tracking or
// conflict detection, only last-writer-wins under the shared WAL lock.
type Session struct {
	fs *Filesystem

	mu        sync.Mutex
	currentTx *wal.TxID
}

// BeginTx obtains a fresh TxId from the WAL and installs it as this
// session's active transaction, replacing any transaction that was already
// active (which remains open in the WAL and will surface as uncommitted on
// recovery).
func (s *Session) BeginTx() wal.TxID {
	tx := s.fs.engine.BeginTx()
	s.mu.Lock()
	s.currentTx = &tx
	s.mu.Unlock()
	return tx
}

// CommitTx commits tx and clears the session's active transaction. Fails
// with NoTx if tx does not equal the session's active transaction.
func (s *Session) CommitTx(tx wal.TxID) (wal.LSN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentTx == nil || *s.currentTx != tx {
		return 0, dbfserr.ErrNoTx
	}
	lsn, err := s.fs.engine.CommitTx(tx)
	if err != nil {
		return 0, err
	}
	s.currentTx = nil
	return lsn, nil
}

// RollbackTx rolls back tx and clears the session's active transaction.
// Fails with NoTx if tx does not equal the session's active transaction.
func (s *Session) RollbackTx(tx wal.TxID) (wal.LSN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentTx == nil || *s.currentTx != tx {
		return 0, dbfserr.ErrNoTx
	}
	lsn := s.fs.engine.RollbackTx(tx)
	s.currentTx = nil
	return lsn, nil
}

// Active returns the session's current transaction, if any.
func (s *Session) Active() (wal.TxID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentTx == nil {
		return 0, false
	}
	return *s.currentTx, true
}

// requireTx returns the session's active transaction or NoTx if none.
func (s *Session) requireTx() (wal.TxID, error) {
	tx, ok := s.Active()
	if !ok {
		return 0, dbfserr.ErrNoTx
	}
	return tx, nil
}
