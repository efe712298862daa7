// Package wal implements DBFS's write-ahead log: a monotonic, checksummed,
// append-only record stream with commit/rollback markers, truncation, and
// replay-based recovery. It is backend-agnostic; see backend.go for the two
// concrete backends (in-memory and file-backed).
package wal

import (
	"fmt"
	"sync"
)

// txState tracks a transaction's terminal marker while scanning records.
type txState uint8

const (
	txOpen txState = iota
	txCommitted
	txRolled
)

// RecoveryResult is the outcome of Recover: committed and uncommitted
// transaction ids. A rolled-back transaction appears in neither set.
type RecoveryResult struct {
	Committed   []TxID
	Uncommitted []TxID
}

// Engine is the shared, mutex-guarded WAL. All appends, flushes,
// truncations, and flushed-LSN reads go through it.
type Engine struct {
	mu         sync.Mutex
	backend    *Backend
	records    []Record // records replayed at Open plus every record appended since, pending or durable
	nextLSN    LSN
	flushedLSN LSN
	nextTxID   TxID
	checkpoint LSN
}

// Open constructs an Engine over backend, replaying any existing durable
// records to recover next-LSN/next-TxID continuity across restarts.
func Open(backend *Backend) (*Engine, error) {
	header, records, err := backend.Replay()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		backend:    backend,
		records:    records,
		nextTxID:   header.LastTxID + 1,
		checkpoint: header.CheckpointLSN,
	}
	if header.LastTxID == 0 {
		e.nextTxID = 1
	}

	var maxLSN LSN
	for _, r := range records {
		if r.LSN > maxLSN {
			maxLSN = r.LSN
		}
	}
	e.nextLSN = maxLSN + 1
	e.flushedLSN = maxLSN
	return e, nil
}

func (e *Engine) header() Header {
	return Header{LastTxID: e.nextTxID - 1, CheckpointLSN: e.checkpoint}
}

// append allocates the next LSN under the engine's lock and stages the
// record into the pending buffer. Callers must hold e.mu.
func (e *Engine) append(rec Record) Record {
	rec.LSN = e.nextLSN
	e.nextLSN++
	e.records = append(e.records, rec)
	return rec
}

// BeginTx allocates a fresh TxID and appends its TxBegin record.
func (e *Engine) BeginTx() TxID {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := e.nextTxID
	e.nextTxID++
	e.append(NewRecord(tx, TxBegin, nil))
	return tx
}

// CommitTx appends a TxCommit record and forces a flush. The transaction is
// not durable — and the caller must treat it as aborted — if flush fails.
func (e *Engine) CommitTx(tx TxID) (LSN, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.append(NewRecord(tx, TxCommit, nil))
	if err := e.flushLocked(); err != nil {
		return 0, err
	}
	return rec.LSN, nil
}

// RollbackTx appends a TxRollback record. Flush is not forced.
func (e *Engine) RollbackTx(tx TxID) LSN {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.append(NewRecord(tx, TxRollback, nil))
	return rec.LSN
}

// WriteFile appends a FileWrite record.
func (e *Engine) WriteFile(tx TxID, path string, offset uint64, data []byte) LSN {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.append(NewRecord(tx, FileWrite, EncodeFileWrite(path, offset, data)))
	return rec.LSN
}

// CreateFile appends a FileCreate record.
func (e *Engine) CreateFile(tx TxID, path string) LSN {
	return e.appendPath(tx, FileCreate, path)
}

// DeleteFile appends a FileDelete record.
func (e *Engine) DeleteFile(tx TxID, path string) LSN {
	return e.appendPath(tx, FileDelete, path)
}

// Mkdir appends a Mkdir record.
func (e *Engine) Mkdir(tx TxID, path string) LSN {
	return e.appendPath(tx, Mkdir, path)
}

func (e *Engine) appendPath(tx TxID, kind Kind, path string) LSN {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.append(NewRecord(tx, kind, []byte(path)))
	return rec.LSN
}

// Flush persists every not-yet-durable record to the backend and raises
// FlushedLSN to the last buffered LSN.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	for _, r := range e.records {
		if r.LSN <= e.flushedLSN {
			continue
		}
		if err := e.backend.Append(r); err != nil {
			return err
		}
	}
	if err := e.backend.Flush(e.header()); err != nil {
		return err
	}
	if len(e.records) > 0 {
		e.flushedLSN = e.records[len(e.records)-1].LSN
	}
	return nil
}

// FlushedLSN returns the highest LSN durable on the backend.
func (e *Engine) FlushedLSN() LSN {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushedLSN
}

// NextTxID returns the TxID that will be allocated by the next BeginTx.
func (e *Engine) NextTxID() TxID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextTxID
}

// GetTxRecords returns every record appended so far for tx, pending or
// durable — useful for in-process consistency tests.
func (e *Engine) GetTxRecords(tx TxID) []Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Record
	for _, r := range e.records {
		if r.TxID == tx {
			out = append(out, r)
		}
	}
	return out
}

// Recover runs the deterministic single-pass recovery algorithm over every
// record the engine currently knows about (durable and still-pending),
// classifying each transaction as committed, uncommitted, or rolled back.
// Rolled-back transactions appear in neither returned set. Calling Recover
// twice without intervening appends yields the same sets; the order of the
// ids within each slice is not defined.
func (e *Engine) Recover() RecoveryResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	states := make(map[TxID]txState)
	for _, r := range e.records {
		switch r.Kind {
		case TxBegin:
			states[r.TxID] = txOpen
		case TxCommit:
			states[r.TxID] = txCommitted
		case TxRollback:
			states[r.TxID] = txRolled
		default:
			// operation records do not affect transaction state
		}
	}

	var result RecoveryResult
	for tx, st := range states {
		switch st {
		case txCommitted:
			result.Committed = append(result.Committed, tx)
		case txOpen:
			result.Uncommitted = append(result.Uncommitted, tx)
		case txRolled:
			// appears in neither set
		}
	}
	return result
}

// Truncate drops every record with LSN < bound and advances the checkpoint
// to bound-1.
func (e *Engine) Truncate(bound LSN) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bound > 0 {
		e.checkpoint = bound - 1
	}
	if err := e.backend.Truncate(bound, e.header()); err != nil {
		return fmt.Errorf("%w", err)
	}

	kept := e.records[:0:0]
	for _, r := range e.records {
		if r.LSN >= bound {
			kept = append(kept, r)
		}
	}
	e.records = kept
	return nil
}

// Close flushes and releases the backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.flushLocked(); err != nil {
		return err
	}
	return e.backend.Close()
}

// IsPersistent reports whether this engine's backend durably commits data.
func (e *Engine) IsPersistent() bool {
	return e.backend.IsPersistent()
}
