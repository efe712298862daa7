// Command dbfs-debug opens a WAL file directly, without starting a server,
// and dumps its records as human-readable lines. Useful for diagnosing a
// corrupt log. Adapted from the teacher's cmd/debug/main.go; structured
// payloads are round-tripped through MessagePack (pkg/wire.DebugRecord)
// purely for pretty-printing, independent of the fixed-binary wire
// protocol the live server speaks.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/elledbfs/dbfs/pkg/wal"
	"github.com/elledbfs/dbfs/pkg/wire"
)

func main() {
	path := flag.String("path", "", "path to a WAL file")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: dbfs-debug -path <wal file>")
		os.Exit(1)
	}

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, "dbfs-debug:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	backend, err := wal.NewFileBackend(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer backend.Close()

	header, records, err := backend.Replay()
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Printf("header: last_tx_id=%d checkpoint_lsn=%d\n", header.LastTxID, header.CheckpointLSN)
	fmt.Printf("records: %d\n", len(records))

	for _, rec := range records {
		dbg, err := describe(rec)
		if err != nil {
			fmt.Printf("lsn=%d tx=%d kind=%d <undecodable payload: %v>\n", rec.LSN, rec.TxID, rec.Kind, err)
			continue
		}
		printDebug(dbg)
	}
	return nil
}

func describe(rec wal.Record) (wire.DebugRecord, error) {
	dbg := wire.DebugRecord{LSN: uint64(rec.LSN), TxID: uint64(rec.TxID), Kind: kindName(rec.Kind)}

	switch rec.Kind {
	case wal.FileWrite:
		payload, err := wal.DecodeFileWrite(rec.Payload)
		if err != nil {
			return wire.DebugRecord{}, err
		}
		dbg.Path = payload.Path
		dbg.Offset = payload.Offset
		dbg.Size = len(payload.Data)
	case wal.FileCreate, wal.FileDelete, wal.Mkdir:
		dbg.Path = string(rec.Payload)
	}

	return wire.MarshalDebug(dbg)
}

func printDebug(d wire.DebugRecord) {
	fmt.Printf("lsn=%d tx=%d kind=%s", d.LSN, d.TxID, d.Kind)
	if d.Path != "" {
		fmt.Printf(" path=%s", d.Path)
	}
	if d.Offset != 0 {
		fmt.Printf(" offset=%d", d.Offset)
	}
	if d.Size != 0 {
		fmt.Printf(" size=%d", d.Size)
	}
	fmt.Println()
}

func kindName(k wal.Kind) string {
	switch k {
	case wal.TxBegin:
		return "TxBegin"
	case wal.TxCommit:
		return "TxCommit"
	case wal.TxRollback:
		return "TxRollback"
	case wal.FileWrite:
		return "FileWrite"
	case wal.FileCreate:
		return "FileCreate"
	case wal.FileDelete:
		return "FileDelete"
	case wal.Mkdir:
		return "Mkdir"
	case wal.Checkpoint:
		return "Checkpoint"
	default:
		return "Unknown"
	}
}
