package wire

import (
	"github.com/vmihailenco/msgpack/v5"
)

// DebugRecord is a human-friendly, MessagePack-encodable rendering of a WAL
// record's structured payload, used only by cmd/dbfs-debug to pretty-print
// a log file. The wire protocol itself never uses MessagePack — it is
// fixed-layout binary per spec.md §6 — this is purely an offline
// introspection aid, grounded on the teacher's wire.Message (which did use
// msgpack for the live protocol; here the same library instead serializes
// a decoded record for display).
type DebugRecord struct {
	LSN     uint64            `msgpack:"lsn"`
	TxID    uint64            `msgpack:"tx_id"`
	Kind    string            `msgpack:"kind"`
	Path    string            `msgpack:"path,omitempty"`
	Offset  uint64            `msgpack:"offset,omitempty"`
	Size    int               `msgpack:"size,omitempty"`
	Fields  map[string]string `msgpack:"fields,omitempty"`
}

// MarshalDebug round-trips a DebugRecord through MessagePack, returning the
// re-decoded value. cmd/dbfs-debug uses this to confirm payloads it is
// about to print are well-formed before rendering them as text.
func MarshalDebug(rec DebugRecord) (DebugRecord, error) {
	buf, err := msgpack.Marshal(rec)
	if err != nil {
		return DebugRecord{}, err
	}
	var out DebugRecord
	if err := msgpack.Unmarshal(buf, &out); err != nil {
		return DebugRecord{}, err
	}
	return out, nil
}
