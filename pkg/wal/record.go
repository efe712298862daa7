package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
)

// TxID is a process-wide monotonic transaction identifier allocated at BeginTx.
type TxID uint64

func (t TxID) String() string {
	return "TX-" + itoa(uint64(t))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// LSN is a monotonic, globally unique Log Sequence Number.
type LSN uint64

// Kind enumerates the record kinds a WAL record may carry.
type Kind uint8

const (
	TxBegin    Kind = 1
	TxCommit   Kind = 2
	TxRollback Kind = 3
	FileWrite  Kind = 4
	FileCreate Kind = 5
	FileDelete Kind = 6
	Mkdir      Kind = 7
	Checkpoint Kind = 8
)

func (k Kind) valid() bool {
	return k >= TxBegin && k <= Checkpoint
}

// Record is a single append-only WAL entry.
type Record struct {
	LSN      LSN
	TxID     TxID
	Kind     Kind
	Payload  []byte
	Checksum uint32
}

// checksum computes the CRC-32 (IEEE polynomial 0xEDB88320, init 0xFFFFFFFF,
// one's-complement output) over payload bytes only.
func checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// NewRecord builds a record with its checksum already populated; LSN is
// assigned by the engine at append time.
func NewRecord(tx TxID, kind Kind, payload []byte) Record {
	return Record{
		TxID:     tx,
		Kind:     kind,
		Payload:  payload,
		Checksum: checksum(payload),
	}
}

// Verify reports whether the record's checksum matches its payload.
func (r Record) Verify() bool {
	return checksum(r.Payload) == r.Checksum
}

// Encode serializes a record as:
// lsn u64 | tx_id u64 | kind u8 | data_len u32 | data | checksum u32
func (r Record) Encode() []byte {
	buf := make([]byte, 8+8+1+4+len(r.Payload)+4)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.LSN))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.TxID))
	buf[16] = byte(r.Kind)
	binary.BigEndian.PutUint32(buf[17:21], uint32(len(r.Payload)))
	copy(buf[21:], r.Payload)
	binary.BigEndian.PutUint32(buf[21+len(r.Payload):], r.Checksum)
	return buf
}

// EncodedLen returns the serialized size of the record.
func (r Record) EncodedLen() int {
	return 8 + 8 + 1 + 4 + len(r.Payload) + 4
}

// DecodeRecord parses a single record from the front of buf, returning the
// record and the number of bytes consumed. ok is false if buf does not hold
// a complete, well-formed, checksum-valid record (a torn trailing write).
func DecodeRecord(buf []byte) (rec Record, n int, ok bool) {
	const fixed = 8 + 8 + 1 + 4
	if len(buf) < fixed {
		return Record{}, 0, false
	}
	lsn := binary.BigEndian.Uint64(buf[0:8])
	txID := binary.BigEndian.Uint64(buf[8:16])
	kind := Kind(buf[16])
	dataLen := binary.BigEndian.Uint32(buf[17:21])
	total := fixed + int(dataLen) + 4
	if !kind.valid() || len(buf) < total {
		return Record{}, 0, false
	}
	data := make([]byte, dataLen)
	copy(data, buf[21:21+dataLen])
	sum := binary.BigEndian.Uint32(buf[21+dataLen : total])

	rec = Record{
		LSN:      LSN(lsn),
		TxID:     TxID(txID),
		Kind:     kind,
		Payload:  data,
		Checksum: sum,
	}
	if !rec.Verify() {
		return Record{}, 0, false
	}
	return rec, total, true
}

// EncodeFileWrite builds the payload for a FileWrite record:
// u16 path_len | path_bytes | u64 offset | u32 data_len | data_bytes
func EncodeFileWrite(path string, offset uint64, data []byte) []byte {
	pb := []byte(path)
	buf := make([]byte, 2+len(pb)+8+4+len(data))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(pb)))
	copy(buf[2:], pb)
	off := 2 + len(pb)
	binary.BigEndian.PutUint64(buf[off:off+8], offset)
	binary.BigEndian.PutUint32(buf[off+8:off+12], uint32(len(data)))
	copy(buf[off+12:], data)
	return buf
}

// FileWritePayload is the decoded form of a FileWrite record's payload.
type FileWritePayload struct {
	Path   string
	Offset uint64
	Data   []byte
}

// DecodeFileWrite parses a FileWrite record payload.
func DecodeFileWrite(payload []byte) (FileWritePayload, error) {
	if len(payload) < 2 {
		return FileWritePayload{}, dbfserr.ErrCorrupt
	}
	pathLen := int(binary.BigEndian.Uint16(payload[0:2]))
	if len(payload) < 2+pathLen+8+4 {
		return FileWritePayload{}, dbfserr.ErrCorrupt
	}
	path := string(payload[2 : 2+pathLen])
	off := 2 + pathLen
	offset := binary.BigEndian.Uint64(payload[off : off+8])
	dataLen := int(binary.BigEndian.Uint32(payload[off+8 : off+12]))
	if len(payload) < off+12+dataLen {
		return FileWritePayload{}, dbfserr.ErrCorrupt
	}
	data := make([]byte, dataLen)
	copy(data, payload[off+12:off+12+dataLen])
	return FileWritePayload{Path: path, Offset: offset, Data: data}, nil
}
