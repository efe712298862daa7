package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
)

// OpType is the numeric request tag carried in every request frame.
type OpType uint8

const (
	OpBeginTx OpType = iota + 1
	OpWriteFile
	OpCreateFile
	OpDeleteFile
	OpMkdir
	OpReaddir
	OpCommitTx
	OpRollbackTx
)

func (op OpType) valid() bool {
	return op >= OpBeginTx && op <= OpRollbackTx
}

// Request is the decoded form of a request frame's body:
// tx_id u64 | op_type u8 | path_len u16 | path_bytes | offset u64 | data_len u32 | data_bytes
type Request struct {
	TxID   uint64
	Op     OpType
	Path   string
	Offset uint64
	Data   []byte
}

// Encode serializes a Request to its wire form.
func (r Request) Encode() []byte {
	pb := []byte(r.Path)
	buf := make([]byte, 8+1+2+len(pb)+8+4+len(r.Data))
	off := 0
	binary.BigEndian.PutUint64(buf[off:], r.TxID)
	off += 8
	buf[off] = byte(r.Op)
	off++
	binary.BigEndian.PutUint16(buf[off:], uint16(len(pb)))
	off += 2
	copy(buf[off:], pb)
	off += len(pb)
	binary.BigEndian.PutUint64(buf[off:], r.Offset)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Data)))
	off += 4
	copy(buf[off:], r.Data)
	return buf
}

// DecodeRequest parses a request frame body.
func DecodeRequest(body []byte) (Request, error) {
	const fixed = 8 + 1 + 2
	if len(body) < fixed {
		return Request{}, dbfserr.ErrShortFrame
	}
	off := 0
	txID := binary.BigEndian.Uint64(body[off:])
	off += 8
	op := OpType(body[off])
	off++
	if !op.valid() {
		return Request{}, dbfserr.ErrBadOpCode
	}
	pathLen := int(binary.BigEndian.Uint16(body[off:]))
	off += 2
	if len(body) < off+pathLen+8+4 {
		return Request{}, dbfserr.ErrShortFrame
	}
	pathBytes := body[off : off+pathLen]
	if !utf8.Valid(pathBytes) {
		return Request{}, dbfserr.ErrBadUtf8
	}
	path := string(pathBytes)
	off += pathLen
	offset := binary.BigEndian.Uint64(body[off:])
	off += 8
	dataLen := int(binary.BigEndian.Uint32(body[off:]))
	off += 4
	if len(body) < off+dataLen {
		return Request{}, dbfserr.ErrShortFrame
	}
	data := make([]byte, dataLen)
	copy(data, body[off:off+dataLen])

	return Request{TxID: txID, Op: op, Path: path, Offset: offset, Data: data}, nil
}

// Response is the decoded form of a response frame's body:
// tx_id u64 | status i32 | lsn u64 | data_len u32 | data_bytes
type Response struct {
	TxID   uint64
	Status dbfserr.Status
	LSN    uint64
	Data   []byte
}

// Encode serializes a Response to its wire form.
func (r Response) Encode() []byte {
	buf := make([]byte, 8+4+8+4+len(r.Data))
	off := 0
	binary.BigEndian.PutUint64(buf[off:], r.TxID)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(int32(r.Status)))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], r.LSN)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Data)))
	off += 4
	copy(buf[off:], r.Data)
	return buf
}

// DecodeResponse parses a response frame body.
func DecodeResponse(body []byte) (Response, error) {
	const fixed = 8 + 4 + 8 + 4
	if len(body) < fixed {
		return Response{}, dbfserr.ErrShortFrame
	}
	off := 0
	txID := binary.BigEndian.Uint64(body[off:])
	off += 8
	status := dbfserr.Status(int32(binary.BigEndian.Uint32(body[off:])))
	off += 4
	lsn := binary.BigEndian.Uint64(body[off:])
	off += 8
	dataLen := int(binary.BigEndian.Uint32(body[off:]))
	off += 4
	if len(body) < off+dataLen {
		return Response{}, dbfserr.ErrShortFrame
	}
	data := make([]byte, dataLen)
	copy(data, body[off:off+dataLen])
	return Response{TxID: txID, Status: status, LSN: lsn, Data: data}, nil
}
