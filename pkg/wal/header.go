package wal

import (
	"bytes"
	"encoding/binary"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
)

// HeaderSize is the fixed on-disk header size.
const HeaderSize = 512

var magic = [8]byte{'D', 'B', 'F', 'S', 'W', 'A', 'L', 0}

const version uint32 = 1

// Header is the fixed 512-byte WAL file header.
type Header struct {
	LastTxID      TxID
	CheckpointLSN LSN
}

// Encode writes the 512-byte header: magic(8) | version u32 | last_tx_id u64
// | checkpoint_lsn u64 | 484 reserved zero bytes.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], magic[:])
	binary.BigEndian.PutUint32(buf[8:12], version)
	binary.BigEndian.PutUint64(buf[12:20], uint64(h.LastTxID))
	binary.BigEndian.PutUint64(buf[20:28], uint64(h.CheckpointLSN))
	return buf
}

// DecodeHeader validates and parses a 512-byte header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, dbfserr.ErrCorrupt
	}
	if !bytes.Equal(buf[0:8], magic[:]) {
		return Header{}, dbfserr.ErrCorrupt
	}
	if binary.BigEndian.Uint32(buf[8:12]) != version {
		return Header{}, dbfserr.ErrCorrupt
	}
	return Header{
		LastTxID:      TxID(binary.BigEndian.Uint64(buf[12:20])),
		CheckpointLSN: LSN(binary.BigEndian.Uint64(buf[20:28])),
	}, nil
}
