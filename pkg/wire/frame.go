// Package wire implements DBFS's length-prefixed binary protocol: frame
// codec, request/response encoding, and op codes. Grounded on the
// teacher's pkg/wire/protocol.go (same request/response shape, same
// dispatch-by-tag idea) but re-keyed from MessagePack envelopes to the
// spec's fixed big-endian binary layout.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
)

// MaxFrameBytes is the default maximum frame body size (10 MiB).
const MaxFrameBytes = 10 * 1024 * 1024

// ReadFrame reads a u32 big-endian length prefix followed by exactly that
// many body bytes from r. maxBytes bounds the accepted length; a frame
// exceeding it yields ErrFrameTooLarge, and a zero-length frame yields
// ErrShortFrame.
func ReadFrame(r io.Reader, maxBytes uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return nil, dbfserr.ErrShortFrame
	}
	if length > maxBytes {
		return nil, dbfserr.ErrFrameTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: short body: %v", dbfserr.ErrShortFrame, err)
	}
	return body, nil
}

// WriteFrame writes body prefixed by its u32 big-endian length.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
