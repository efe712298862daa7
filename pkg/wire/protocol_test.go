package wire

import (
	"bytes"
	"testing"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		TxID:   42,
		Op:     OpWriteFile,
		Path:   "/a/b",
		Offset: 1024,
		Data:   []byte("payload"),
	}

	decoded, err := DecodeRequest(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, decoded)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{TxID: 7, Status: dbfserr.StatusOK, LSN: 99, Data: []byte(`["a","b"]`)}

	decoded, err := DecodeResponse(resp.Encode())
	require.NoError(t, err)
	require.Equal(t, resp, decoded)
}

func TestDecodeRequestBadOpCode(t *testing.T) {
	req := Request{Op: OpWriteFile, Path: "/x"}
	buf := req.Encode()
	buf[8] = 99 // overwrite op_type with an unrecognized tag

	_, err := DecodeRequest(buf)
	require.ErrorIs(t, err, dbfserr.ErrBadOpCode)
}

func TestDecodeRequestShortFrame(t *testing.T) {
	_, err := DecodeRequest([]byte{1, 2, 3})
	require.ErrorIs(t, err, dbfserr.ErrShortFrame)
}

func TestDecodeRequestBadUtf8(t *testing.T) {
	req := Request{Op: OpCreateFile, Path: "/ok"}
	buf := req.Encode()
	// path_len starts at offset 9; corrupt the path bytes to invalid UTF-8.
	buf[11] = 0xFF

	_, err := DecodeRequest(buf)
	require.ErrorIs(t, err, dbfserr.ErrBadUtf8)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte("hello world")
	require.NoError(t, WriteFrame(&buf, body))

	got, err := ReadFrame(&buf, MaxFrameBytes)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 100)))

	_, err := ReadFrame(&buf, 10)
	require.ErrorIs(t, err, dbfserr.ErrFrameTooLarge)
}

func TestReadFrameZeroLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	_, err := ReadFrame(&buf, MaxFrameBytes)
	require.ErrorIs(t, err, dbfserr.ErrShortFrame)
}
