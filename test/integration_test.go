// Package test exercises the full stack — WAL engine, filesystem, and
// protocol server — together over a real TCP connection, mirroring
// spec.md §8's literal end-to-end scenarios.
package test

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/elledbfs/dbfs/pkg/config"
	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/fs"
	"github.com/elledbfs/dbfs/pkg/logging"
	"github.com/elledbfs/dbfs/pkg/server"
	"github.com/elledbfs/dbfs/pkg/wal"
	"github.com/elledbfs/dbfs/pkg/wire"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	cfg := config.Defaults()

	engine, err := wal.Open(wal.NewMemoryBackend())
	require.NoError(t, err)

	filesystem := fs.New(engine)
	logger := logging.New(logging.Options{Level: "error"})

	// server.Server binds its own listener inside ListenAndServe; probe an
	// ephemeral port, close the probe, and hand the server that address.
	// TCP port reuse on loopback within the same test process is reliable
	// enough here.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	realAddr := ln.Addr().String()
	ln.Close()

	cfg.ListenAddr = realAddr
	srv := server.New(cfg, filesystem, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", realAddr)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return realAddr, func() { srv.Close() }
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return conn
}

func call(t *testing.T, conn net.Conn, req wire.Request) wire.Response {
	t.Helper()
	require.NoError(t, wire.WriteFrame(conn, req.Encode()))
	body, err := wire.ReadFrame(conn, wire.MaxFrameBytes)
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(body)
	require.NoError(t, err)
	return resp
}

func TestScenarioBasicCommit(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()
	conn := dial(t, addr)
	defer conn.Close()

	begin := call(t, conn, wire.Request{Op: wire.OpBeginTx})
	require.Equal(t, dbfserr.StatusOK, begin.Status)
	tx := begin.LSN

	create := call(t, conn, wire.Request{Op: wire.OpCreateFile, TxID: tx, Path: "/a"})
	require.Equal(t, dbfserr.StatusOK, create.Status)

	write := call(t, conn, wire.Request{Op: wire.OpWriteFile, TxID: tx, Path: "/a", Data: []byte("hello")})
	require.Equal(t, dbfserr.StatusOK, write.Status)

	commit := call(t, conn, wire.Request{Op: wire.OpCommitTx, TxID: tx})
	require.Equal(t, dbfserr.StatusOK, commit.Status)
	require.GreaterOrEqual(t, commit.LSN, uint64(4))
}

func TestScenarioRollback(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()
	conn := dial(t, addr)
	defer conn.Close()

	begin := call(t, conn, wire.Request{Op: wire.OpBeginTx})
	tx := begin.LSN
	call(t, conn, wire.Request{Op: wire.OpCreateFile, TxID: tx, Path: "/b"})
	rollback := call(t, conn, wire.Request{Op: wire.OpRollbackTx, TxID: tx})
	require.Equal(t, dbfserr.StatusOK, rollback.Status)

	lookupAfter := call(t, conn, wire.Request{Op: wire.OpReaddir, TxID: 0, Path: "/"})
	require.Equal(t, dbfserr.StatusOK, lookupAfter.Status)
	var names []string
	require.NoError(t, json.Unmarshal(lookupAfter.Data, &names))
	require.NotContains(t, names, "b")
}

func TestScenarioLargeWrite(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()
	conn := dial(t, addr)
	defer conn.Close()

	begin := call(t, conn, wire.Request{Op: wire.OpBeginTx})
	tx := begin.LSN
	call(t, conn, wire.Request{Op: wire.OpCreateFile, TxID: tx, Path: "/big"})

	data := make([]byte, 10240)
	write := call(t, conn, wire.Request{Op: wire.OpWriteFile, TxID: tx, Path: "/big", Data: data})
	require.Equal(t, dbfserr.StatusOK, write.Status)

	commit := call(t, conn, wire.Request{Op: wire.OpCommitTx, TxID: tx})
	require.Equal(t, dbfserr.StatusOK, commit.Status)
}

func TestScenarioConcurrentLostUpdate(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()
	c1 := dial(t, addr)
	defer c1.Close()
	c2 := dial(t, addr)
	defer c2.Close()

	b1 := call(t, c1, wire.Request{Op: wire.OpBeginTx})
	tx1 := b1.LSN
	call(t, c1, wire.Request{Op: wire.OpCreateFile, TxID: tx1, Path: "/shared"})
	commitCreate := call(t, c1, wire.Request{Op: wire.OpCommitTx, TxID: tx1})
	require.Equal(t, dbfserr.StatusOK, commitCreate.Status)

	b2 := call(t, c1, wire.Request{Op: wire.OpBeginTx})
	txA := b2.LSN
	b3 := call(t, c2, wire.Request{Op: wire.OpBeginTx})
	txB := b3.LSN

	call(t, c1, wire.Request{Op: wire.OpWriteFile, TxID: txA, Path: "/shared", Data: []byte("1")})
	call(t, c2, wire.Request{Op: wire.OpWriteFile, TxID: txB, Path: "/shared", Data: []byte("2")})

	commitA := call(t, c1, wire.Request{Op: wire.OpCommitTx, TxID: txA})
	commitB := call(t, c2, wire.Request{Op: wire.OpCommitTx, TxID: txB})
	require.Equal(t, dbfserr.StatusOK, commitA.Status)
	require.Equal(t, dbfserr.StatusOK, commitB.Status)
	require.Greater(t, commitB.LSN, commitA.LSN)
}

func TestFrameTooLargeClosesConnection(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()
	conn := dial(t, addr)
	defer conn.Close()

	oversized := make([]byte, 11*1024*1024)
	require.NoError(t, wire.WriteFrame(conn, oversized))

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(buf)
	require.Error(t, err) // connection closed by the server
}
