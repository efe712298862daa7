// Command dbfs-bench drives N concurrent connections against a running
// dbfs-server, each repeating begin/create/write/commit cycles, and reports
// throughput and the highest commit LSN observed. Adapted from the teacher's
// cmd/cobaltdb-bench, re-targeted at the DBFS wire protocol instead of a
// SQL-like query string.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8471", "server address")
	conns := flag.Int("conns", 8, "concurrent connections")
	iterations := flag.Int("iterations", 100, "begin/write/commit cycles per connection")
	flag.Parse()

	if err := run(*addr, *conns, *iterations); err != nil {
		fmt.Fprintln(os.Stderr, "dbfs-bench:", err)
		os.Exit(1)
	}
}

func run(addr string, conns, iterations int) error {
	var (
		wg        sync.WaitGroup
		completed int64
		failed    int64
		maxLSN    uint64
	)

	start := time.Now()
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := workerLoop(addr, worker, iterations, &completed, &failed, &maxLSN); err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("connections=%d iterations=%d completed=%d failed=%d elapsed=%s max_lsn=%d throughput=%.1f/s\n",
		conns, iterations, completed, failed, elapsed, maxLSN,
		float64(completed)/elapsed.Seconds())
	return nil
}

func workerLoop(addr string, worker, iterations int, completed, failed *int64, maxLSN *uint64) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	for i := 0; i < iterations; i++ {
		path := fmt.Sprintf("/bench-%d-%d", worker, i)

		tx, err := call(conn, wire.Request{Op: wire.OpBeginTx})
		if err != nil || tx.Status != dbfserr.StatusOK {
			atomic.AddInt64(failed, 1)
			continue
		}
		txID := tx.LSN

		if _, err := call(conn, wire.Request{Op: wire.OpCreateFile, TxID: txID, Path: path}); err != nil {
			atomic.AddInt64(failed, 1)
			continue
		}
		if _, err := call(conn, wire.Request{Op: wire.OpWriteFile, TxID: txID, Path: path, Data: []byte("payload")}); err != nil {
			atomic.AddInt64(failed, 1)
			continue
		}
		commit, err := call(conn, wire.Request{Op: wire.OpCommitTx, TxID: txID})
		if err != nil || commit.Status != dbfserr.StatusOK {
			atomic.AddInt64(failed, 1)
			continue
		}

		atomic.AddInt64(completed, 1)
		for {
			old := atomic.LoadUint64(maxLSN)
			if commit.LSN <= old || atomic.CompareAndSwapUint64(maxLSN, old, commit.LSN) {
				break
			}
		}
	}
	return nil
}

func call(conn net.Conn, req wire.Request) (wire.Response, error) {
	if err := wire.WriteFrame(conn, req.Encode()); err != nil {
		return wire.Response{}, err
	}
	body, err := wire.ReadFrame(conn, wire.MaxFrameBytes)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.DecodeResponse(body)
}
