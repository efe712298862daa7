// Command dbfs-cli is an interactive line-oriented client for a running
// dbfs-server, issuing raw protocol requests. It is the human-facing
// analogue of the programmatic Elle-style client the server primarily
// serves. Line editing and history are provided by github.com/peterh/liner,
// the same library calvinalkan-agent-task uses for its interactive prompts.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/elledbfs/dbfs/pkg/dbfserr"
	"github.com/elledbfs/dbfs/pkg/wire"
	"github.com/peterh/liner"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dbfs-cli <host:port>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "dbfs-cli:", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	var currentTx uint64
	fmt.Println("dbfs-cli connected to", addr)
	fmt.Println("commands: begin | create <path> | mkdir <path> | rm <path> | write <path> <offset> <data> | ls <path> | commit | rollback | quit")

	for {
		text, err := line.Prompt("dbfs> ")
		if err != nil {
			return nil // EOF or Ctrl-D/Ctrl-C
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		line.AppendHistory(text)

		fields := strings.Fields(text)
		cmd := fields[0]

		if cmd == "quit" || cmd == "exit" {
			return nil
		}

		req, err := buildRequest(cmd, fields[1:], currentTx)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		if err := wire.WriteFrame(conn, req.Encode()); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		body, err := wire.ReadFrame(conn, wire.MaxFrameBytes)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		resp, err := wire.DecodeResponse(body)
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		if req.Op == wire.OpBeginTx && resp.Status == dbfserr.StatusOK {
			currentTx = resp.LSN
		}
		if (req.Op == wire.OpCommitTx || req.Op == wire.OpRollbackTx) && resp.Status == dbfserr.StatusOK {
			currentTx = 0
		}

		printResponse(req.Op, resp)
	}
}

func buildRequest(cmd string, args []string, tx uint64) (wire.Request, error) {
	switch cmd {
	case "begin":
		return wire.Request{Op: wire.OpBeginTx}, nil
	case "commit":
		return wire.Request{Op: wire.OpCommitTx, TxID: tx}, nil
	case "rollback":
		return wire.Request{Op: wire.OpRollbackTx, TxID: tx}, nil
	case "create":
		if len(args) < 1 {
			return wire.Request{}, fmt.Errorf("usage: create <path>")
		}
		return wire.Request{Op: wire.OpCreateFile, TxID: tx, Path: args[0]}, nil
	case "mkdir":
		if len(args) < 1 {
			return wire.Request{}, fmt.Errorf("usage: mkdir <path>")
		}
		return wire.Request{Op: wire.OpMkdir, TxID: tx, Path: args[0]}, nil
	case "rm":
		if len(args) < 1 {
			return wire.Request{}, fmt.Errorf("usage: rm <path>")
		}
		return wire.Request{Op: wire.OpDeleteFile, TxID: tx, Path: args[0]}, nil
	case "ls":
		path := "/"
		if len(args) >= 1 {
			path = args[0]
		}
		return wire.Request{Op: wire.OpReaddir, TxID: tx, Path: path}, nil
	case "write":
		if len(args) < 3 {
			return wire.Request{}, fmt.Errorf("usage: write <path> <offset> <data>")
		}
		off, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return wire.Request{}, fmt.Errorf("bad offset: %w", err)
		}
		return wire.Request{
			Op:     wire.OpWriteFile,
			TxID:   tx,
			Path:   args[0],
			Offset: off,
			Data:   []byte(strings.Join(args[2:], " ")),
		}, nil
	default:
		return wire.Request{}, fmt.Errorf("unknown command %q", cmd)
	}
}

func printResponse(op wire.OpType, resp wire.Response) {
	if resp.Status != dbfserr.StatusOK {
		fmt.Printf("status=%d\n", resp.Status)
		return
	}
	switch op {
	case wire.OpBeginTx:
		fmt.Printf("ok tx=%d\n", resp.LSN)
	case wire.OpReaddir:
		fmt.Printf("ok %s\n", resp.Data)
	default:
		fmt.Printf("ok lsn=%d\n", resp.LSN)
	}
}
