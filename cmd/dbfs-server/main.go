// Command dbfs-server runs the DBFS request/response server: a WAL-backed
// transactional filesystem reachable over the length-prefixed protocol in
// spec.md §4.3.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/elledbfs/dbfs/pkg/config"
	"github.com/elledbfs/dbfs/pkg/fs"
	"github.com/elledbfs/dbfs/pkg/logging"
	"github.com/elledbfs/dbfs/pkg/server"
	"github.com/elledbfs/dbfs/pkg/wal"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dbfs-server:", err)
		os.Exit(1)
	}
}

func run() error {
	fset := pflag.NewFlagSet("dbfs-server", pflag.ContinueOnError)
	cfg, err := config.Load(fset, os.Args[1:])
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel})

	backend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("open wal backend: %w", err)
	}

	engine, err := wal.Open(backend)
	if err != nil {
		return fmt.Errorf("open wal engine: %w", err)
	}

	result := engine.Recover()
	logger.Info("wal recovered",
		"committed", len(result.Committed),
		"uncommitted", len(result.Uncommitted),
		"persistent", engine.IsPersistent(),
	)

	filesystem := fs.New(engine)
	srv := server.New(cfg, filesystem, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		srv.Close()
		engine.Close()
	}()

	return srv.ListenAndServe()
}

func openBackend(cfg config.Config) (*wal.Backend, error) {
	if cfg.IsMemoryBackend() {
		return wal.NewMemoryBackend(), nil
	}
	return wal.NewFileBackend(cfg.WalPath)
}
