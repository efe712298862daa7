// Package config loads DBFS server configuration from layered sources:
// built-in defaults, an optional JSONC config file, and CLI flag
// overrides. Grounded on calvinalkan-agent-task/config.go's LoadConfig
// merge chain (hujson.Standardize + encoding/json, pflag for CLI parsing).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Config holds every recognized server option from spec.md §6.
type Config struct {
	ListenAddr           string `json:"listen_addr"`
	WalPath              string `json:"wal_path"`
	MaxFrameBytes        uint32 `json:"max_frame_bytes"`
	ReadTimeoutMs        int    `json:"read_timeout_ms"`
	MaxConcurrentClients int    `json:"max_concurrent_clients"` // 0 = unbounded
	LogLevel             string `json:"log_level"`
}

// Defaults returns the built-in baseline configuration.
func Defaults() Config {
	return Config{
		ListenAddr:           "127.0.0.1:8471",
		WalPath:              ":memory:",
		MaxFrameBytes:        10 * 1024 * 1024,
		ReadTimeoutMs:        5000,
		MaxConcurrentClients: 0,
		LogLevel:             "info",
	}
}

// IsMemoryBackend reports whether WalPath selects the in-memory backend.
func (c Config) IsMemoryBackend() bool {
	return c.WalPath == ":memory:"
}

// loadFile standardizes a JSONC file (comments, trailing commas allowed)
// with hujson and unmarshals it over cfg.
func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("standardize jsonc: %w", err)
	}
	if err := json.Unmarshal(standardized, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Load builds a Config from defaults, an optional config file, and CLI
// flags parsed from args, in that precedence order (each layer overrides
// the one before it only for flags the caller actually set).
func Load(fs *pflag.FlagSet, args []string) (Config, error) {
	cfg := Defaults()

	var configPath string
	fs.StringVar(&configPath, "config", "", "path to a JSONC config file")
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "address to bind")
	walPath := fs.String("wal-path", cfg.WalPath, `WAL file path, or ":memory:"`)
	maxFrame := fs.Uint32("max-frame-bytes", cfg.MaxFrameBytes, "maximum accepted frame size")
	readTimeout := fs.Int("read-timeout-ms", cfg.ReadTimeoutMs, "per-read deadline in milliseconds")
	maxClients := fs.Int("max-concurrent-clients", cfg.MaxConcurrentClients, "0 = unbounded")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		if err := loadFile(configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	if fs.Changed("listen-addr") {
		cfg.ListenAddr = *listenAddr
	}
	if fs.Changed("wal-path") {
		cfg.WalPath = *walPath
	}
	if fs.Changed("max-frame-bytes") {
		cfg.MaxFrameBytes = *maxFrame
	}
	if fs.Changed("read-timeout-ms") {
		cfg.ReadTimeoutMs = *readTimeout
	}
	if fs.Changed("max-concurrent-clients") {
		cfg.MaxConcurrentClients = *maxClients
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	return cfg, nil
}
