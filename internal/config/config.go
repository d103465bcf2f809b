// Package config loads the settings shared by gsb and grb.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/drunlade/go-ymodem/ymodem"
)

// Config holds the transfer settings of a command line run.
type Config struct {
	// Port is the serial device. Empty means stdin/stdout.
	Port string
	Baud int

	Retries    int
	Timeout    time.Duration
	BufferSize int

	HandshakeAttempts int
	HandshakeDelay    time.Duration

	XShell bool

	LogLevel string
	LogFile  string

	// Dir is where grb stores received files.
	Dir string
}

// Default returns the built-in settings.
func Default() Config {
	def := ymodem.DefaultConfig()
	return Config{
		Baud:              115200,
		Retries:           def.Retries,
		Timeout:           def.Timeout,
		BufferSize:        ymodem.DataLen1K + ymodem.Overhead,
		HandshakeAttempts: 60,
		HandshakeDelay:    def.HandshakeDelay,
		LogLevel:          "info",
		Dir:               ".",
	}
}

type fileConfig struct {
	Port              string `toml:"port"`
	Baud              int    `toml:"baud"`
	Retries           int    `toml:"retries"`
	TimeoutMS         int64  `toml:"timeout_ms"`
	BufferSize        int    `toml:"buffer_size"`
	HandshakeAttempts int    `toml:"handshake_attempts"`
	HandshakeDelayMS  int64  `toml:"handshake_delay_ms"`
	XShell            bool   `toml:"xshell"`
	LogLevel          string `toml:"log_level"`
	LogFile           string `toml:"log_file"`
	Dir               string `toml:"dir"`
}

// Load reads path on top of Default. Keys missing from the file keep
// their default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("timeout_ms") {
		cfg.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("handshake_attempts") {
		cfg.HandshakeAttempts = raw.HandshakeAttempts
	}
	if meta.IsDefined("handshake_delay_ms") {
		cfg.HandshakeDelay = time.Duration(raw.HandshakeDelayMS) * time.Millisecond
	}
	if meta.IsDefined("xshell") {
		cfg.XShell = raw.XShell
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("dir") {
		cfg.Dir = strings.TrimSpace(raw.Dir)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.BufferSize < ymodem.MinBufferSize:
		return fmt.Errorf("buffer_size %d is below %d", c.BufferSize, ymodem.MinBufferSize)
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative")
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	case c.Port != "" && c.Baud <= 0:
		return fmt.Errorf("baud must be positive")
	}
	return nil
}

// Session converts c into engine settings.
func (c Config) Session() *ymodem.Config {
	cfg := ymodem.DefaultConfig()
	cfg.Retries = c.Retries
	cfg.Timeout = c.Timeout
	cfg.HandshakeAttempts = c.HandshakeAttempts
	cfg.HandshakeDelay = c.HandshakeDelay
	cfg.XShellCompat = c.XShell
	return cfg
}
