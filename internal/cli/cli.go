// Package cli holds the flag, transport and signal plumbing shared by
// gsb and grb.
package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/drunlade/go-ymodem/internal/config"
	"github.com/drunlade/go-ymodem/ymodem"
)

// Flags are the options common to both tools.
type Flags struct {
	ConfigFile string
	Port       string
	Baud       int
	Retries    int
	TimeoutMS  int
	BufferSize int
	XShell     bool
	Verbose    bool
	Quiet      bool
	LogFile    string
}

// Register adds the common flags to fs.
func Register(fs *flag.FlagSet) *Flags {
	def := config.Default()
	f := &Flags{}
	fs.StringVar(&f.ConfigFile, "config", "", "TOML config file")
	fs.StringVar(&f.Port, "port", "", "serial port (default: stdin/stdout)")
	fs.IntVar(&f.Baud, "baud", def.Baud, "serial baud rate")
	fs.IntVar(&f.Retries, "r", def.Retries, "retries per read and per packet")
	fs.IntVar(&f.TimeoutMS, "t", int(def.Timeout/time.Millisecond), "timeout per read in milliseconds")
	fs.IntVar(&f.BufferSize, "b", def.BufferSize, "packet buffer size in bytes")
	fs.BoolVar(&f.XShell, "xshell", false, "XShell compatible session end")
	fs.BoolVar(&f.Verbose, "v", false, "verbose mode")
	fs.BoolVar(&f.Quiet, "q", false, "quiet mode")
	fs.StringVar(&f.LogFile, "log", "", "write the log to this file")
	return f
}

// Resolve loads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func (f *Flags) Resolve(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return config.Config{}, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = f.Port
		case "baud":
			cfg.Baud = f.Baud
		case "r":
			cfg.Retries = f.Retries
		case "t":
			cfg.Timeout = time.Duration(f.TimeoutMS) * time.Millisecond
		case "b":
			cfg.BufferSize = f.BufferSize
		case "xshell":
			cfg.XShell = f.XShell
		case "log":
			cfg.LogFile = f.LogFile
		}
	})
	switch {
	case f.Quiet:
		cfg.LogLevel = "error"
	case f.Verbose:
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// OpenTransport opens the serial port named by cfg, or wraps stdin and
// stdout. A terminal on stdin is switched to raw mode until the returned
// close function runs.
func OpenTransport(cfg config.Config) (ymodem.Transport, func() error, error) {
	if cfg.Port != "" {
		t, err := ymodem.OpenSerial(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, nil, err
		}
		return t, t.Close, nil
	}

	closeFn := func() error { return nil }
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() error { return term.Restore(fd, oldState) }
	}
	return ymodem.NewStreamTransport(os.Stdin, os.Stdout), closeFn, nil
}

// SignalContext is cancelled by SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
