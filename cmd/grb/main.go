package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/drunlade/go-ymodem/internal/cli"
	"github.com/drunlade/go-ymodem/internal/logging"
	"github.com/drunlade/go-ymodem/ymodem"
)

var (
	dir       = flag.String("d", "", "directory for received files (default: config dir or .)")
	maxFiles  = flag.Int("n", 0, "stop after N files (0: until the sender stops)")
	overwrite = flag.Bool("y", false, "overwrite existing files")
	help      = flag.Bool("h", false, "show help")
	version   = flag.Bool("version", false, "show version")
)

const versionString = "grb version 0.1.0"

func main() {
	common := cli.Register(flag.CommandLine)
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	if err := run(common); err != nil {
		if !common.Quiet {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// hashedFile writes a received file and keeps its MD5.
type hashedFile struct {
	*os.File
	sum    hash.Hash
	logger zerolog.Logger
}

func (f *hashedFile) Write(p []byte) (int, error) {
	f.sum.Write(p)
	return f.File.Write(p)
}

func (f *hashedFile) Close() error {
	f.logger.Info().Str("file", f.Name()).Str("md5", hex.EncodeToString(f.sum.Sum(nil))).Msg("received")
	return f.File.Close()
}

func run(common *cli.Flags) error {
	cfg, err := common.Resolve(flag.CommandLine)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.Dir = *dir
	}

	logger, logCloser, err := logging.New(logging.Options{App: "grb", Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := cli.SignalContext()
	defer cancel()

	transport, closeTransport, err := cli.OpenTransport(cfg)
	if err != nil {
		return err
	}
	defer closeTransport()
	if logger.GetLevel() <= zerolog.TraceLevel {
		transport = ymodem.NewLoggingTransport(transport, logger)
	}

	callbacks := &ymodem.Callbacks{
		OnProgress: func(name string, transferred, total int64, rate float64) {
			if !common.Verbose {
				return
			}
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\r%s: %.1f%% (%.0f bytes/s)", name, float64(transferred)/float64(total)*100, rate)
			} else {
				fmt.Fprintf(os.Stderr, "\r%s: %d bytes (%.0f bytes/s)", name, transferred, rate)
			}
		},
		OnFileStart: func(info ymodem.FileInfo) {
			if common.Verbose {
				fmt.Fprintf(os.Stderr, "Receiving: %s (%d bytes)\n", info.Name, info.Length)
			}
		},
		OnFileComplete: func(info ymodem.FileInfo, bytesTransferred int64, duration time.Duration) {
			if !common.Quiet {
				if common.Verbose {
					fmt.Fprintf(os.Stderr, "\nCompleted: %s (%d bytes in %v)\n", info.Name, bytesTransferred, duration)
				} else {
					fmt.Fprintf(os.Stderr, "%s\n", info.Name)
				}
			}
		},
		OnError: func(err error, context string) bool {
			logger.Debug().Err(err).Msg(context)
			return true
		},
		OnFileCreate: func(info ymodem.FileInfo) (io.Writer, error) {
			path := filepath.Join(cfg.Dir, filepath.Base(info.Name))
			flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			if !*overwrite {
				flags |= os.O_EXCL
			}
			file, err := os.OpenFile(path, flags, 0644)
			if err != nil {
				return nil, err
			}
			return &hashedFile{File: file, sum: md5.New(), logger: logger}, nil
		},
	}

	session, err := ymodem.NewSession(make([]byte, cfg.BufferSize), transport,
		ymodem.WithConfig(cfg.Session()),
		ymodem.WithLogger(logger),
		ymodem.WithCallbacks(callbacks),
	)
	if err != nil {
		return err
	}

	count, err := session.ReceiveFiles(ctx, *maxFiles)
	logger.Debug().Int("files", count).Msg("session finished")
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted after %d files", count)
	}
	return err
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - receive files with YMODEM protocol

Usage: %s [options]

Options:
  -b N             packet buffer size, must hold the sender's packets
  -baud N          serial baud rate (default: 115200)
  -config FILE     TOML config file
  -d DIR           directory for received files
  -h               show this help message
  -log FILE        write the log to FILE
  -n N             stop after N files
  -port DEV        serial port (default: stdin/stdout)
  -q               quiet mode, minimal output
  -r N             retries per read and per packet (default: 10)
  -t N             timeout per read in milliseconds (default: 50)
  -v               verbose mode
  -version         show version
  -xshell          send the trailing 'O' XShell expects
  -y               overwrite existing files

Examples:
  %s                                # Receive from stdin/stdout
  %s -port /dev/ttyUSB0 -d incoming # Receive from a serial port

`, versionString, os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
