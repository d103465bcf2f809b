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
	stream  = flag.Bool("stream", false, "do not announce file lengths")
	help    = flag.Bool("h", false, "show help")
	version = flag.Bool("version", false, "show version")
)

const versionString = "gsb version 0.1.0"

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

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "%s: no files specified\n", os.Args[0])
		showUsage(1)
	}

	if err := run(common, files); err != nil {
		if !common.Quiet {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(common *cli.Flags, files []string) error {
	cfg, err := common.Resolve(flag.CommandLine)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(logging.Options{App: "gsb", Level: cfg.LogLevel, File: cfg.LogFile})
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
		OnFileComplete: func(info ymodem.FileInfo, bytesTransferred int64, duration time.Duration) {
			if common.Verbose {
				fmt.Fprintf(os.Stderr, "\nCompleted: %s (%d bytes in %v)\n", info.Name, bytesTransferred, duration)
			}
		},
		OnError: func(err error, context string) bool {
			logger.Debug().Err(err).Msg(context)
			return true
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

	sources := make([]ymodem.Source, 0, len(files))
	for _, path := range files {
		src, err := source(path, logger)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	if err := session.SendFiles(ctx, sources); err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("interrupted")
		}
		return err
	}
	return nil
}

// hashedReader reads a file being sent and logs its MD5 on Close.
type hashedReader struct {
	*os.File
	r      io.Reader
	sum    hash.Hash
	logger zerolog.Logger
}

func (f *hashedReader) Read(p []byte) (int, error) {
	return f.r.Read(p)
}

func (f *hashedReader) Close() error {
	f.logger.Info().Str("file", f.Name()).Str("md5", hex.EncodeToString(f.sum.Sum(nil))).Msg("sent")
	return f.File.Close()
}

func source(path string, logger zerolog.Logger) (ymodem.Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return ymodem.Source{}, err
	}
	if !st.Mode().IsRegular() {
		return ymodem.Source{}, fmt.Errorf("%s: not a regular file", path)
	}
	info := ymodem.FileInfo{Name: filepath.Base(path), Length: st.Size()}
	if *stream {
		info.Length = ymodem.UnknownLength
	}

	open := func() (io.ReadCloser, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		sum := md5.New()
		return &hashedReader{File: file, r: io.TeeReader(file, sum), sum: sum, logger: logger}, nil
	}
	return ymodem.Source{Info: info, Open: open}, nil
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - send files with YMODEM protocol

Usage: %s [options] file...

Options:
  -b N             packet buffer size (1029 for 1K packets, 8197 for 8K)
  -baud N          serial baud rate (default: 115200)
  -config FILE     TOML config file
  -h               show this help message
  -log FILE        write the log to FILE
  -port DEV        serial port (default: stdin/stdout)
  -q               quiet mode, minimal output
  -r N             retries per read and per packet (default: 10)
  -stream          do not announce file lengths
  -t N             timeout per read in milliseconds (default: 50)
  -v               verbose mode
  -version         show version
  -xshell          XShell compatible session end

Examples:
  %s file.bin                       # Send over stdin/stdout
  %s -port /dev/ttyUSB0 file.bin    # Send over a serial port

`, versionString, os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
