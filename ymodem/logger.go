package ymodem

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// maxLogBytes caps the payload bytes written into a single log event.
const maxLogBytes = 128

// NewFileLogger returns a logger that appends JSON lines to path.
// The returned closer releases the file.
func NewFileLogger(path string, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	logger := zerolog.New(file).Level(level).With().Timestamp().Logger()
	return logger, file, nil
}

// logPacket dumps the framing of a packet at trace level.
func (s *Session) logPacket(dir string, pkt []byte) {
	ev := s.logger.Trace()
	if !ev.Enabled() || len(pkt) == 0 {
		return
	}
	ev = ev.Str("dir", dir).
		Str("header", ControlName(pkt[headerIdx])).
		Int("len", len(pkt))
	if len(pkt) > dataIdx {
		ev = ev.Uint8("seq", pkt[seqIdx]).
			Uint8("cseq", pkt[seqCompIdx]).
			Hex("data", pkt[dataIdx:min(len(pkt), dataIdx+32)])
	}
	ev.Msg("packet")
}

// LoggingTransport wraps a Transport and logs every call.
// The file info hooks of the wrapped transport are forwarded.
type LoggingTransport struct {
	inner  Transport
	logger zerolog.Logger
}

// NewLoggingTransport wraps t.
func NewLoggingTransport(t Transport, logger zerolog.Logger) *LoggingTransport {
	return &LoggingTransport{inner: t, logger: logger}
}

func (lt *LoggingTransport) Read(p []byte, timeout time.Duration) (int, error) {
	n, err := lt.inner.Read(p, timeout)
	ev := lt.logger.Trace().Int("want", len(p)).Int("got", n)
	if n > 0 {
		ev = ev.Hex("bytes", p[:min(n, maxLogBytes)])
	}
	ev.Err(err).Msg("transport read")
	return n, err
}

func (lt *LoggingTransport) Write(p []byte, timeout time.Duration) (int, error) {
	n, err := lt.inner.Write(p, timeout)
	lt.logger.Trace().Int("len", len(p)).Int("wrote", n).
		Hex("bytes", p[:min(len(p), maxLogBytes)]).Err(err).Msg("transport write")
	if err != nil {
		lt.logger.Error().Err(err).Msg("transport write failed")
	}
	return n, err
}

func (lt *LoggingTransport) Flush() error {
	err := lt.inner.Flush()
	lt.logger.Trace().Err(err).Msg("transport flush")
	return err
}

func (lt *LoggingTransport) Delay(d time.Duration) {
	lt.logger.Trace().Dur("delay", d).Msg("transport delay")
	lt.inner.Delay(d)
}

func (lt *LoggingTransport) ParseFileInfo(extra []byte, userData any) {
	if p, ok := lt.inner.(FileInfoParser); ok {
		p.ParseFileInfo(extra, userData)
	}
}

func (lt *LoggingTransport) FillFileInfo(buf []byte, userData any) int {
	if f, ok := lt.inner.(FileInfoFiller); ok {
		return f.FillFileInfo(buf, userData)
	}
	return 0
}
