package ymodem

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Session is the context of one YMODEM connection.
//
// It borrows the caller's packet buffer and is reused for every file sent
// or received over the connection. A Session must not be used from more
// than one goroutine at a time.
type Session struct {
	buf       []byte
	transport Transport
	userData  any

	config    *Config
	callbacks *Callbacks
	logger    zerolog.Logger

	recvState RecvState
	sendState SendState

	packetLen   int
	dataLen     int
	fileLen     int64
	transferred int64
	code        ErrorCode
	seq         uint8

	// pendingACK defers the ACK of a delivered data packet until the
	// caller asks for the next one.
	pendingACK bool

	// pendingStart is set when the frame after a file's EOTs was the start
	// frame of the next file. It is still in buf, unacknowledged.
	pendingStart bool

	// batch keeps a send session open after each file for SendFiles.
	batch bool

	ctrl [1]byte
}

// Config holds session configuration.
type Config struct {
	// Retries is the number of extra attempts for every read and for every
	// packet exchange. Zero means a single attempt.
	Retries int

	// Timeout bounds each transport read and write.
	Timeout time.Duration

	// MaxNameLen caps the file name returned by RecvHandshake.
	// Zero keeps the whole name.
	MaxNameLen int

	// XShellCompat makes the receiver send a trailing 'O' after the final
	// ACK, which XShell waits for before closing its transfer dialog.
	XShellCompat bool

	// HandshakeAttempts bounds the handshake loop of SendFile and
	// ReceiveFile. Zero retries until the context is done.
	HandshakeAttempts int

	// HandshakeDelay is the pause between two handshake attempts.
	HandshakeDelay time.Duration

	// ProgressInterval is the minimum time between OnProgress calls.
	ProgressInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Retries:          10,
		Timeout:          50 * time.Millisecond,
		HandshakeDelay:   100 * time.Millisecond,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration. The config is copied.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		if config != nil {
			c := *config
			s.config = &c
		}
	}
}

// WithRetries overrides Config.Retries.
func WithRetries(n int) Option {
	return func(s *Session) {
		s.config.Retries = n
	}
}

// WithTimeout overrides Config.Timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.config.Timeout = d
	}
}

// WithHandshake overrides the handshake attempts and delay.
func WithHandshake(attempts int, delay time.Duration) Option {
	return func(s *Session) {
		s.config.HandshakeAttempts = attempts
		s.config.HandshakeDelay = delay
	}
}

// WithXShellCompat overrides Config.XShellCompat.
func WithXShellCompat(on bool) Option {
	return func(s *Session) {
		s.config.XShellCompat = on
	}
}

// WithMaxNameLen overrides Config.MaxNameLen.
func WithMaxNameLen(n int) Option {
	return func(s *Session) {
		s.config.MaxNameLen = n
	}
}

// WithUserData sets the value handed to the transport's file info hooks.
func WithUserData(v any) Option {
	return func(s *Session) {
		s.userData = v
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session over buf and t.
// Options are applied in order, so WithConfig should come first.
func NewSession(buf []byte, t Transport, opts ...Option) (*Session, error) {
	s := &Session{
		buf:       buf,
		transport: t,
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check validates the session configuration.
func (s *Session) Check() error {
	switch {
	case len(s.buf) < MinBufferSize:
		return NewError(ErrInvalidArg, CodeOK,
			fmt.Sprintf("buffer of %d bytes, need at least %d", len(s.buf), MinBufferSize))
	case s.transport == nil:
		return NewError(ErrInvalidArg, CodeOK, "missing transport")
	case s.config.Retries < 0:
		return NewError(ErrInvalidArg, CodeOK, "negative retry count")
	case s.config.Timeout < 0:
		return NewError(ErrInvalidArg, CodeOK, "negative timeout")
	}
	return nil
}

// Cancel aborts the transfer by writing a burst of CAN bytes.
// It does not touch the session state and may be called at any time
// between other operations.
func (s *Session) Cancel() error {
	var burst [cancelBurst]byte
	for i := range burst {
		burst[i] = CAN
	}
	s.logger.Info().Msg("cancelling transfer")
	n, err := s.transport.Write(burst[:], s.config.Timeout)
	if n != len(burst) {
		return s.ioError(err, "write cancel burst")
	}
	return nil
}

// RecvState returns the receiver state.
func (s *Session) RecvState() RecvState { return s.recvState }

// SendState returns the sender state.
func (s *Session) SendState() SendState { return s.sendState }

// ErrorCode returns the sub-code left by the last operation.
func (s *Session) ErrorCode() ErrorCode { return s.code }

// FileLen returns the length of the current file, or UnknownLength.
func (s *Session) FileLen() int64 { return s.fileLen }

// Transferred returns the payload bytes moved for the current file.
func (s *Session) Transferred() int64 { return s.transferred }

// Seq returns the current packet sequence number.
func (s *Session) Seq() uint8 { return s.seq }

// fail records code on the session and returns the matching error.
func (s *Session) fail(t ErrorType, code ErrorCode, format string, args ...any) error {
	s.code = code
	return NewError(t, code, fmt.Sprintf(format, args...))
}

func (s *Session) ioError(err error, what string) error {
	if err != nil {
		return NewError(ErrIO, s.code, fmt.Sprintf("%s: %v", what, err))
	}
	return NewError(ErrIO, s.code, what+": short write")
}

// putc writes a single reply or control byte.
func (s *Session) putc(b byte) error {
	s.ctrl[0] = b
	n, err := s.transport.Write(s.ctrl[:], s.config.Timeout)
	s.logger.Trace().Str("byte", ControlName(b)).Msg("tx")
	if n != 1 {
		return s.ioError(err, "write "+ControlName(b))
	}
	return nil
}

// getc reads a single reply byte, retrying silent reads.
func (s *Session) getc() (byte, error) {
	for retry := s.config.Retries + 1; retry > 0; retry-- {
		n, err := s.transport.Read(s.ctrl[:], s.config.Timeout)
		if n == 1 {
			s.logger.Trace().Str("byte", ControlName(s.ctrl[0])).Msg("rx")
			return s.ctrl[0], nil
		}
		if err != nil {
			s.logger.Trace().Err(err).Msg("read")
		}
	}
	return 0, s.fail(ErrTimeout, CodeNoData, "no reply from peer")
}

// flushRead drops pending input and clears the packet buffer.
func (s *Session) flushRead() {
	if err := s.transport.Flush(); err != nil {
		s.logger.Debug().Err(err).Msg("flush")
	}
	clear(s.buf)
}
