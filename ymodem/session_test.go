package ymodem

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSessionRejectsInvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		tr   Transport
		opts []Option
	}{
		{"nil buffer", nil, &scriptTransport{}, nil},
		{"short buffer", make([]byte, MinBufferSize-1), &scriptTransport{}, nil},
		{"nil transport", make([]byte, MinBufferSize), nil, nil},
		{"negative retries", make([]byte, MinBufferSize), &scriptTransport{}, []Option{WithRetries(-1)}},
		{"negative timeout", make([]byte, MinBufferSize), &scriptTransport{}, []Option{WithTimeout(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.buf, tt.tr, tt.opts...)
			require.Nil(t, s)
			require.True(t, IsInvalidArg(err), "got %v", err)
		})
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s, err := NewSession(make([]byte, MinBufferSize), &scriptTransport{})
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), s.config)
	require.Equal(t, RecvNone, s.RecvState())
	require.Equal(t, SendNone, s.SendState())
	require.Equal(t, CodeOK, s.ErrorCode())
}

func TestWithConfigCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retries = 3
	s, err := NewSession(make([]byte, MinBufferSize), &scriptTransport{},
		WithConfig(cfg), WithTimeout(time.Second), WithHandshake(4, time.Millisecond))
	require.NoError(t, err)

	require.Equal(t, 3, s.config.Retries)
	require.Equal(t, time.Second, s.config.Timeout)
	require.Equal(t, 4, s.config.HandshakeAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.Timeout)

	s2, err := NewSession(make([]byte, MinBufferSize), &scriptTransport{}, WithConfig(nil))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), s2.config)
}

func TestCancel(t *testing.T) {
	tr := &scriptTransport{}
	s := newTestSession(t, MinBufferSize, tr)
	s.recvState = RecvRequestFileData

	require.NoError(t, s.Cancel())
	require.Len(t, tr.writes, 1)
	require.Equal(t, bytes.Repeat([]byte{CAN}, cancelBurst), tr.writes[0])
	require.Equal(t, RecvRequestFileData, s.RecvState())
}

func TestCancelShortWrite(t *testing.T) {
	s := newTestSession(t, MinBufferSize, &shortWriter{})
	var e *Error
	require.ErrorAs(t, s.Cancel(), &e)
	require.Equal(t, ErrIO, e.Type)
}

func TestGetcRetriesSilentReads(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(nil, nil, ctrl(ACK))
	s := newTestSession(t, MinBufferSize, tr)

	c, err := s.getc()
	require.NoError(t, err)
	require.Equal(t, byte(ACK), c)

	tr.queue(nil, nil, nil, ctrl(ACK))
	_, err = s.getc()
	require.True(t, IsTimeout(err))
}

func TestFlushReadClearsBuffer(t *testing.T) {
	tr := &scriptTransport{}
	s := newTestSession(t, MinBufferSize, tr)
	copy(s.buf, bytes.Repeat([]byte{0xAB}, MinBufferSize))

	s.flushRead()
	require.Equal(t, 1, tr.flushes)
	require.Equal(t, make([]byte, MinBufferSize), s.buf)
}
