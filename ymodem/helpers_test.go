package ymodem

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptTransport replays queued input and records everything written.
// A nil chunk in the queue is a read that times out.
type scriptTransport struct {
	in      [][]byte
	writes  [][]byte
	flushes int
	delays  []time.Duration
}

func (t *scriptTransport) queue(chunks ...[]byte) {
	t.in = append(t.in, chunks...)
}

func (t *scriptTransport) Read(p []byte, _ time.Duration) (int, error) {
	if len(t.in) == 0 {
		return 0, nil
	}
	head := t.in[0]
	if head == nil {
		t.in = t.in[1:]
		return 0, nil
	}
	n := copy(p, head)
	if n == len(head) {
		t.in = t.in[1:]
	} else {
		t.in[0] = head[n:]
	}
	return n, nil
}

func (t *scriptTransport) Write(p []byte, _ time.Duration) (int, error) {
	t.writes = append(t.writes, bytes.Clone(p))
	return len(p), nil
}

func (t *scriptTransport) Flush() error {
	t.flushes++
	return nil
}

func (t *scriptTransport) Delay(d time.Duration) {
	t.delays = append(t.delays, d)
}

// controls returns the single byte writes in order.
func (t *scriptTransport) controls() []byte {
	var out []byte
	for _, w := range t.writes {
		if len(w) == 1 {
			out = append(out, w[0])
		}
	}
	return out
}

// packets returns the multi byte writes in order.
func (t *scriptTransport) packets() [][]byte {
	var out [][]byte
	for _, w := range t.writes {
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}

// hookTransport adds the file info hooks to scriptTransport.
type hookTransport struct {
	scriptTransport
	extra    []byte
	userData any
	fill     []byte
}

func (t *hookTransport) ParseFileInfo(extra []byte, userData any) {
	t.extra = bytes.Clone(extra)
	t.userData = userData
}

func (t *hookTransport) FillFileInfo(buf []byte, userData any) int {
	t.userData = userData
	return copy(buf, t.fill)
}

func ctrl(b byte) []byte { return []byte{b} }

// buildPacket assembles a data packet independently of the session code.
func buildPacket(header, seq byte, payload []byte) []byte {
	size, ok := DataLenForHeader(header)
	if !ok {
		panic("not a data header")
	}
	p := make([]byte, size+Overhead)
	p[0] = header
	p[1] = seq
	p[2] = ^seq
	copy(p[3:], payload)
	binary.BigEndian.PutUint16(p[3+size:], CRC16(0, p[3:3+size]))
	return p
}

func startFrame(t *testing.T, name string, length int64) []byte {
	t.Helper()
	seg := make([]byte, DataLen128)
	require.NoError(t, EncodeFileInfo(seg, FileInfo{Name: name, Length: length}, nil))
	return buildPacket(SOH, 0, seg)
}

func nullFrame() []byte {
	return buildPacket(SOH, 0, nil)
}

func newTestSession(t *testing.T, size int, tr Transport, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithRetries(2), WithTimeout(time.Millisecond)}, opts...)
	s, err := NewSession(make([]byte, size), tr, opts...)
	require.NoError(t, err)
	return s
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}
