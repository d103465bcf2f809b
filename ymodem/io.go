package ymodem

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// ReaderWithTimeout is an io.Reader with deadline support, such as a
// net.Conn or a pollable *os.File.
type ReaderWithTimeout interface {
	io.Reader
	SetReadDeadline(time.Time) error
}

// drainWindow is how long Flush waits for stray input.
const drainWindow = time.Millisecond

// pumpChunk is the read size of the background pump.
const pumpChunk = 4096

type chunk struct {
	data []byte
	err  error
}

// StreamTransport adapts a plain byte stream to Transport.
//
// When the reader supports read deadlines they bound every Read. Otherwise
// a single goroutine pumps the reader into a channel and Read waits on it
// with a timer; the goroutine ends when the reader returns an error.
type StreamTransport struct {
	r  io.Reader
	dr ReaderWithTimeout
	w  io.Writer

	once    sync.Once
	chunks  chan chunk
	pending []byte
	rerr    error

	scratch [256]byte
}

// NewStreamTransport wraps r and w.
func NewStreamTransport(r io.Reader, w io.Writer) *StreamTransport {
	t := &StreamTransport{r: r, w: w}
	if dr, ok := r.(ReaderWithTimeout); ok && dr.SetReadDeadline(time.Time{}) == nil {
		t.dr = dr
	}
	return t
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Read collects bytes into p until it is full or timeout expires.
func (t *StreamTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if t.dr != nil {
		return t.readDeadline(p, timeout)
	}
	return t.readPump(p, timeout)
}

func (t *StreamTransport) readDeadline(p []byte, timeout time.Duration) (int, error) {
	if err := t.dr.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	n := 0
	for n < len(p) {
		m, err := t.dr.Read(p[n:])
		n += m
		if err != nil {
			if isTimeout(err) {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}

func (t *StreamTransport) startPump() {
	t.once.Do(func() {
		t.chunks = make(chan chunk, 16)
		go t.pump()
	})
}

func (t *StreamTransport) pump() {
	defer close(t.chunks)
	for {
		buf := make([]byte, pumpChunk)
		n, err := t.r.Read(buf)
		if n > 0 || err != nil {
			t.chunks <- chunk{data: buf[:n], err: err}
		}
		if err != nil {
			return
		}
	}
}

func (t *StreamTransport) readPump(p []byte, timeout time.Duration) (int, error) {
	t.startPump()

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	if n == len(p) {
		return n, nil
	}
	if t.rerr != nil {
		return n, t.rerr
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for n < len(p) {
		select {
		case c, ok := <-t.chunks:
			if !ok {
				return n, io.EOF
			}
			m := copy(p[n:], c.data)
			n += m
			t.pending = c.data[m:]
			if c.err != nil {
				t.rerr = c.err
				return n, c.err
			}
		case <-timer.C:
			return n, nil
		}
	}
	return n, nil
}

// Write writes p, bounded by timeout when the writer supports write
// deadlines. Buffered writers are flushed.
func (t *StreamTransport) Write(p []byte, timeout time.Duration) (int, error) {
	if dw, ok := t.w.(interface{ SetWriteDeadline(time.Time) error }); ok {
		if err := dw.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}
	n, err := t.w.Write(p)
	if err != nil {
		return n, err
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return n, f.Flush()
	}
	return n, nil
}

// Flush discards input that already arrived.
func (t *StreamTransport) Flush() error {
	if t.dr != nil {
		for {
			if err := t.dr.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
				return err
			}
			n, err := t.dr.Read(t.scratch[:])
			if err != nil || n == 0 {
				if err != nil && !isTimeout(err) {
					return err
				}
				return nil
			}
		}
	}

	t.pending = nil
	if t.chunks == nil {
		return nil
	}
	for {
		select {
		case c, ok := <-t.chunks:
			if !ok {
				return nil
			}
			if c.err != nil {
				t.rerr = c.err
				return nil
			}
		default:
			return nil
		}
	}
}

// Delay sleeps for d.
func (t *StreamTransport) Delay(d time.Duration) {
	time.Sleep(d)
}
