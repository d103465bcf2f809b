package ymodem

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamTransportDeadline(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	st := NewStreamTransport(a, a)
	require.NotNil(t, st.dr)

	var p [4]byte
	n, err := st.Read(p[:], 5*time.Millisecond)
	require.NoError(t, err)
	require.Zero(t, n)

	go b.Write([]byte("ab"))
	n, err = st.Read(p[:], 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "ab", string(p[:n]))

	done := make(chan []byte)
	go func() {
		buf := make([]byte, 3)
		_, _ = io.ReadFull(b, buf)
		done <- buf
	}()
	n, err = st.Write([]byte("xyz"), time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("xyz"), <-done)
}

func TestStreamTransportPump(t *testing.T) {
	pr, pw := io.Pipe()
	st := NewStreamTransport(pr, io.Discard)
	require.Nil(t, st.dr)

	go pw.Write([]byte("abcdef"))

	var p [2]byte
	n, err := st.Read(p[:], time.Second)
	require.NoError(t, err)
	require.Equal(t, "ab", string(p[:n]))

	// The rest of the chunk is pending and dropped by Flush.
	require.NoError(t, st.Flush())
	n, err = st.Read(p[:], 5*time.Millisecond)
	require.NoError(t, err)
	require.Zero(t, n)

	go pw.Write([]byte("g"))
	n, err = st.Read(p[:], 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "g", string(p[:n]))

	require.NoError(t, pw.Close())
	_, err = st.Read(p[:], time.Second)
	require.ErrorIs(t, err, io.EOF)
	_, err = st.Read(p[:], time.Second)
	require.ErrorIs(t, err, io.EOF)
}
