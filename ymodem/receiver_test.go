package ymodem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecvHandshake(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "a.txt", 20))
	s := newTestSession(t, MinBufferSize, tr)

	info, err := s.RecvHandshake()
	require.NoError(t, err)
	require.Equal(t, FileInfo{Name: "a.txt", Length: 20}, info)
	require.Equal(t, []byte{WantCRC, ACK}, tr.controls())
	require.Equal(t, RecvFileInfoAvailable, s.RecvState())
	require.Equal(t, int64(20), s.FileLen())
	require.Zero(t, s.Transferred())
	require.Equal(t, CodeOK, s.ErrorCode())
}

func TestRecvFullFile(t *testing.T) {
	data := payload(20)
	tr := &scriptTransport{}
	tr.queue(
		startFrame(t, "a.txt", 20),
		buildPacket(SOH, 1, append(bytes.Clone(data), bytes.Repeat([]byte{Pad}, DataLen128-20)...)),
		ctrl(EOT), ctrl(EOT),
		nullFrame(),
	)
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)

	got, err := s.RecvData()
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.Equal(t, int64(20), s.Transferred())

	got, err = s.RecvData()
	require.Nil(t, got)
	require.True(t, IsComplete(err), "got %v", err)

	require.Equal(t, []byte{WantCRC, ACK, WantCRC, ACK, NAK, ACK, WantCRC, ACK}, tr.controls())
	require.Equal(t, RecvEnd, s.RecvState())
	require.Equal(t, CodeOK, s.ErrorCode())
	require.Zero(t, s.FileLen())
	require.Zero(t, s.Transferred())
	require.Zero(t, s.Seq())
}

func TestRecvClampsToFileLength(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(
		startFrame(t, "b.bin", 1100),
		buildPacket(STX, 1, payload(DataLen1K)),
		buildPacket(STX, 2, payload(DataLen1K)),
		buildPacket(STX, 3, payload(DataLen1K)),
	)
	s := newTestSession(t, DataLen1K+Overhead, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)

	got, err := s.RecvData()
	require.NoError(t, err)
	require.Len(t, got, DataLen1K)

	got, err = s.RecvData()
	require.NoError(t, err)
	require.Len(t, got, 1100-DataLen1K)

	// Anything beyond the announced length is dropped.
	got, err = s.RecvData()
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int64(1100), s.Transferred())
}

func TestRecvUnknownLengthKeepsPadding(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(
		startFrame(t, "stream", UnknownLength),
		buildPacket(SOH, 1, []byte("tail")),
	)
	s := newTestSession(t, MinBufferSize, tr)

	info, err := s.RecvHandshake()
	require.NoError(t, err)
	require.Equal(t, int64(UnknownLength), info.Length)

	got, err := s.RecvData()
	require.NoError(t, err)
	require.Len(t, got, DataLen128)
	require.Equal(t, []byte("tail"), got[:4])
}

func TestRecvCancelledByPeer(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "a.txt", 500), bytes.Repeat([]byte{CAN}, cancelBurst))
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)

	_, err = s.RecvData()
	require.True(t, IsCancelled(err), "got %v", err)
	require.Equal(t, CodeCancelled, s.ErrorCode())
}

func TestRecvNoData(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "a.txt", 500))
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)

	_, err = s.RecvData()
	require.True(t, IsTimeout(err), "got %v", err)
	require.Equal(t, CodeNoData, s.ErrorCode())
	// 'C' goes out once; retries only listen.
	require.Equal(t, []byte{WantCRC, ACK, WantCRC}, tr.controls())
}

func TestRecvSkipsDuplicatePacket(t *testing.T) {
	first := payload(DataLen128)
	second := bytes.Repeat([]byte{0x5A}, DataLen128)
	tr := &scriptTransport{}
	tr.queue(
		startFrame(t, "dup", 256),
		buildPacket(SOH, 1, first),
		buildPacket(SOH, 1, first),
		buildPacket(SOH, 2, second),
	)
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)

	got, err := s.RecvData()
	require.NoError(t, err)
	require.Equal(t, first, got)

	got, err = s.RecvData()
	require.NoError(t, err)
	require.Equal(t, second, got)
	require.Equal(t, int64(256), s.Transferred())
	// pending ACK, duplicate ACK
	require.Equal(t, []byte{WantCRC, ACK, WantCRC, ACK, ACK}, tr.controls())
}

func TestRecvHandshakeNullFrame(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(nullFrame())
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.Equal(t, CodeInvalidFileName, CodeOf(err))
	require.Equal(t, CodeInvalidFileName, s.ErrorCode())
	require.Equal(t, []byte{WantCRC, ACK}, tr.controls())
	require.Equal(t, RecvNone, s.RecvState())
}

func TestRecvHandshakeRejectsEOT(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(ctrl(EOT))
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.Equal(t, CodeHeader, CodeOf(err))
	require.Equal(t, RecvNone, s.RecvState())
}

func TestRecvHandshakeTimeout(t *testing.T) {
	s := newTestSession(t, MinBufferSize, &scriptTransport{})
	_, err := s.RecvHandshake()
	require.True(t, IsTimeout(err))
	require.Equal(t, RecvNone, s.RecvState())
}

func TestRecvHandshakeParsesExtra(t *testing.T) {
	seg := make([]byte, DataLen128)
	require.NoError(t, EncodeFileInfo(seg, FileInfo{Name: "a.txt", Length: 3}, func(b []byte) int {
		return copy(b, "meta")
	}))
	tr := &hookTransport{}
	tr.queue(buildPacket(SOH, 0, seg))
	s := newTestSession(t, MinBufferSize, tr, WithUserData("ctx"))

	_, err := s.RecvHandshake()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(tr.extra, []byte("meta")))
	require.Equal(t, "ctx", tr.userData)
}

func TestRecvHandshakeMaxNameLen(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "a-rather-long-name.txt", 1))
	s := newTestSession(t, MinBufferSize, tr, WithMaxNameLen(6))

	info, err := s.RecvHandshake()
	require.NoError(t, err)
	require.Equal(t, "a-rath", info.Name)
}

func TestRecvXShellCompat(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "x", 0), ctrl(EOT), ctrl(EOT), nullFrame())
	s := newTestSession(t, MinBufferSize, tr, WithXShellCompat(true))

	_, err := s.RecvHandshake()
	require.NoError(t, err)
	_, err = s.RecvData()
	require.True(t, IsComplete(err), "got %v", err)
	require.Equal(t, []byte{WantCRC, ACK, WantCRC, NAK, ACK, WantCRC, ACK, xshellAck}, tr.controls())
}

func TestRecvDataWrongState(t *testing.T) {
	s := newTestSession(t, MinBufferSize, &scriptTransport{})
	_, err := s.RecvData()
	require.True(t, IsInvalidArg(err))
}

func TestRecvStateString(t *testing.T) {
	require.Equal(t, "REQUEST_FILE_DATA", RecvRequestFileData.String())
	require.Equal(t, "UNKNOWN", RecvState(99).String())
	require.True(t, RecvGotEOT2.inEOT())
	require.False(t, RecvFileInfoAvailable.inEOT())
}

func TestRecvBatchKeepsNextStartFrame(t *testing.T) {
	first, second := payload(20), []byte("hello")
	tr := &scriptTransport{}
	tr.queue(
		startFrame(t, "a.txt", 20),
		buildPacket(SOH, 1, first),
		ctrl(EOT), ctrl(EOT),
		startFrame(t, "b.txt", 5),
		buildPacket(SOH, 1, second),
		ctrl(EOT), ctrl(EOT),
		nullFrame(),
	)
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)
	got, err := s.RecvData()
	require.NoError(t, err)
	require.Equal(t, first, got)
	_, err = s.RecvData()
	require.True(t, IsComplete(err), "got %v", err)

	// The start frame of b.txt is held back, not acknowledged.
	require.Equal(t, []byte{WantCRC, ACK, WantCRC, ACK, NAK, ACK, WantCRC}, tr.controls())
	require.True(t, s.pendingStart)

	info, err := s.RecvHandshake()
	require.NoError(t, err)
	require.Equal(t, FileInfo{Name: "b.txt", Length: 5}, info)
	require.False(t, s.pendingStart)

	got, err = s.RecvData()
	require.NoError(t, err)
	require.Equal(t, second, got)
	_, err = s.RecvData()
	require.True(t, IsComplete(err), "got %v", err)
	require.False(t, s.pendingStart)

	require.Equal(t, []byte{
		WantCRC, ACK, WantCRC, ACK, NAK, ACK, WantCRC,
		ACK, WantCRC, ACK, NAK, ACK, WantCRC, ACK,
	}, tr.controls())
	require.Empty(t, tr.in)
}

func TestRecvEndAcksRepeatedEOT(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "x", 0), ctrl(EOT), ctrl(EOT), ctrl(EOT), nullFrame())
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)
	_, err = s.RecvData()
	require.True(t, IsComplete(err), "got %v", err)
	require.False(t, s.pendingStart)
	require.Equal(t, []byte{WantCRC, ACK, WantCRC, NAK, ACK, WantCRC, ACK, ACK}, tr.controls())
}

func TestRecvEndCancelled(t *testing.T) {
	tr := &scriptTransport{}
	tr.queue(startFrame(t, "x", 0), ctrl(EOT), ctrl(EOT), ctrl(CAN))
	s := newTestSession(t, MinBufferSize, tr)

	_, err := s.RecvHandshake()
	require.NoError(t, err)
	_, err = s.RecvData()
	require.True(t, IsCancelled(err), "got %v", err)
	require.False(t, s.pendingStart)
}
