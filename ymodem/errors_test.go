package ymodem

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	require.Equal(t, "ymodem timeout: no reply (code: NO_DATA)",
		NewError(ErrTimeout, CodeNoData, "no reply").Error())
	require.Equal(t, "ymodem ended: transfer complete (code: OK)",
		NewError(ErrEnded, CodeOK, "transfer complete").Error())
	require.NotContains(t, NewError(ErrInvalidArg, CodeOK, "bad").Error(), "code")
	require.Equal(t, "PN", CodeSequence.String())
	require.Equal(t, "CAN", CodeCancelled.String())
}

func TestErrorHelpersUnwrap(t *testing.T) {
	cancelled := fmt.Errorf("send a.txt: %w", NewError(ErrEnded, CodeCancelled, "cancelled by peer"))
	require.True(t, IsEnded(cancelled))
	require.True(t, IsCancelled(cancelled))
	require.False(t, IsComplete(cancelled))
	require.Equal(t, CodeCancelled, CodeOf(cancelled))

	done := NewError(ErrEnded, CodeOK, "transfer complete")
	require.True(t, IsComplete(done))
	require.False(t, IsCancelled(done))

	plain := errors.New("boom")
	require.False(t, IsTimeout(plain))
	require.False(t, IsInvalidArg(plain))
	require.False(t, IsEnded(plain))
	require.Equal(t, CodeOK, CodeOf(plain))
	require.Equal(t, CodeOK, CodeOf(nil))
}
