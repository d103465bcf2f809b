package ymodem

import (
	"errors"
	"fmt"
)

// Error represents a YMODEM engine error.
type Error struct {
	// Type is the result class.
	Type ErrorType

	// Code is the protocol sub-code recorded on the session.
	Code ErrorCode

	// Message is a human-readable error message
	Message string
}

// ErrorType is the result class of a failed or ended operation.
type ErrorType int

const (
	// ErrInvalidArg indicates a caller bug: missing or undersized inputs,
	// or an operation issued in the wrong state.
	ErrInvalidArg ErrorType = iota

	// ErrTimeout indicates the peer stayed silent for the whole retry budget.
	ErrTimeout

	// ErrProtocol indicates a malformed header, an unexpected reply byte
	// or a packet that does not fit the buffer.
	ErrProtocol

	// ErrCheck indicates a packet failed its sequence or CRC check after
	// all retries.
	ErrCheck

	// ErrIO indicates the transport failed to write or flush.
	ErrIO

	// ErrEnded indicates the transfer stopped on the peer's or the engine's
	// initiative. Code tells completion (CodeOK) from cancellation and
	// NAK exhaustion.
	ErrEnded

	// ErrInternal indicates the session reached a state transition that
	// cannot happen.
	ErrInternal
)

func (t ErrorType) String() string {
	switch t {
	case ErrInvalidArg:
		return "invalid argument"
	case ErrTimeout:
		return "timeout"
	case ErrProtocol:
		return "protocol error"
	case ErrCheck:
		return "check error"
	case ErrIO:
		return "I/O error"
	case ErrEnded:
		return "ended"
	case ErrInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// ErrorCode is the auxiliary code kept on the session after every operation.
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeInvalidFileName
	CodeNoData
	CodeSequence
	CodeCRC
	CodeCancelled
	CodeNAKRetry
	CodeHeader
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidFileName:
		return "INVALID_FILE_NAME"
	case CodeNoData:
		return "NO_DATA"
	case CodeSequence:
		return "PN"
	case CodeCRC:
		return "CRC"
	case CodeCancelled:
		return "CAN"
	case CodeNAKRetry:
		return "NAK_RETRY"
	case CodeHeader:
		return "HEADER"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

func (e *Error) Error() string {
	if e.Code != CodeOK || e.Type == ErrEnded {
		return fmt.Sprintf("ymodem %s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("ymodem %s: %s", e.Type, e.Message)
}

// NewError creates a new YMODEM error
func NewError(errType ErrorType, code ErrorCode, message string) *Error {
	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrTimeout
}

// IsInvalidArg checks if an error is an invalid argument error
func IsInvalidArg(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrInvalidArg
}

// IsEnded reports whether the transfer stopped, either because it
// completed or because it was cancelled.
func IsEnded(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrEnded
}

// IsComplete reports whether err signals a normally finished transfer.
func IsComplete(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrEnded && e.Code == CodeOK
}

// IsCancelled reports whether the peer cancelled the transfer.
func IsCancelled(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrEnded && e.Code == CodeCancelled
}

// CodeOf returns the protocol sub-code carried by err, or CodeOK.
func CodeOf(err error) ErrorCode {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return CodeOK
}
