package ymodem

import "time"

// Transport is the byte stream a Session talks through.
//
// Read fills p with whatever arrives before timeout elapses and returns the
// number of bytes collected, which may be zero. A return of n <= 0 means
// nothing arrived; an error is informational and only logged by the engine.
// Write returns the number of bytes accepted within timeout. Flush drops any
// input that was received but not yet read. Delay blocks for d.
type Transport interface {
	Read(p []byte, timeout time.Duration) (int, error)
	Write(p []byte, timeout time.Duration) (int, error)
	Flush() error
	Delay(d time.Duration)
}

// FileInfoParser is implemented by transports that want the bytes following
// the length field of a received start frame.
type FileInfoParser interface {
	ParseFileInfo(extra []byte, userData any)
}

// FileInfoFiller is implemented by transports that append their own fields
// to an outgoing start frame. FillFileInfo writes into buf and returns the
// number of bytes used.
type FileInfoFiller interface {
	FillFileInfo(buf []byte, userData any) int
}
