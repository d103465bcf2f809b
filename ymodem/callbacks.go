package ymodem

import (
	"io"
	"os"
	"path/filepath"
	"time"
)

// Callbacks provides hooks for the file level helpers SendFile,
// ReceiveFile and ReceiveFiles. All callbacks are optional.
type Callbacks struct {
	// OnFileStart is called once the handshake for a file succeeded.
	OnFileStart func(info FileInfo)

	// OnProgress is called periodically during file transfer.
	// total is UnknownLength when the sender gave no length.
	OnProgress func(name string, transferred, total int64, rate float64)

	// OnFileComplete is called when a file transfer completes.
	OnFileComplete func(info FileInfo, bytesTransferred int64, duration time.Duration)

	// OnError is called when a handshake attempt fails.
	// Return true to keep trying, false to give up.
	OnError func(err error, context string) bool

	// OnFileCreate opens the destination of a received file. A returned
	// io.Closer is closed when the file ends. If nil, the base name of the
	// file is created in the working directory.
	OnFileCreate func(info FileInfo) (io.Writer, error)
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnFileStart:    func(FileInfo) {},
		OnProgress:     func(string, int64, int64, float64) {},
		OnFileComplete: func(FileInfo, int64, time.Duration) {},
		OnError: func(error, string) bool {
			return true
		},
		OnFileCreate: createInWorkingDir,
	}
}

func createInWorkingDir(info FileInfo) (io.Writer, error) {
	return os.Create(filepath.Base(info.Name))
}

// mergeCallbacks fills the hooks the caller left nil with defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	def := defaultCallbacks()
	if user == nil {
		return def
	}

	result := *user
	if result.OnFileStart == nil {
		result.OnFileStart = def.OnFileStart
	}
	if result.OnProgress == nil {
		result.OnProgress = def.OnProgress
	}
	if result.OnFileComplete == nil {
		result.OnFileComplete = def.OnFileComplete
	}
	if result.OnError == nil {
		result.OnError = def.OnError
	}
	if result.OnFileCreate == nil {
		result.OnFileCreate = def.OnFileCreate
	}
	return &result
}
