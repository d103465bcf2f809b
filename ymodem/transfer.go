package ymodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// SendFile sends one file read from r: handshake, data, EOT and the null
// frame closing the session. A file of UnknownLength is sent until r
// reports io.EOF. Use SendFiles to send several files in one session.
//
// Cancelling ctx sends a CAN burst to the receiver before returning.
func (s *Session) SendFile(ctx context.Context, info FileInfo, r io.Reader) error {
	err := s.retryHandshake(ctx, "send handshake", func() error {
		return s.SendHandshake(info)
	})
	if err != nil {
		return err
	}

	s.callbacks.OnFileStart(info)
	tracker := NewProgressTracker(s.callbacks.OnProgress, s.config.ProgressInterval)
	tracker.Start(info)

	for {
		if err := ctx.Err(); err != nil {
			s.abort()
			return err
		}

		chunk, err := s.SendBuffer()
		if err != nil {
			return err
		}
		n := 0
		if len(chunk) > 0 {
			n, err = io.ReadFull(r, chunk)
			switch {
			case err == nil:
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
				if info.Length >= 0 {
					s.abort()
					return fmt.Errorf("ymodem: %s ended after %d of %d bytes",
						info.Name, s.transferred+int64(n), info.Length)
				}
			default:
				s.abort()
				return fmt.Errorf("ymodem: read %s: %w", info.Name, err)
			}
		}

		sent := s.transferred + int64(n)
		err = s.SendData(n)
		if IsComplete(err) {
			tracker.Update(sent)
			s.callbacks.OnFileComplete(info, sent, tracker.Complete())
			return nil
		}
		if err != nil {
			return err
		}
		tracker.Update(s.transferred)
	}
}

// ReceiveFile receives one file into the writer returned by OnFileCreate.
// It returns the start frame contents of the file. A writer that is also an
// io.Closer is closed when the file ends and its Close error is returned.
//
// Cancelling ctx sends a CAN burst to the sender before returning.
func (s *Session) ReceiveFile(ctx context.Context) (info FileInfo, err error) {
	err = s.retryHandshake(ctx, "receive handshake", func() (err error) {
		info, err = s.RecvHandshake()
		return err
	})
	if err != nil {
		return FileInfo{}, err
	}

	w, err := s.callbacks.OnFileCreate(info)
	if err != nil {
		s.abort()
		return info, fmt.Errorf("ymodem: create %s: %w", info.Name, err)
	}
	if c, ok := w.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("ymodem: close %s: %w", info.Name, cerr)
			}
		}()
	}

	s.callbacks.OnFileStart(info)
	tracker := NewProgressTracker(s.callbacks.OnProgress, s.config.ProgressInterval)
	tracker.Start(info)

	var written int64
	for {
		if err := ctx.Err(); err != nil {
			s.abort()
			return info, err
		}

		data, err := s.RecvData()
		if IsComplete(err) {
			s.callbacks.OnFileComplete(info, written, tracker.Complete())
			return info, nil
		}
		if err != nil {
			return info, err
		}

		if _, err := w.Write(data); err != nil {
			s.abort()
			return info, fmt.Errorf("ymodem: write %s: %w", info.Name, err)
		}
		written += int64(len(data))
		tracker.Update(written)
	}
}

// ReceiveFiles receives files until the sender closes the batch with a null
// start frame or maxFiles were received (0 for no limit). It returns the
// number of files received.
func (s *Session) ReceiveFiles(ctx context.Context, maxFiles int) (int, error) {
	count := 0
	for maxFiles <= 0 || count < maxFiles {
		if count > 0 && !s.pendingStart {
			return count, nil
		}
		_, err := s.ReceiveFile(ctx)
		switch {
		case err == nil:
			count++
		case CodeOf(err) == CodeInvalidFileName:
			// A null start frame right away: the batch is empty.
			return count, nil
		default:
			return count, err
		}
	}
	return count, nil
}

// Source is one file of a batch sent by SendFiles.
type Source struct {
	Info FileInfo

	// Open is called when the file's turn comes. The reader is closed once
	// the file was sent.
	Open func() (io.ReadCloser, error)
}

// SendFiles sends files as one batch: the start frame of each file follows
// the EOTs of the previous one, and a single null start frame ends the
// session after the last file.
func (s *Session) SendFiles(ctx context.Context, files []Source) error {
	if len(files) == 0 {
		return s.fail(ErrInvalidArg, CodeOK, "no files to send")
	}
	s.batch = true
	defer func() { s.batch = false }()

	for _, f := range files {
		r, err := f.Open()
		if err != nil {
			s.abort()
			return fmt.Errorf("ymodem: open %s: %w", f.Info.Name, err)
		}
		err = s.SendFile(ctx, f.Info, r)
		if cerr := r.Close(); err == nil && cerr != nil {
			s.abort()
			err = fmt.Errorf("ymodem: close %s: %w", f.Info.Name, cerr)
		}
		if err != nil {
			return err
		}
	}
	return s.closeBatch()
}

// abort cancels the transfer on the peer's side. A failed CAN burst is only
// logged; the caller already has an error to report.
func (s *Session) abort() {
	if err := s.Cancel(); err != nil {
		s.logger.Debug().Err(err).Msg("cancel")
	}
}

// retryHandshake runs fn until it succeeds, the attempts run out, the
// error is final or ctx is done.
func (s *Session) retryHandshake(ctx context.Context, what string, fn func() error) error {
	var err error
	for attempt := 1; s.config.HandshakeAttempts <= 0 || attempt <= s.config.HandshakeAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		if IsEnded(err) || IsInvalidArg(err) {
			return err
		}
		if !s.callbacks.OnError(err, what) {
			return err
		}
		s.logger.Debug().Err(err).Int("attempt", attempt).Msg(what)

		t := time.NewTimer(s.config.HandshakeDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
