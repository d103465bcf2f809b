package ymodem

import (
	"context"
	"errors"
	"io"

	"golang.org/x/crypto/ssh"
)

// Default remote commands, as shipped by lrzsz.
const (
	RemoteReceiveCommand = "rb"
	RemoteSendCommand    = "sb"
)

// SSHSession runs a YMODEM peer on a remote host and talks to it over the
// SSH session's stdin and stdout.
type SSHSession struct {
	*Session
	sshSession *ssh.Session
	stdin      io.WriteCloser
	stderr     io.Reader
}

// NewSSHSession creates a YMODEM session from an SSH session.
// buf and opts are passed to NewSession.
func NewSSHSession(sshSession *ssh.Session, buf []byte, opts ...Option) (*SSHSession, error) {
	stdin, err := sshSession.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	stderr, err := sshSession.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	// SSH channels have no read deadline, so the stream transport pumps.
	transport := NewStreamTransport(stdout, stdin)

	session, err := NewSession(buf, transport, opts...)
	if err != nil {
		stdin.Close()
		return nil, err
	}

	return &SSHSession{
		Session:    session,
		sshSession: sshSession,
		stdin:      stdin,
		stderr:     stderr,
	}, nil
}

// SendFileRemote starts cmd (RemoteReceiveCommand when empty) on the
// remote host and sends one file to it.
func (s *SSHSession) SendFileRemote(ctx context.Context, cmd string, info FileInfo, r io.Reader) error {
	if cmd == "" {
		cmd = RemoteReceiveCommand
	}
	return s.run(ctx, cmd, func() error {
		return s.SendFile(ctx, info, r)
	})
}

// ReceiveFilesRemote starts cmd on the remote host, typically
// "sb <file>", and receives up to maxFiles files from it.
func (s *SSHSession) ReceiveFilesRemote(ctx context.Context, cmd string, maxFiles int) (int, error) {
	var count int
	err := s.run(ctx, cmd, func() (err error) {
		count, err = s.ReceiveFiles(ctx, maxFiles)
		return err
	})
	return count, err
}

// run starts cmd, runs transfer and waits for cmd to exit.
func (s *SSHSession) run(ctx context.Context, cmd string, transfer func() error) error {
	if cmd == "" {
		return NewError(ErrInvalidArg, CodeOK, "empty remote command")
	}
	if err := s.sshSession.Start(cmd); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.sshSession.Wait()
	}()

	err := transfer()

	// Closing stdin lets the remote side exit.
	s.stdin.Close()

	select {
	case werr := <-done:
		var exitErr *ssh.ExitMissingError
		if err == nil && werr != nil && !errors.As(werr, &exitErr) {
			err = werr
		}
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Stderr returns the stderr reader for monitoring remote command output.
func (s *SSHSession) Stderr() io.Reader {
	return s.stderr
}

// Close closes the SSH session and cleans up resources.
func (s *SSHSession) Close() error {
	var errs []error
	if err := s.stdin.Close(); err != nil && !errors.Is(err, io.EOF) {
		errs = append(errs, err)
	}
	if err := s.sshSession.Close(); err != nil && !errors.Is(err, io.EOF) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
