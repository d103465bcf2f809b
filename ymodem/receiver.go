package ymodem

// RecvState is the state of the receiving side of a session.
type RecvState int

const (
	RecvNone RecvState = iota
	RecvFileInfoAvailable
	RecvRequestFileData
	RecvGotEOT1
	RecvGotEOT2
	RecvFeedbackEOT2
	RecvEnd
)

func (st RecvState) String() string {
	switch st {
	case RecvNone:
		return "NONE"
	case RecvFileInfoAvailable:
		return "FILE_INFO_AVAILABLE"
	case RecvRequestFileData:
		return "REQUEST_FILE_DATA"
	case RecvGotEOT1:
		return "GOT_EOT1"
	case RecvGotEOT2:
		return "GOT_EOT2"
	case RecvFeedbackEOT2:
		return "FEEDBACK_EOT2"
	case RecvEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// inEOT reports whether the receiver is answering end of transmission.
func (st RecvState) inEOT() bool {
	return st == RecvGotEOT1 || st == RecvGotEOT2 || st == RecvFeedbackEOT2
}

// xshellAck follows the final ACK in XShell compatible mode.
const xshellAck = 'O'

var errDuplicate = NewError(ErrCheck, CodeSequence, "duplicate packet")

func (s *Session) setRecvState(st RecvState) {
	if s.recvState != st {
		s.logger.Debug().Stringer("from", s.recvState).Stringer("to", st).Msg("receiver state")
	}
	s.recvState = st
}

// RecvHandshake requests and parses the start frame of the next file.
// When the previous file of a batch was followed by this start frame, it is
// taken from the buffer instead of being requested.
//
// A failed handshake leaves the receiver in RecvNone; the caller is
// expected to retry it, typically after a short delay. A null start frame
// from the peer fails with CodeInvalidFileName after being acknowledged.
func (s *Session) RecvHandshake() (FileInfo, error) {
	pending := s.pendingStart
	s.pendingStart = false
	s.setRecvState(RecvNone)
	s.transferred = 0
	s.fileLen = 0
	s.pendingACK = false

	if !pending {
		s.flushRead()
		if err := s.putc(WantCRC); err != nil {
			return FileInfo{}, err
		}
		if err := s.receivePacket(); err != nil {
			return FileInfo{}, err
		}
	}
	if s.dataLen == 0 {
		return FileInfo{}, s.fail(ErrProtocol, CodeHeader, "expected a start frame, got %s",
			ControlName(s.buf[headerIdx]))
	}
	if !s.recvState.inEOT() {
		if err := s.putc(ACK); err != nil {
			return FileInfo{}, err
		}
	}

	info, extra, err := DecodeFileInfo(s.buf[dataIdx:dataIdx+s.dataLen], s.config.MaxNameLen)
	if err != nil {
		s.code = CodeOf(err)
		return FileInfo{}, err
	}
	if p, ok := s.transport.(FileInfoParser); ok && len(extra) > 0 {
		p.ParseFileInfo(extra, s.userData)
	}

	s.fileLen = info.Length
	s.seq = s.buf[seqIdx]
	s.code = CodeOK
	s.setRecvState(RecvFileInfoAvailable)
	s.logger.Info().Str("name", info.Name).Int64("length", info.Length).Msg("receiving file")
	return info, nil
}

// RecvData returns the payload of the next data packet.
//
// The slice aliases the session buffer and is valid until the next call.
// For files of known length the final payload is clamped to the bytes
// still expected. Once the sender has closed the file and the session, an
// ErrEnded error with CodeOK is returned; a peer cancel gives ErrEnded with
// CodeCancelled.
func (s *Session) RecvData() ([]byte, error) {
	switch s.recvState {
	case RecvFileInfoAvailable, RecvRequestFileData:
	case RecvFeedbackEOT2:
		return nil, s.recvEnd()
	default:
		return nil, s.fail(ErrInvalidArg, CodeOK, "RecvData in state %s", s.recvState)
	}

	var err error
	for retry := s.config.Retries + 1; retry > 0; retry-- {
		if err = s.recvFileData(); err == nil || IsEnded(err) {
			break
		}
		s.logger.Debug().Err(err).Int("left", retry-1).Msg("data packet failed")
	}
	if err != nil {
		return nil, err
	}

	switch s.recvState {
	case RecvFeedbackEOT2:
		return nil, s.recvEnd()
	case RecvRequestFileData:
		n := int64(s.dataLen)
		if s.fileLen >= 0 {
			n = min(n, max(s.fileLen-s.transferred, 0))
		}
		s.transferred += n
		return s.buf[dataIdx : dataIdx+int(n)], nil
	default:
		return nil, s.fail(ErrInternal, CodeOK, "data packet in state %s", s.recvState)
	}
}

// recvFileData performs one packet exchange of the data phase.
func (s *Session) recvFileData() error {
	s.flushRead()
	if s.recvState == RecvFileInfoAvailable {
		if err := s.putc(WantCRC); err != nil {
			return err
		}
		s.setRecvState(RecvRequestFileData)
	}

	if err := s.receivePacket(); err != nil {
		return err
	}
	if s.recvState != RecvRequestFileData {
		return nil
	}
	if s.dataLen == 0 {
		return s.fail(ErrProtocol, CodeHeader, "expected a data packet")
	}

	// The peer resends the last packet when our ACK got lost.
	if s.buf[seqIdx] == s.seq {
		s.dataLen = 0
		if err := s.putc(ACK); err != nil {
			return err
		}
		s.code = CodeSequence
		return errDuplicate
	}

	s.seq = s.buf[seqIdx]
	s.pendingACK = true
	return nil
}

// recvEnd requests the frame that follows a file. A null start frame
// closes the session and is acknowledged. Any other start frame opens the
// next file of a batch; it is left in the buffer for RecvHandshake.
func (s *Session) recvEnd() error {
	s.flushRead()
	if err := s.putc(WantCRC); err != nil {
		return err
	}
	if err := s.receivePacket(); err != nil {
		return err
	}
	// An EOT again means the peer missed our ACK.
	for retry := s.config.Retries; s.dataLen == 0; retry-- {
		if retry == 0 || s.buf[headerIdx] != EOT {
			return s.fail(ErrProtocol, CodeHeader, "expected a start frame, got %s",
				ControlName(s.buf[headerIdx]))
		}
		if err := s.putc(ACK); err != nil {
			return err
		}
		if err := s.receivePacket(); err != nil {
			return err
		}
	}

	next := s.buf[dataIdx] != 0
	if !next {
		if err := s.putc(ACK); err != nil {
			return err
		}
		if s.config.XShellCompat {
			if err := s.putc(xshellAck); err != nil {
				return err
			}
		}
	}

	s.logger.Info().Int64("bytes", s.transferred).Bool("more", next).Msg("transfer complete")
	s.fileLen, s.transferred, s.seq = 0, 0, 0
	s.pendingStart = next
	s.setRecvState(RecvEnd)
	return s.fail(ErrEnded, CodeOK, "transfer complete")
}
