package ymodem

// SendState is the state of the sending side of a session.
type SendState int

const (
	SendNone SendState = iota
	SendFileInfo
	SendFileData
	SendEOT1
	SendEOT2
	SendNullFileInfo
	SendEnd
)

func (st SendState) String() string {
	switch st {
	case SendNone:
		return "NONE"
	case SendFileInfo:
		return "FILE_INFO"
	case SendFileData:
		return "FILE_DATA"
	case SendEOT1:
		return "EOT1"
	case SendEOT2:
		return "EOT2"
	case SendNullFileInfo:
		return "NULL_FILE_INFO"
	case SendEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

func (s *Session) setSendState(st SendState) {
	if s.sendState != st {
		s.logger.Debug().Stringer("from", s.sendState).Stringer("to", st).Msg("sender state")
	}
	s.sendState = st
}

// unexpected turns a reply byte that does not fit the current step into
// an error. CAN always means the peer gave up.
func (s *Session) unexpected(c byte, step string) error {
	if c == CAN {
		return s.fail(ErrEnded, CodeCancelled, "cancelled by peer during %s", step)
	}
	return s.fail(ErrProtocol, CodeHeader, "unexpected %s (0x%02x) during %s", ControlName(c), c, step)
}

// fillHook adapts the transport's FileInfoFiller, if any.
func (s *Session) fillHook() func([]byte) int {
	f, ok := s.transport.(FileInfoFiller)
	if !ok {
		return nil
	}
	return func(b []byte) int {
		return f.FillFileInfo(b, s.userData)
	}
}

// SendHandshake waits for the receiver's 'C', sends the start frame for
// info and waits for the ACK and the 'C' that opens the data phase.
// The caller retries a failed handshake, typically after a short delay.
func (s *Session) SendHandshake(info FileInfo) error {
	s.seq = 0
	s.setSendState(SendNone)

	c, err := s.getc()
	if err != nil {
		return err
	}
	if c != WantCRC {
		return s.unexpected(c, "handshake")
	}

	s.buf[headerIdx] = SOH
	s.dataLen = DataLen128
	if err := EncodeFileInfo(s.buf[dataIdx:dataIdx+DataLen128], info, s.fillHook()); err != nil {
		s.code = CodeOf(err)
		return err
	}
	s.fileLen = info.Length
	s.transferred = 0
	s.stampPacket()

	s.setSendState(SendFileInfo)
	if err := s.sendPacket(); err != nil {
		return err
	}
	s.seq++

	if c, err = s.getc(); err != nil {
		return err
	}
	if c != ACK {
		return s.unexpected(c, "start frame")
	}
	if c, err = s.getc(); err != nil {
		return err
	}
	if c != WantCRC {
		return s.unexpected(c, "start frame")
	}

	s.dataLen = 0
	s.code = CodeOK
	s.setSendState(SendFileData)
	s.logger.Info().Str("name", info.Name).Int64("length", info.Length).Msg("sending file")
	return nil
}

// SendBuffer returns the slice the caller fills with the next chunk.
//
// The chunk is as large as the buffer allows, shortened to the bytes left
// when the file length is known. An empty slice means the file is complete
// and SendData(0) closes it.
func (s *Session) SendBuffer() ([]byte, error) {
	if s.sendState != SendFileData {
		return nil, s.fail(ErrInvalidArg, CodeOK, "SendBuffer in state %s", s.sendState)
	}
	n := maxDataLen(len(s.buf))
	if s.fileLen >= 0 {
		n = int(min(int64(n), max(s.fileLen-s.transferred, 0)))
	}
	s.dataLen = n
	return s.buf[dataIdx : dataIdx+n], nil
}

// SendData sends the first n bytes of the chunk returned by SendBuffer and
// waits for the receiver's verdict, resending on NAK.
//
// When the last byte of a file of known length is acknowledged, or when n
// is 0, the file is closed with SendEOT and its ErrEnded result returned.
func (s *Session) SendData(n int) error {
	if s.sendState != SendFileData {
		return s.fail(ErrInvalidArg, CodeOK, "SendData in state %s", s.sendState)
	}
	if n < 0 || n > s.dataLen {
		return s.fail(ErrInvalidArg, CodeOK, "chunk of %d bytes, buffer holds %d", n, s.dataLen)
	}
	if n == 0 {
		return s.SendEOT()
	}

	h := HeaderForDataLen(n)
	size, _ := DataLenForHeader(h)
	for i := dataIdx + n; i < dataIdx+size; i++ {
		s.buf[i] = Pad
	}
	s.buf[headerIdx] = h
	s.dataLen = size
	s.stampPacket()

	naks := s.config.Retries
	for acked := false; !acked; {
		if err := s.sendPacket(); err != nil {
			return err
		}
		c, err := s.getc()
		if err != nil {
			return err
		}
		switch c {
		case ACK:
			acked = true
		case NAK:
			if naks == 0 {
				return s.fail(ErrEnded, CodeNAKRetry, "packet %d rejected %d times", s.seq, s.config.Retries+1)
			}
			naks--
			s.logger.Debug().Uint8("seq", s.seq).Int("left", naks).Msg("resending packet")
		default:
			return s.unexpected(c, "data")
		}
	}

	s.seq++
	s.transferred += int64(n)
	s.dataLen = 0
	s.code = CodeOK

	if s.fileLen >= 0 && s.transferred >= s.fileLen {
		return s.SendEOT()
	}
	return nil
}

// SendEOT closes the current file: EOT until the receiver acknowledges it,
// then the null start frame that tells the receiver no file follows.
// It returns ErrEnded with CodeOK once the receiver acknowledged everything.
// Inside SendFiles the null frame is left out so the next file can follow.
func (s *Session) SendEOT() error {
	if s.sendState != SendFileData {
		return s.fail(ErrInvalidArg, CodeOK, "SendEOT in state %s", s.sendState)
	}
	s.setSendState(SendEOT1)

	resends := s.config.Retries
	for s.sendState != SendNullFileInfo {
		if err := s.putc(EOT); err != nil {
			return err
		}
		c, err := s.getc()
		if err != nil {
			return err
		}
		switch {
		case c == NAK && s.sendState == SendEOT1:
			s.setSendState(SendEOT2)
		case c == NAK && resends > 0:
			resends--
		case c == ACK:
			// lrzsz rb ACKs the first EOT, which the plain protocol rejects.
			s.setSendState(SendNullFileInfo)
		default:
			return s.unexpected(c, "end of file")
		}
	}

	if s.batch {
		s.logger.Info().Int64("bytes", s.transferred).Msg("file sent")
		s.fileLen, s.transferred = 0, 0
		return s.fail(ErrEnded, CodeOK, "file complete")
	}
	return s.sendNullFileInfo()
}

// sendNullFileInfo answers the receiver's 'C' with the null start frame and
// waits for its ACK, which ends the session.
func (s *Session) sendNullFileInfo() error {
	resends := s.config.Retries
	nullSent := false
	for {
		c, err := s.getc()
		if err != nil {
			return err
		}
		switch {
		case c == WantCRC && (!nullSent || resends > 0):
			if nullSent {
				resends--
			}
			if err := s.sendNullFrame(); err != nil {
				return err
			}
			nullSent = true
		case c == ACK && nullSent:
			s.logger.Info().Int64("bytes", s.transferred).Msg("transfer complete")
			s.seq, s.fileLen, s.transferred = 0, 0, 0
			s.flushRead()
			s.setSendState(SendEnd)
			return s.fail(ErrEnded, CodeOK, "transfer complete")
		default:
			return s.unexpected(c, "end of session")
		}
	}
}

// closeBatch ends a SendFiles session after its last file.
func (s *Session) closeBatch() error {
	if s.sendState != SendNullFileInfo {
		return s.fail(ErrInvalidArg, CodeOK, "closing batch in state %s", s.sendState)
	}
	if err := s.sendNullFileInfo(); !IsComplete(err) {
		return err
	}
	s.code = CodeOK
	return nil
}

// sendNullFrame sends the all zero start frame that ends the session.
func (s *Session) sendNullFrame() error {
	clear(s.buf[:DataLen128+Overhead])
	s.buf[headerIdx] = SOH
	s.dataLen = DataLen128
	s.seq = 0
	s.stampPacket()
	return s.sendPacket()
}
