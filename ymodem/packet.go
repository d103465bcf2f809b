package ymodem

import "encoding/binary"

// DataLenForHeader returns the data segment length announced by a header
// byte. ok is false for EOT, CAN and anything that is not a data header.
func DataLenForHeader(b byte) (n int, ok bool) {
	switch b {
	case SOH:
		return DataLen128, true
	case STX:
		return DataLen1K, true
	case STX2K:
		return DataLen2K, true
	case STX4K:
		return DataLen4K, true
	case STX8K:
		return DataLen8K, true
	}
	return 0, false
}

// HeaderForDataLen returns the smallest data header whose segment holds
// n bytes. Sizes beyond 8192 map to STX8K.
func HeaderForDataLen(n int) byte {
	switch {
	case n <= DataLen128:
		return SOH
	case n <= DataLen1K:
		return STX
	case n <= DataLen2K:
		return STX2K
	case n <= DataLen4K:
		return STX4K
	default:
		return STX8K
	}
}

// segmentSizes is ordered largest first.
var segmentSizes = [...]int{DataLen8K, DataLen4K, DataLen2K, DataLen1K, DataLen128}

// maxDataLen returns the largest data segment a buffer of size bytes holds.
func maxDataLen(size int) int {
	for _, n := range segmentSizes {
		if n+Overhead <= size {
			return n
		}
	}
	return 0
}

// checkHeader classifies the header byte at the start of the buffer and
// sets dataLen. EOT advances the receiver's end of transmission sub-state.
func (s *Session) checkHeader() error {
	h := s.buf[headerIdx]
	s.dataLen = 0

	switch h {
	case EOT:
		switch s.recvState {
		case RecvRequestFileData:
			s.setRecvState(RecvGotEOT1)
		case RecvGotEOT1:
			s.setRecvState(RecvGotEOT2)
		}
		return nil
	case CAN:
		return s.fail(ErrEnded, CodeCancelled, "cancelled by peer")
	}

	n, ok := DataLenForHeader(h)
	if !ok {
		return s.fail(ErrProtocol, CodeHeader, "unknown header 0x%02x", h)
	}
	if n+Overhead > len(s.buf) {
		return s.fail(ErrProtocol, CodeHeader, "%s packet does not fit a %d byte buffer",
			ControlName(h), len(s.buf))
	}
	s.dataLen = n
	return nil
}

// validatePacket checks the sequence complement and the CRC of the packet
// in the buffer. A rejected packet has its dataLen reset to 0.
func (s *Session) validatePacket() error {
	code := CodeOK
	if s.buf[seqIdx]^s.buf[seqCompIdx] != 0xFF {
		code = CodeSequence
	}
	crcIdx := dataIdx + s.dataLen
	want := binary.BigEndian.Uint16(s.buf[crcIdx : crcIdx+2])
	if CRC16(0, s.buf[dataIdx:crcIdx]) != want {
		code = CodeCRC
	}
	if code == CodeOK {
		return nil
	}
	s.dataLen = 0
	return s.fail(ErrCheck, code, "bad packet %d", s.buf[seqIdx])
}

// stampPacket writes the sequence bytes and CRC around the data segment
// and sets packetLen. The header byte must already be in place.
func (s *Session) stampPacket() {
	s.buf[seqIdx] = s.seq
	s.buf[seqCompIdx] = ^s.seq
	crcIdx := dataIdx + s.dataLen
	binary.BigEndian.PutUint16(s.buf[crcIdx:crcIdx+2], CRC16(0, s.buf[dataIdx:crcIdx]))
	s.packetLen = s.dataLen + Overhead
}

// sendPacket writes packetLen bytes of the buffer.
func (s *Session) sendPacket() error {
	s.logPacket("tx", s.buf[:s.packetLen])
	n, err := s.transport.Write(s.buf[:s.packetLen], s.config.Timeout)
	if n < s.packetLen {
		return s.ioError(err, "write packet")
	}
	return nil
}

// readPacket reads one header byte and, for data headers, the rest of the
// packet. The retry budget applies to consecutive silent reads.
func (s *Session) readPacket() error {
	s.packetLen, s.dataLen = 0, 0
	want := 1
	retry := s.config.Retries + 1
	for s.packetLen < want {
		if retry == 0 {
			got := s.packetLen
			s.packetLen, s.dataLen = 0, 0
			return s.fail(ErrTimeout, CodeNoData, "read %d of %d bytes", got, want)
		}
		n, err := s.transport.Read(s.buf[s.packetLen:want], s.config.Timeout)
		if n <= 0 {
			if err != nil {
				s.logger.Trace().Err(err).Msg("read")
			}
			retry--
			continue
		}
		retry = s.config.Retries + 1
		first := s.packetLen == 0
		s.packetLen += n
		if first {
			if err := s.checkHeader(); err != nil {
				return err
			}
			if s.dataLen > 0 {
				want = s.dataLen + Overhead
			}
		}
	}
	return nil
}

// receivePacket receives one packet, NAKing and retrying corrupt ones.
// While the receiver is closing a file it also answers the EOTs: the first
// is NAKed and another packet awaited, the second is ACKed.
func (s *Session) receivePacket() error {
	if s.pendingACK {
		s.pendingACK = false
		if err := s.putc(ACK); err != nil {
			return err
		}
	}

	checks := s.config.Retries + 1
	for {
		if err := s.readPacket(); err != nil {
			return err
		}

		if s.dataLen > 0 {
			s.logPacket("rx", s.buf[:s.packetLen])
			if err := s.validatePacket(); err != nil {
				if checks == 0 {
					return err
				}
				checks--
				s.logger.Debug().Err(err).Int("left", checks).Msg("requesting resend")
				s.flushRead()
				s.transport.Delay(s.config.Timeout)
				if err := s.putc(NAK); err != nil {
					return err
				}
				continue
			}
		}

		switch s.recvState {
		case RecvGotEOT1:
			if checks == 0 {
				return s.fail(ErrProtocol, CodeHeader, "no second EOT")
			}
			checks--
			if err := s.putc(NAK); err != nil {
				return err
			}
			continue
		case RecvGotEOT2:
			if err := s.putc(ACK); err != nil {
				return err
			}
			s.setRecvState(RecvFeedbackEOT2)
		}

		s.code = CodeOK
		return nil
	}
}
