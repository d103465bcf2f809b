package ymodem

// crctab is the CRC-16/XMODEM lookup table (polynomial 0x1021, MSB first).
var crctab [256]uint16

func init() {
	for i := range crctab {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		crctab[i] = crc
	}
}

// updcrc16 folds one byte into crc.
func updcrc16(b byte, crc uint16) uint16 {
	return crc<<8 ^ crctab[byte(crc>>8)^b]
}

// CRC16 computes the XMODEM CRC of data starting from start.
// The protocol always starts from 0; a non-zero start continues a running
// checksum over split data.
func CRC16(start uint16, data []byte) uint16 {
	crc := start
	for _, b := range data {
		crc = updcrc16(b, crc)
	}
	return crc
}
