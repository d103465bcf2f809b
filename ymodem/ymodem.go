// Package ymodem implements the YMODEM file transfer protocol.
//
// YMODEM is a half-duplex, packet oriented protocol for moving a named file
// over a byte stream such as a UART. Each packet carries a header byte, a
// sequence number and its complement, a fixed size data segment and a CRC16.
// Besides the standard 128 and 1024 byte segments this package understands
// three extended STX variants carrying 2048, 4096 and 8192 bytes.
//
// The engine is synchronous. A Session owns no goroutines and every call
// blocks for at most the configured timeout per transport operation. The
// packet buffer is supplied by the caller and reused for every packet.
package ymodem

// Packet headers.
const (
	SOH   = 0x01 // 128 byte data segment
	STX   = 0x02 // 1024 byte data segment
	STX2K = 0x0A // 2048 byte data segment
	STX4K = 0x0B // 4096 byte data segment
	STX8K = 0x0C // 8192 byte data segment
	EOT   = 0x04 // end of transmission
	CAN   = 0x18 // cancel
)

// Replies from the receiver.
const (
	ACK     = 0x06
	NAK     = 0x15
	WantCRC = 'C' // request the next frame in CRC mode
)

// Pad fills the unused tail of a short data packet.
const Pad = 0x1A

// Data segment sizes.
const (
	DataLen128 = 128
	DataLen1K  = 1024
	DataLen2K  = 2048
	DataLen4K  = 4096
	DataLen8K  = 8192
)

// Packet layout.
const (
	headerIdx  = 0
	seqIdx     = 1
	seqCompIdx = 2
	dataIdx    = 3

	// Overhead is the number of non-payload bytes in a data packet:
	// header, sequence, complement and two CRC bytes.
	Overhead = 5

	// MinBufferSize holds one SOH packet.
	MinBufferSize = DataLen128 + Overhead
)

// cancelBurst is how many CAN bytes Cancel writes.
const cancelBurst = 5

var controlNames = map[byte]string{
	SOH:     "SOH",
	STX:     "STX",
	STX2K:   "STX_2K",
	STX4K:   "STX_4K",
	STX8K:   "STX_8K",
	EOT:     "EOT",
	CAN:     "CAN",
	ACK:     "ACK",
	NAK:     "NAK",
	WantCRC: "C",
}

// ControlName returns the mnemonic of a header or reply byte.
// Returns "UNKNOWN" for anything else.
func ControlName(b byte) string {
	if name, ok := controlNames[b]; ok {
		return name
	}
	return "UNKNOWN"
}
