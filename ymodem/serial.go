package ymodem

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport is a Transport over a serial port.
type SerialTransport struct {
	port serial.Port
}

// OpenSerial opens name at baud with 8N1 framing.
func OpenSerial(name string, baud int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("ymodem: open %s: %w", name, err)
	}
	return NewSerialTransport(port), nil
}

// NewSerialTransport wraps an already open port.
func NewSerialTransport(port serial.Port) *SerialTransport {
	return &SerialTransport{port: port}
}

// Read collects bytes into p until it is full or timeout expires.
func (t *SerialTransport) Read(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	n := 0
	for n < len(p) {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}
		if err := t.port.SetReadTimeout(left); err != nil {
			return n, err
		}
		m, err := t.port.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}

// Write sends p. The port driver has no write timeout; timeout is ignored.
func (t *SerialTransport) Write(p []byte, _ time.Duration) (int, error) {
	return t.port.Write(p)
}

// Flush drops the driver's input buffer.
func (t *SerialTransport) Flush() error {
	return t.port.ResetInputBuffer()
}

// Delay sleeps for d.
func (t *SerialTransport) Delay(d time.Duration) {
	time.Sleep(d)
}

// Close closes the port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}
