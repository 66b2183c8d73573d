// Package serialport wraps a go.bug.st/serial port behind the small
// interface the protocol engine actually needs: writing raw bytes and
// reading newline-delimited lines.
package serialport

import (
	"bufio"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is the engine-facing write surface (the Write half of grbl.Port;
// Close comes with ReadWriteCloser).
type Port interface {
	Write(p []byte) (int, error)
}

// ReadWriteCloser is the fuller surface Open returns: a Port that can
// also be scanned line-by-line and closed.
type ReadWriteCloser interface {
	Port
	io.Closer
	Lines() <-chan string
}

// Device wraps a real go.bug.st/serial port. Reads happen on an
// internal goroutine started by Open; Lines() delivers complete,
// newline-stripped lines as they arrive.
type Device struct {
	name string
	baud int
	port serial.Port
	lines chan string
	done  chan struct{}
}

// Open opens name at baud with 8-N-1 framing (the only mode a
// Grbl-compatible controller speaks) and starts the background line
// reader.
func Open(name string, baud int) (*Device, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}

	d := &Device{
		name:  name,
		baud:  baud,
		port:  port,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	go d.readLoop()
	return d, nil
}

// Write sends raw bytes immediately (real-time bytes and
// newline-terminated lines are both written as-is by the caller).
func (d *Device) Write(p []byte) (int, error) {
	return d.port.Write(p)
}

// Lines returns the channel of newline-stripped inbound lines.
func (d *Device) Lines() <-chan string { return d.lines }

// Close stops the reader and closes the underlying port.
func (d *Device) Close() error {
	close(d.done)
	return d.port.Close()
}

func (d *Device) readLoop() {
	defer close(d.lines)
	scanner := bufio.NewScanner(d.port)
	for scanner.Scan() {
		select {
		case <-d.done:
			return
		case d.lines <- scanner.Text():
		}
	}
}

// Name returns the port path this Device was opened against.
func (d *Device) Name() string { return d.name }

// Baud returns the configured baud rate.
func (d *Device) Baud() int { return d.baud }
