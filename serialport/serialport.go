// Package serialport wraps the OS serial port behind a small interface so the
// rest of the system never touches go.bug.st/serial directly and tests can
// substitute a scripted port.
package serialport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

var (
	// ErrInvalidBaud is returned by Open for a non-positive baud rate
	ErrInvalidBaud = errors.New("Invalid baud rate")
	// ErrPortUnavailable is returned by Open when the OS port cannot be acquired
	ErrPortUnavailable = errors.New("Serial port unavailable")
)

/* Package level so tests can substitute fakes */
var (
	openPort = func(name string, mode *serial.Mode) (Handle, error) {
		return serial.Open(name, mode)
	}
	getPortsList = serial.GetPortsList
)

// Handle is the subset of the underlying port the Port wrapper needs
type Handle interface {
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Options configures Open
type Options struct {
	PortName    string
	BaudRate    int
	ReadTimeout time.Duration
}

// Port owns one open serial handle. Close is idempotent, all other methods
// fail once the port is closed.
type Port struct {
	sync.Mutex
	handle Handle
	closed bool

	name string
	baud int
}

// Open acquires the OS serial resource and applies a bounded read timeout so
// Read never blocks forever.
func Open(options *Options) (*Port, error) {
	if options.BaudRate <= 0 {
		return nil, ErrInvalidBaud
	}

	handle, err := openPort(options.PortName, &serial.Mode{BaudRate: options.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, options.PortName, err)
	}

	timeout := options.ReadTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}

	if err := handle.SetReadTimeout(timeout); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, options.PortName, err)
	}

	return &Port{
		handle: handle,
		name:   options.PortName,
		baud:   options.BaudRate,
	}, nil
}

// Name returns the port identifier the Port was opened with
func (p *Port) Name() string {
	return p.name
}

// BaudRate returns the configured baud rate
func (p *Port) BaudRate() int {
	return p.baud
}

// IsOpen reports whether Close has not been called yet
func (p *Port) IsOpen() bool {
	p.Lock()
	defer p.Unlock()

	return !p.closed
}

// Write sends buf to the device
func (p *Port) Write(buf []byte) (int, error) {
	p.Lock()
	handle, closed := p.handle, p.closed
	p.Unlock()

	if closed {
		return 0, ErrPortUnavailable
	}

	return handle.Write(buf)
}

// ReadAvailable performs one bounded read. Returning (0, nil) means the
// timeout expired without data and is not an error.
func (p *Port) ReadAvailable(buf []byte) (int, error) {
	p.Lock()
	handle, closed := p.handle, p.closed
	p.Unlock()

	if closed {
		return 0, ErrPortUnavailable
	}

	return handle.Read(buf)
}

// Close releases the OS resource. Safe to call multiple times.
func (p *Port) Close() error {
	p.Lock()
	defer p.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.handle.Close()
}
