// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serial is a timeout-bounded byte-stream transport for serial
// devices. A Port hides the platform backend (driver) behind a single API:
// open/close, byte and line reads with millisecond budgets, writes, receive
// buffer occupancy and modem control lines.
package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/timeout"
)

// State is the connection state of a Port.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LineStatus tells how a ReadLine call ended.
type LineStatus int

const (
	// LineComplete: the delimiter was read; Data ends with it.
	LineComplete LineStatus = iota
	// LineTimedOut: the aggregate budget elapsed. Data holds the partial
	// bytes for diagnostics only; it is not a usable line.
	LineTimedOut
	// LineBufferFull: max bytes were read without seeing the delimiter.
	LineBufferFull
)

func (s LineStatus) String() string {
	switch s {
	case LineComplete:
		return "complete"
	case LineTimedOut:
		return "timed out"
	case LineBufferFull:
		return "buffer full"
	default:
		return fmt.Sprintf("LineStatus(%d)", int(s))
	}
}

// Line is the outcome of ReadLine.
type Line struct {
	Status LineStatus
	Data   []byte
}

// Len is the number of bytes read, delimiter included.
func (l Line) Len() int { return len(l.Data) }

// modemLine identifies a modem control signal.
type modemLine int

const (
	lineDTR modemLine = iota
	lineRTS
	lineCTS
)

// device is the capability set every backend provides.
type device interface {
	// readByte waits up to timeout for one byte; timeout <= 0 waits forever.
	// ok is false when the timeout elapsed.
	readByte(timeout time.Duration) (b byte, ok bool, err error)
	write(p []byte) (int, error)
	pending() (int, error)
	flushInput() error
	setModem(l modemLine, on bool) error
	modem(l modemLine) (bool, error)
	close() error
}

// opener opens a backend for path at baud. Errors must be *OpenError.
type opener func(path string, baud int) (device, error)

const (
	DriverNative  = "native"
	DriverJacobsa = "jacobsa"
	DriverTarm    = "tarm"
)

var drivers = map[string]opener{
	DriverNative:  openNative,
	DriverJacobsa: openJacobsa,
	DriverTarm:    openTarm,
}

// Drivers lists the registered driver names.
func Drivers() []string {
	return []string{DriverNative, DriverJacobsa, DriverTarm}
}

// Options configures a Port.
type Options struct {
	// Driver selects the backend; empty means DefaultDriver.
	Driver string
}

// Port is a serial connection. A Port must be driven by a single
// acquisition stream; Close may be called from any goroutine and makes an
// in-flight read return ErrClosed.
type Port struct {
	driver string

	mu      sync.Mutex
	dev     device
	state   State
	failErr error
	path    string
	baud    int
}

// NewPort returns a closed port using the configured driver.
func NewPort(opts Options) (*Port, error) {
	name := opts.Driver
	if name == "" {
		name = DefaultDriver
	}
	if _, ok := drivers[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return &Port{driver: name}, nil
}

// Open connects to path at baud. On failure the port is left in
// StateFailed and the returned error is an *OpenError.
func (p *Port) Open(path string, baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil {
		return ErrAlreadyOpen
	}
	p.path, p.baud = path, baud

	var dev device
	var err error
	if !ValidBaud(baud) {
		err = openErr(ErrUnsupportedBaud, path, baud, nil)
	} else {
		dev, err = drivers[p.driver](path, baud)
	}
	if err != nil {
		p.state = StateFailed
		p.failErr = err
		return err
	}
	p.dev = dev
	p.state = StateOpen
	p.failErr = nil
	log.Debugf("serial: opened %s at %d baud (driver %s)", path, baud, p.driver)
	return nil
}

// Close releases the device. It is idempotent.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateClosed
	p.failErr = nil
	if p.dev == nil {
		return nil
	}
	err := p.dev.close()
	p.dev = nil
	log.Debugf("serial: closed %s", p.path)
	return err
}

// State returns the connection state and, for StateFailed, the reason.
func (p *Port) State() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.failErr
}

// Path returns the device path of the last Open call.
func (p *Port) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// Driver returns the backend name.
func (p *Port) Driver() string { return p.driver }

func (p *Port) current() (device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev == nil {
		return nil, ErrNotOpen
	}
	return p.dev, nil
}

// WriteBytes writes buf. Accepting fewer bytes than requested is an error.
func (p *Port) WriteBytes(buf []byte) error {
	dev, err := p.current()
	if err != nil {
		return err
	}
	n, err := dev.write(buf)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrShortWrite, n, len(buf), err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(buf))
	}
	return nil
}

// WriteByte writes a single byte.
func (p *Port) WriteByte(b byte) error {
	return p.WriteBytes([]byte{b})
}

// WriteString writes s.
func (p *Port) WriteString(s string) error {
	return p.WriteBytes([]byte(s))
}

// ReadByteTimeout waits up to timeoutMS (0 = forever) for one byte. ok is false
// when the timeout elapsed; that is not an error.
func (p *Port) ReadByteTimeout(timeoutMS uint) (b byte, ok bool, err error) {
	dev, err := p.current()
	if err != nil {
		return 0, false, err
	}
	return readByte(dev, timeoutMS)
}

func readByte(dev device, timeoutMS uint) (byte, bool, error) {
	b, ok, err := dev.readByte(time.Duration(timeoutMS) * time.Millisecond)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return 0, false, err
		}
		return 0, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return b, ok, nil
}

// ReadLine accumulates bytes until delim is read (LineComplete), maxBytes
// have been read (LineBufferFull) or timeoutMS elapses (LineTimedOut). The
// budget is aggregate: each byte wait gets only the time that is left.
// timeoutMS == 0 disables the deadline.
func (p *Port) ReadLine(delim byte, maxBytes int, timeoutMS uint) (Line, error) {
	if maxBytes <= 0 {
		return Line{}, ErrInvalidLineLength
	}
	dev, err := p.current()
	if err != nil {
		return Line{}, err
	}

	buf := make([]byte, 0, maxBytes)
	tm := timeout.New()
	for len(buf) < maxBytes {
		var wait uint
		if timeoutMS > 0 {
			wait = tm.Remaining(timeoutMS)
			if wait == 0 {
				return Line{Status: LineTimedOut, Data: buf}, nil
			}
		}
		b, ok, err := readByte(dev, wait)
		if err != nil {
			return Line{Status: LineTimedOut, Data: buf}, err
		}
		if !ok {
			continue
		}
		buf = append(buf, b)
		if b == delim {
			return Line{Status: LineComplete, Data: buf}, nil
		}
	}
	return Line{Status: LineBufferFull, Data: buf}, nil
}

// ReadBytes reads until maxBytes have arrived or timeoutMS elapses and
// returns whatever was read. timeoutMS == 0 waits for all maxBytes.
func (p *Port) ReadBytes(maxBytes int, timeoutMS uint) ([]byte, error) {
	dev, err := p.current()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, maxBytes)
	tm := timeout.New()
	for len(buf) < maxBytes {
		var wait uint
		if timeoutMS > 0 {
			if wait = tm.Remaining(timeoutMS); wait == 0 {
				break
			}
		}
		b, ok, err := readByte(dev, wait)
		if err != nil {
			return buf, err
		}
		if ok {
			buf = append(buf, b)
		}
	}
	return buf, nil
}

// PendingBytes returns how many received bytes are waiting to be read. It
// never blocks.
func (p *Port) PendingBytes() (int, error) {
	dev, err := p.current()
	if err != nil {
		return 0, err
	}
	n, err := dev.pending()
	if err != nil {
		return 0, fmt.Errorf("%w: pending: %w", ErrRead, err)
	}
	return n, nil
}

// FlushInput discards received but unread bytes.
func (p *Port) FlushInput() error {
	dev, err := p.current()
	if err != nil {
		return err
	}
	return dev.flushInput()
}

// SetDTR sets or clears the DTR line.
func (p *Port) SetDTR(on bool) error { return p.setModem(lineDTR, on) }

// SetRTS sets or clears the RTS line.
func (p *Port) SetRTS(on bool) error { return p.setModem(lineRTS, on) }

// IsCTS reports the CTS line; false when it cannot be read.
func (p *Port) IsCTS() bool { return p.modem(lineCTS) }

// IsDTR reports the DTR line; false when it cannot be read.
func (p *Port) IsDTR() bool { return p.modem(lineDTR) }

// IsRTS reports the RTS line; false when it cannot be read.
func (p *Port) IsRTS() bool { return p.modem(lineRTS) }

func (p *Port) setModem(l modemLine, on bool) error {
	dev, err := p.current()
	if err != nil {
		return err
	}
	return dev.setModem(l, on)
}

func (p *Port) modem(l modemLine) bool {
	dev, err := p.current()
	if err != nil {
		return false
	}
	on, err := dev.modem(l)
	if err != nil {
		return false
	}
	return on
}
