// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serial

import (
	"errors"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// streamDevice adapts a blocking io.ReadWriteCloser (a driver library port,
// or any byte stream) to the device capabilities. A pump goroutine moves
// received bytes into an in-memory receive buffer, which is what pending
// and flushInput operate on. Modem lines are not available.
type streamDevice struct {
	rw io.ReadWriteCloser

	mu  sync.Mutex
	buf []byte
	err error // terminal receive error

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

const streamChunk = 256

func newStreamDevice(rw io.ReadWriteCloser) *streamDevice {
	d := &streamDevice{
		rw:     rw,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.pump()
	return d
}

func (d *streamDevice) pump() {
	chunk := make([]byte, streamChunk)
	for {
		n, err := d.rw.Read(chunk)
		if n > 0 {
			d.mu.Lock()
			d.buf = append(d.buf, chunk[:n]...)
			d.mu.Unlock()
			d.signal()
		}
		if err != nil {
			select {
			case <-d.done:
				return
			default:
			}
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			d.signal()
			if !errors.Is(err, io.EOF) {
				log.Debugf("serial: stream receive stopped: %v", err)
			}
			return
		}
	}
}

func (d *streamDevice) signal() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

func (d *streamDevice) readByte(timeout time.Duration) (byte, bool, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		select {
		case <-d.done:
			return 0, false, ErrClosed
		default:
		}

		d.mu.Lock()
		if len(d.buf) > 0 {
			b := d.buf[0]
			d.buf = d.buf[1:]
			if len(d.buf) == 0 {
				d.buf = nil
			}
			d.mu.Unlock()
			return b, true, nil
		}
		err := d.err
		d.mu.Unlock()
		if err != nil {
			return 0, false, err
		}

		select {
		case <-d.notify:
		case <-expired:
			return 0, false, nil
		case <-d.done:
			return 0, false, ErrClosed
		}
	}
}

func (d *streamDevice) write(p []byte) (int, error) {
	select {
	case <-d.done:
		return 0, ErrClosed
	default:
	}
	return d.rw.Write(p)
}

func (d *streamDevice) pending() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.buf) == 0 && d.err != nil {
		return 0, d.err
	}
	return len(d.buf), nil
}

func (d *streamDevice) flushInput() error {
	d.mu.Lock()
	d.buf = nil
	d.mu.Unlock()
	return nil
}

func (d *streamDevice) setModem(modemLine, bool) error { return ErrModemUnsupported }

func (d *streamDevice) modem(modemLine) (bool, error) { return false, ErrModemUnsupported }

func (d *streamDevice) close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		err = d.rw.Close()
	})
	return err
}

// NewStreamPort wraps an already connected byte stream (a socket, a pipe, a
// pre-opened device) in an open Port. Modem lines are unavailable.
func NewStreamPort(name string, rw io.ReadWriteCloser) *Port {
	return &Port{
		driver: "stream",
		dev:    newStreamDevice(rw),
		state:  StateOpen,
		path:   name,
	}
}
