// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build linux || darwin

package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultDriver is the termios driver on platforms that have it.
const DefaultDriver = DriverNative

// nativeDevice drives a tty through termios. The descriptor is kept in
// non-blocking mode so the runtime poller backs read deadlines and Close
// wakes a blocked read.
type nativeDevice struct {
	f *os.File
}

func openNative(path string, baud int) (device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENODEV) || errors.Is(err, unix.ENXIO) {
			return nil, openErr(ErrDeviceNotFound, path, baud, err)
		}
		return nil, openErr(ErrDeviceBusy, path, baud, err)
	}

	// Close fd if anything below fails.
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, openErr(ErrParamQuery, path, baud, err)
	}

	// Raw mode: 8N1, receiver on, modem status ignored, no line processing.
	t.Iflag &^= unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Iflag |= unix.IGNPAR | unix.IGNBRK
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD

	// With O_NONBLOCK, VMIN=1 makes an empty read report EAGAIN (which the
	// poller waits on) rather than a zero-length read.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := setSpeed(t, baud); err != nil {
		return nil, openErr(ErrUnsupportedBaud, path, baud, err)
	}
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		return nil, openErr(ErrParamWrite, path, baud, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, openErr(ErrTimeoutProgramming, path, baud, err)
	}
	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, openErr(ErrTimeoutProgramming, path, baud, fmt.Errorf("os.NewFile failed"))
	}
	// Deadlines only work on descriptors registered with the poller.
	if err := f.SetReadDeadline(time.Time{}); err != nil {
		// f owns fd now.
		ok = true
		_ = f.Close()
		return nil, openErr(ErrTimeoutProgramming, path, baud, err)
	}
	ok = true
	return &nativeDevice{f: f}, nil
}

func (d *nativeDevice) readByte(timeout time.Duration) (byte, bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := d.f.SetReadDeadline(deadline); err != nil {
		return 0, false, mapClosed(err)
	}
	var b [1]byte
	for {
		n, err := d.f.Read(b[:])
		if n == 1 {
			return b[0], true, nil
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, os.ErrDeadlineExceeded):
			return 0, false, nil
		case errors.Is(err, io.EOF):
			// Hangup on the far side of a tty; report as a read failure.
			return 0, false, err
		default:
			return 0, false, mapClosed(err)
		}
	}
}

func (d *nativeDevice) write(p []byte) (int, error) {
	n, err := d.f.Write(p)
	return n, mapClosed(err)
}

func (d *nativeDevice) control(fn func(fd int) error) error {
	rc, err := d.f.SyscallConn()
	if err != nil {
		return mapClosed(err)
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return mapClosed(err)
	}
	return opErr
}

func (d *nativeDevice) pending() (int, error) {
	var n int
	err := d.control(func(fd int) error {
		var err error
		n, err = unix.IoctlGetInt(fd, ioctlInq)
		return err
	})
	return n, err
}

func (d *nativeDevice) flushInput() error {
	return d.control(flushInput)
}

func modemBit(l modemLine) int {
	switch l {
	case lineDTR:
		return unix.TIOCM_DTR
	case lineRTS:
		return unix.TIOCM_RTS
	default:
		return unix.TIOCM_CTS
	}
}

func (d *nativeDevice) setModem(l modemLine, on bool) error {
	if l == lineCTS {
		return fmt.Errorf("serial: CTS is an input line")
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = uint(unix.TIOCMBIS)
	}
	return d.control(func(fd int) error {
		return unix.IoctlSetPointerInt(fd, req, modemBit(l))
	})
}

func (d *nativeDevice) modem(l modemLine) (bool, error) {
	var status int
	err := d.control(func(fd int) error {
		var err error
		status, err = unix.IoctlGetInt(fd, unix.TIOCMGET)
		return err
	})
	if err != nil {
		return false, err
	}
	return status&modemBit(l) != 0, nil
}

func (d *nativeDevice) close() error {
	return d.f.Close()
}

func mapClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return ErrClosed
	}
	return err
}
