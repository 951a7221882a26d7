// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build darwin

package serial

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
	ioctlInq        = unix.FIONREAD
)

func setSpeed(t *unix.Termios, baud int) error {
	switch baud {
	case 110, 300, 600, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
	default:
		return fmt.Errorf("unsupported baud %d", baud)
	}
	// BSD termios stores the numeric rate.
	t.Ispeed = uint64(baud)
	t.Ospeed = uint64(baud)
	return nil
}

func flushInput(fd int) error {
	// TCIFLUSH has the value of FREAD, the argument TIOCFLUSH expects.
	return unix.IoctlSetPointerInt(fd, unix.TIOCFLUSH, unix.TCIFLUSH)
}
