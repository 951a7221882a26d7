// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serial

import (
	"errors"
	"io/fs"
	"strings"

	jserial "github.com/jacobsa/go-serial/serial"
	tserial "github.com/tarm/serial"
)

// openJacobsa opens path through github.com/jacobsa/go-serial.
func openJacobsa(path string, baud int) (device, error) {
	opts := jserial.OpenOptions{
		PortName:              path,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            jserial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := jserial.Open(opts)
	if err != nil {
		return nil, classifyDriverErr(path, baud, err)
	}
	return newStreamDevice(port), nil
}

// openTarm opens path through github.com/tarm/serial.
func openTarm(path string, baud int) (device, error) {
	c := &tserial.Config{
		Name: path,
		Baud: baud,
		// Zero keeps reads blocking; timeouts are enforced above the driver.
		ReadTimeout: 0,
	}
	port, err := tserial.OpenPort(c)
	if err != nil {
		return nil, classifyDriverErr(path, baud, err)
	}
	return newStreamDevice(port), nil
}

// classifyDriverErr maps a driver library error onto the connection error
// kinds. The libraries do not export typed errors, so this looks at the
// wrapped OS error first and the message second.
func classifyDriverErr(path string, baud int, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, fs.ErrNotExist), strings.Contains(msg, "no such file"), strings.Contains(msg, "cannot find"):
		return openErr(ErrDeviceNotFound, path, baud, err)
	case errors.Is(err, fs.ErrPermission), strings.Contains(msg, "busy"), strings.Contains(msg, "access is denied"):
		return openErr(ErrDeviceBusy, path, baud, err)
	case strings.Contains(msg, "baud"):
		return openErr(ErrUnsupportedBaud, path, baud, err)
	case strings.Contains(msg, "timeout"):
		return openErr(ErrTimeoutProgramming, path, baud, err)
	default:
		return openErr(ErrParamWrite, path, baud, err)
	}
}
