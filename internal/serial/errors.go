// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serial

import (
	"errors"
	"fmt"
)

// Connection error kinds returned (wrapped in *OpenError) by Port.Open.
// They stay distinct so callers can retry some and give up on others.
var (
	ErrDeviceNotFound     = errors.New("serial: device not found")
	ErrDeviceBusy         = errors.New("serial: device busy or unopenable")
	ErrParamQuery         = errors.New("serial: cannot read port parameters")
	ErrUnsupportedBaud    = errors.New("serial: unsupported baud rate")
	ErrParamWrite         = errors.New("serial: cannot write port parameters")
	ErrTimeoutProgramming = errors.New("serial: cannot program read timeouts")
)

// I/O error kinds.
var (
	ErrShortWrite        = errors.New("serial: short write")
	ErrRead              = errors.New("serial: read failure")
	ErrClosed            = errors.New("serial: port closed")
	ErrNotOpen           = errors.New("serial: port not open")
	ErrAlreadyOpen       = errors.New("serial: port already open")
	ErrModemUnsupported  = errors.New("serial: modem control lines not supported by driver")
	ErrUnknownDriver     = errors.New("serial: unknown driver")
	ErrInvalidLineLength = errors.New("serial: max line length must be positive")
)

// OpenError reports why Open failed. Kind is one of the connection error
// kinds above; Err is the underlying OS or driver error, if any.
type OpenError struct {
	Kind error
	Path string
	Baud int
	Err  error
}

func (e *OpenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s @ %d)", e.Kind, e.Path, e.Baud)
	}
	return fmt.Sprintf("%v (%s @ %d): %v", e.Kind, e.Path, e.Baud, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func openErr(kind error, path string, baud int, err error) *OpenError {
	return &OpenError{Kind: kind, Path: path, Baud: baud, Err: err}
}

// Retryable reports whether an Open failure may succeed on a later attempt
// without changing configuration (device missing or busy).
func Retryable(err error) bool {
	return errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrDeviceBusy)
}
