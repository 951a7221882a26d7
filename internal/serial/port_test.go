// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serial

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewPortUnknownDriver(t *testing.T) {
	if _, err := NewPort(Options{Driver: "bogus"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err=%v want=%v", err, ErrUnknownDriver)
	}
}

func TestNewPortDefaultDriver(t *testing.T) {
	p, err := NewPort(Options{})
	if err != nil {
		t.Fatalf("NewPort: %v", err)
	}
	if p.Driver() != DefaultDriver {
		t.Fatalf("driver=%q want=%q", p.Driver(), DefaultDriver)
	}
	if st, _ := p.State(); st != StateClosed {
		t.Fatalf("state=%v want=%v", st, StateClosed)
	}
}

func TestOpenUnsupportedBaudIsDistinct(t *testing.T) {
	for _, drv := range Drivers() {
		t.Run(drv, func(t *testing.T) {
			p, err := NewPort(Options{Driver: drv})
			if err != nil {
				t.Fatalf("NewPort: %v", err)
			}
			err = p.Open("/dev/ttyUSB0", 12345)
			if !errors.Is(err, ErrUnsupportedBaud) {
				t.Fatalf("err=%v want=%v", err, ErrUnsupportedBaud)
			}
			if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrDeviceBusy) {
				t.Fatalf("err=%v collapsed into another kind", err)
			}
			var oe *OpenError
			if !errors.As(err, &oe) || oe.Baud != 12345 {
				t.Fatalf("err=%v not an *OpenError with baud", err)
			}
			st, reason := p.State()
			if st != StateFailed || reason == nil {
				t.Fatalf("state=%v reason=%v want failed", st, reason)
			}
			if Retryable(err) {
				t.Fatalf("unsupported baud must not be retryable")
			}
		})
	}
}

func TestOpenMissingDeviceIsNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-tty")
	for _, drv := range []string{DriverJacobsa, DriverTarm} {
		t.Run(drv, func(t *testing.T) {
			p, err := NewPort(Options{Driver: drv})
			if err != nil {
				t.Fatalf("NewPort: %v", err)
			}
			err = p.Open(missing, 115200)
			if !errors.Is(err, ErrDeviceNotFound) {
				t.Fatalf("err=%v want=%v", err, ErrDeviceNotFound)
			}
			if !Retryable(err) {
				t.Fatalf("not found should be retryable")
			}
			if err := p.Close(); err != nil {
				t.Fatalf("Close after failed open: %v", err)
			}
			if st, _ := p.State(); st != StateClosed {
				t.Fatalf("state=%v want=%v", st, StateClosed)
			}
		})
	}
}

func TestValidBaud(t *testing.T) {
	for _, b := range []int{110, 9600, 115200, 256000} {
		if !ValidBaud(b) {
			t.Fatalf("ValidBaud(%d)=false", b)
		}
	}
	for _, b := range []int{0, 100, 230400, -9600} {
		if ValidBaud(b) {
			t.Fatalf("ValidBaud(%d)=true", b)
		}
	}
}

func TestClassifyDriverErr(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"open /dev/ttyS9: no such file or directory", ErrDeviceNotFound},
		{"The system cannot find the file specified.", ErrDeviceNotFound},
		{"open /dev/ttyS0: device or resource busy", ErrDeviceBusy},
		{"Unrecognized baud rate", ErrUnsupportedBaud},
		{"SetCommTimeouts: timeout", ErrTimeoutProgramming},
		{"ioctl: inappropriate ioctl for device", ErrParamWrite},
	}
	for _, tt := range tests {
		err := classifyDriverErr("/dev/x", 9600, errors.New(tt.msg))
		if !errors.Is(err, tt.want) {
			t.Fatalf("%q: err=%v want=%v", tt.msg, err, tt.want)
		}
	}
}
