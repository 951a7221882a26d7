// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux && !darwin

package serial

import "fmt"

// DefaultDriver falls back to the portable driver where termios is missing.
const DefaultDriver = DriverJacobsa

func openNative(path string, baud int) (device, error) {
	return nil, openErr(ErrDeviceBusy, path, baud, fmt.Errorf("native driver not supported on this platform"))
}
