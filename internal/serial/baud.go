// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serial

import "slices"

// SupportedBauds is the enumerated set of standard rates accepted by Open.
// Individual drivers may support only a subset (the native Linux driver
// stops at 115200 and lacks the Windows-only 14400/56000/128000/256000).
var SupportedBauds = []int{
	110, 300, 600, 1200, 2400, 4800, 9600, 14400, 19200,
	38400, 56000, 57600, 115200, 128000, 256000,
}

// ValidBaud reports whether baud belongs to SupportedBauds.
func ValidBaud(baud int) bool {
	return slices.Contains(SupportedBauds, baud)
}
