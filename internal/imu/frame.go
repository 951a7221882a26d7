// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldCount is the number of whitespace separated fields in one frame:
// sequence, 3 accel, 3 gyro, 3 mag, time.
const FieldCount = 11

// ErrMalformedFrame matches every *MalformedFrameError.
var ErrMalformedFrame = errors.New("imu: malformed frame")

// MalformedFrameError is returned by ParseLine for a line that does not
// decode to a Sample. Text is the offending line.
type MalformedFrameError struct {
	Text   string
	Reason string
}

func (e *MalformedFrameError) Error() string {
	text := e.Text
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return fmt.Sprintf("imu: malformed frame (%s): %q", e.Reason, text)
}

func (e *MalformedFrameError) Is(target error) bool { return target == ErrMalformedFrame }

func malformed(text, format string, args ...any) error {
	return &MalformedFrameError{Text: text, Reason: fmt.Sprintf(format, args...)}
}

var fieldNames = [FieldCount]string{"seq", "ax", "ay", "az", "gx", "gy", "gz", "mx", "my", "mz", "time"}

// ParseLine decodes one frame:
//
//	<seq> <ax> <ay> <az> <gx> <gy> <gz> <mx> <my> <mz> <time>
//
// A trailing delimiter (\n, \r\n) and NUL padding are ignored. No unit
// conversion is applied.
func ParseLine(line []byte) (Sample, error) {
	text := strings.TrimRight(string(line), "\r\n\x00")
	if !utf8.ValidString(text) {
		return Sample{}, malformed(text, "not text")
	}
	fields := strings.Fields(text)
	if len(fields) != FieldCount {
		return Sample{}, malformed(text, "got %d fields, want %d", len(fields), FieldCount)
	}

	var s Sample
	seq, err := strconv.Atoi(fields[0])
	if err != nil {
		return Sample{}, malformed(text, "bad %s %q", fieldNames[0], fields[0])
	}
	s.Sequence = seq

	var vals [FieldCount - 1]float32
	for i := range vals {
		f, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Sample{}, malformed(text, "bad %s %q", fieldNames[i+1], fields[i+1])
		}
		vals[i] = float32(f)
	}
	copy(s.Accel[:], vals[0:3])
	copy(s.Gyro[:], vals[3:6])
	copy(s.Mag[:], vals[6:9])
	s.Time = vals[9]
	return s, nil
}

// Format encodes s in the wire format, newline terminated. Floats use the
// shortest representation that parses back to the same float32.
func Format(s Sample) []byte {
	b := make([]byte, 0, 96)
	b = strconv.AppendInt(b, int64(s.Sequence), 10)
	for _, v := range [...]float32{
		s.Accel[0], s.Accel[1], s.Accel[2],
		s.Gyro[0], s.Gyro[1], s.Gyro[2],
		s.Mag[0], s.Mag[1], s.Mag[2],
		s.Time,
	} {
		b = append(b, ' ')
		b = strconv.AppendFloat(b, float64(v), 'g', -1, 32)
	}
	return append(b, '\n')
}
