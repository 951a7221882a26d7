// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
)

// probeTimeoutMS is the budget for the single line read by RunSerialProbe.
const probeTimeoutMS = 1000

// RunSerialProbe opens the configured device, reports its state and tries
// to read and decode one frame.
func RunSerialProbe(ctx context.Context, cfg *config.Config, out io.Writer) error {
	port, err := openPort(ctx, cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()
	return reportPort(port, cfg, out)
}

// reportPort writes the state of an open port and the first frame read
// from it to out.
func reportPort(port *serial.Port, cfg *config.Config, out io.Writer) error {
	pending, err := port.PendingBytes()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "device   %s\n", port.Path())
	fmt.Fprintf(out, "driver   %s\n", port.Driver())
	fmt.Fprintf(out, "baud     %d\n", cfg.Serial.Baud)
	fmt.Fprintf(out, "modem    CTS=%t DTR=%t RTS=%t\n", port.IsCTS(), port.IsDTR(), port.IsRTS())
	fmt.Fprintf(out, "pending  %d bytes\n", pending)

	line, err := port.ReadLine(cfg.DelimiterByte(), cfg.Loop.MaxLine, probeTimeoutMS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "line     %s (%d bytes) %s\n", line.Status, line.Len(), strconv.Quote(string(line.Data)))
	if line.Status != serial.LineComplete {
		return nil
	}
	s, err := imu.ParseLine(line.Data)
	if err != nil {
		fmt.Fprintf(out, "frame    %v\n", err)
		return nil
	}
	fmt.Fprintln(out, "frame    "+formatSample(s))
	a := orientation.Vector{float64(s.Accel[0]), float64(s.Accel[1]), float64(s.Accel[2])}
	if tilt, ok := orientation.TiltFromAccel(a); ok {
		fmt.Fprintf(out, "tilt     roll=%.1f pitch=%.1f (accelerometer only)\n", tilt.Roll, tilt.Pitch)
	}
	return nil
}
