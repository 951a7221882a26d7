// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/serial_ahrs/internal/acquisition"
	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
	"github.com/relabs-tech/serial_ahrs/internal/sim"
	"github.com/relabs-tech/serial_ahrs/internal/web"
)

const consoleRefresh = 100 * time.Millisecond

// frameConn lets the simulator write into one end of a pipe.
type frameConn struct{ io.Writer }

func (c frameConn) WriteBytes(p []byte) error {
	_, err := c.Write(p)
	return err
}

// simulatedPort returns an open Port fed by a synthetic board running
// until ctx is done.
func simulatedPort(ctx context.Context, cfg config.SimConfig) *serial.Port {
	local, remote := net.Pipe()
	board := sim.NewBoard(cfg.Rate)
	board.Noise = cfg.Noise
	go func() {
		defer remote.Close()
		if err := board.Stream(ctx, frameConn{remote}); err != nil {
			log.Debugf("sim: %v", err)
		}
	}()
	return serial.NewStreamPort("sim", local)
}

// dashboardRows renders a snapshot and the loop counters as table rows.
func dashboardRows(snap web.Snapshot, have bool, st acquisition.StatsSnapshot) [][]string {
	rows := [][]string{{"", "x / roll", "y / pitch", "z / yaw"}}
	dash := []string{"-", "-", "-"}
	pose, accel, gyro, mag := dash, dash, dash, dash
	seq := "-"
	if have && snap.Pose != nil {
		p := snap.Pose
		pose = []string{fmt.Sprintf("%.2f", p.Roll), fmt.Sprintf("%.2f", p.Pitch), fmt.Sprintf("%.2f", p.Yaw)}
	}
	if have && snap.Sample != nil {
		s := snap.Sample
		accel = vecCells(s.Accel)
		gyro = vecCells(s.Gyro)
		mag = vecCells(s.Mag)
		seq = fmt.Sprintf("%d", s.Sequence)
	}
	rows = append(rows,
		append([]string{"pose (deg)"}, pose...),
		append([]string{"accel"}, accel...),
		append([]string{"gyro"}, gyro...),
		append([]string{"mag"}, mag...),
		[]string{"sequence", seq, "", ""},
		[]string{"frames", fmt.Sprintf("%d", st.Frames), "malformed", fmt.Sprintf("%d", st.Malformed)},
		[]string{"timeouts", fmt.Sprintf("%d", st.Timeouts), "read errors", fmt.Sprintf("%d", st.ReadErrors)},
	)
	return rows
}

func vecCells(v [3]float32) []string {
	return []string{fmt.Sprintf("%.3f", v[0]), fmt.Sprintf("%.3f", v[1]), fmt.Sprintf("%.3f", v[2])}
}

// RunConsole runs the acquisition loop in-process and shows a live
// dashboard in the terminal. With simulate set the board is synthetic and
// no serial device is needed. q or Ctrl-C quits.
func RunConsole(ctx context.Context, cfg *config.Config, simulate bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var port *serial.Port
	if simulate {
		port = simulatedPort(ctx, cfg.Sim)
	} else {
		var err error
		if port, err = openPort(ctx, cfg.Serial); err != nil {
			return err
		}
	}
	defer port.Close()

	hub := web.NewHub()
	loop := newLoop(port, cfg, hub)
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	if err := ui.Init(); err != nil {
		return fmt.Errorf("console: failed to initialize termui: %w", err)
	}
	defer ui.Close()

	table := widgets.NewTable()
	table.Title = fmt.Sprintf(" serial AHRS  %s ", port.Path())
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.TextAlignment = ui.AlignRight
	table.SetRect(0, 0, 72, 18)

	render := func() {
		snap, have := hub.Last()
		table.Rows = dashboardRows(snap, have, loop.Stats())
		ui.Render(table)
	}
	render()

	refresh := time.NewTicker(consoleRefresh)
	defer refresh.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-loopErr:
			return err
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "r":
				loop.Filter().Reset()
			}
		case <-refresh.C:
			render()
		}
	}
}
