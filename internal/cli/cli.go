// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cli holds the cobra commands shared by the umbrella binary and
// the single-purpose binaries under cmd/.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/serial_ahrs/internal/app"
	"github.com/relabs-tech/serial_ahrs/internal/config"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
)

// loadConfig is the persistent pre-run of every command: it resolves the
// configuration, applies the log level and installs the global config.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	config.InitGlobal(cfg)
	log.Debugf("config: %+v", *cfg)
	return nil
}

// withRoot turns cmd into a runnable root: global flags and config loading.
func withRoot(cmd *cobra.Command) *cobra.Command {
	cmd.PersistentFlags().String("config", "", "configuration file (default: $"+config.EnvConfig+" or search path)")
	cmd.PersistentFlags().Bool("debug", false, "toggle debug logging")
	cmd.PersistentPreRunE = loadConfig
	cmd.SilenceUsage = true
	return cmd
}

func serialFlags(cmd *cobra.Command) {
	def := config.Default().Serial
	cmd.Flags().StringP("device", "d", def.Device, "serial device path")
	cmd.Flags().IntP("baud", "b", def.Baud, "baud rate")
	cmd.Flags().String("driver", def.Driver, fmt.Sprintf("serial backend %v", serial.Drivers()))
}

func brokerFlag(cmd *cobra.Command) {
	cmd.Flags().String("broker", config.Default().MQTT.Broker, "MQTT broker URL")
}

func listenFlag(cmd *cobra.Command) {
	cmd.Flags().String("listen", config.Default().Web.Listen, "HTTP listen address")
}

func NewProducerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:        "producer",
		SuggestFor: []string{"prod", "run"},
		Short:      "read the board, estimate attitude and publish it",
		Long: `producer opens the serial device, decodes every frame, runs the Madgwick
filter and publishes pose, raw sample and quaternion.
With --mqtt (default) readings go to the broker; with --web the HTTP and
websocket API is served from the same process.`,
		Example: `  serial_ahrs producer --device /dev/ttyACM0 --baud 115200
  serial_ahrs producer --web --mqtt=false --listen :8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			useMQTT, _ := cmd.Flags().GetBool("mqtt")
			useWeb, _ := cmd.Flags().GetBool("web")
			if !useMQTT && !useWeb {
				return fmt.Errorf("producer: at least one of --mqtt or --web is required")
			}
			return app.RunProducer(cmd.Context(), config.Get(), app.ProducerOptions{MQTT: useMQTT, Web: useWeb})
		},
	}
	serialFlags(cmd)
	brokerFlag(cmd)
	listenFlag(cmd)
	cmd.Flags().Bool("mqtt", true, "publish readings to MQTT")
	cmd.Flags().Bool("web", false, "serve the web API in-process")
	return cmd
}

func NewWebCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "serve the latest attitude received over MQTT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			static, _ := cmd.Flags().GetString("static")
			return app.RunWeb(cmd.Context(), config.Get(), static)
		},
	}
	brokerFlag(cmd)
	listenFlag(cmd)
	cmd.Flags().String("static", "", "directory served on /")
	return cmd
}

func NewConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "terminal dashboard fed directly by the serial device",
		Long: `console runs the acquisition loop in-process and shows a live table.
With --sim no device is needed. Press q to quit, r to reset the filter.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			simulate, _ := cmd.Flags().GetBool("sim")
			return app.RunConsole(cmd.Context(), config.Get(), simulate)
		},
	}
	serialFlags(cmd)
	cmd.Flags().Bool("sim", false, "use the synthetic board")
	cmd.Flags().Float64("rate", config.Default().Sim.Rate, "synthetic frame rate in Hz")
	cmd.Flags().Float64("noise", config.Default().Sim.Noise, "synthetic sensor noise (standard deviation)")
	return cmd
}

func NewConsoleMQTTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console-mqtt",
		Short: "print readings received over MQTT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunConsoleMQTT(cmd.Context(), config.Get(), cmd.OutOrStdout())
		},
	}
	brokerFlag(cmd)
	return cmd
}

func NewSensorSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sensor-sim",
		Short: "write synthetic frames to a serial device",
		Long: `sensor-sim emulates the board: it writes text frames of a known, slowly
tumbling attitude to --sim-device. Pair it with a virtual null-modem, e.g.
  socat -d -d pty,raw,echo=0 pty,raw,echo=0`,
		Example: `  serial_ahrs sensor-sim --sim-device /dev/pts/3 --rate 100 --noise 0.01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunSensorSim(cmd.Context(), config.Get())
		},
	}
	def := config.Default()
	cmd.Flags().String("sim-device", def.Sim.Device, "device the frames are written to")
	cmd.Flags().IntP("baud", "b", def.Serial.Baud, "baud rate")
	cmd.Flags().String("driver", def.Serial.Driver, fmt.Sprintf("serial backend %v", serial.Drivers()))
	cmd.Flags().Float64("rate", def.Sim.Rate, "frame rate in Hz")
	cmd.Flags().Float64("noise", def.Sim.Noise, "sensor noise (standard deviation)")
	return cmd
}

func NewSerialProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:        "serial-probe",
		SuggestFor: []string{"probe"},
		Short:      "open the device, show its state and read one frame",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunSerialProbe(cmd.Context(), config.Get(), cmd.OutOrStdout())
		},
	}
	serialFlags(cmd)
	return cmd
}

func NewCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:        "calibrate",
		SuggestFor: []string{"cal", "calib"},
		Short:      "measure the gyroscope bias with the board at rest",
		Long: `calibrate averages the raw gyroscope of --samples frames while the board
lies still and prints the per-axis bias. With --output the current
configuration, including the new bias, is written as YAML.`,
		Example: `  serial_ahrs calibrate --device /dev/ttyACM0 --samples 500 -o ./config.yaml -y`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, _ := cmd.Flags().GetInt("samples")
			out, _ := cmd.Flags().GetString("output")
			yes, _ := cmd.Flags().GetBool("yes")
			opts := app.CalibrateOptions{Samples: n, Output: out, Overwrite: yes}
			return app.RunCalibrate(cmd.Context(), config.Get(), opts, cmd.OutOrStdout())
		},
	}
	serialFlags(cmd)
	cmd.Flags().Int("samples", 500, "frames to average")
	cmd.Flags().StringP("output", "o", "", "write the calibrated config here")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	return cmd
}

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:        "init",
		SuggestFor: []string{"ini", "in"},
		Short:      "create a configuration template",
		Long: `init writes the default configuration as YAML.
With --print it goes to stdout; otherwise to --output. An existing file is
only replaced with --yes.`,
		Example: `  serial_ahrs init --print
  serial_ahrs init -o ./config.yaml -y`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if toStdout, _ := cmd.Flags().GetBool("print"); toStdout {
				buf, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(buf)
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			yes, _ := cmd.Flags().GetBool("yes")
			if err := config.WriteFile(cfg, out, yes); err != nil {
				return err
			}
			log.Infof("config: wrote %s", out)
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultPath(), "output file")
	return cmd
}

// NewRootCmd returns the umbrella command with every tool as a subcommand.
func NewRootCmd() *cobra.Command {
	root := withRoot(&cobra.Command{
		Use:   config.AppName,
		Short: "serial AHRS: attitude from a 9-axis IMU board on a serial line",
	})
	root.AddCommand(
		NewProducerCmd(),
		NewWebCmd(),
		NewConsoleCmd(),
		NewConsoleMQTTCmd(),
		NewSensorSimCmd(),
		NewSerialProbeCmd(),
		NewCalibrateCmd(),
		NewInitCmd(),
	)
	return root
}

// Execute runs cmd as a root command until it returns or the process gets
// SIGINT/SIGTERM, and exits non-zero on error.
func Execute(cmd *cobra.Command) {
	if cmd.Parent() == nil && cmd.PersistentPreRunE == nil {
		withRoot(cmd)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("%s: %v", cmd.Name(), err)
	}
}
