// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config holds the settings shared by every serial_ahrs command.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/serial_ahrs/internal/imu"
	"github.com/relabs-tech/serial_ahrs/internal/orientation"
	"github.com/relabs-tech/serial_ahrs/internal/serial"
)

// Config holds all application configuration values.
type Config struct {
	Serial      SerialConfig      `mapstructure:"serial" yaml:"serial"`
	Loop        LoopConfig        `mapstructure:"loop" yaml:"loop"`
	Filter      FilterConfig      `mapstructure:"filter" yaml:"filter"`
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration"`
	MQTT        MQTTConfig        `mapstructure:"mqtt" yaml:"mqtt"`
	Web         WebConfig         `mapstructure:"web" yaml:"web"`
	Sim         SimConfig         `mapstructure:"sim" yaml:"sim"`
	Debug       bool              `mapstructure:"debug" yaml:"debug"`
}

// SerialConfig selects and opens the sensor link.
type SerialConfig struct {
	Device string `mapstructure:"device" yaml:"device"`
	Baud   int    `mapstructure:"baud" yaml:"baud"`
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Settle is how long to wait after open before flushing stale input.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
	// Reconnect is the delay between open attempts; 0 means fail fast.
	Reconnect time.Duration `mapstructure:"reconnect" yaml:"reconnect"`
}

// LoopConfig is the acquisition cadence.
type LoopConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	MaxLine       int           `mapstructure:"max_line" yaml:"max_line"`
	// Delimiter is one byte, raw or as a Go escape such as \n or \x00.
	Delimiter     string        `mapstructure:"delimiter" yaml:"delimiter"`
	StatsInterval time.Duration `mapstructure:"stats_interval" yaml:"stats_interval"`
}

// FilterConfig tunes the Madgwick filter.
type FilterConfig struct {
	Beta       float64 `mapstructure:"beta" yaml:"beta"`
	SampleFreq float64 `mapstructure:"sample_freq" yaml:"sample_freq"`
	VariableDt bool    `mapstructure:"variable_dt" yaml:"variable_dt"`
}

// CalibrationConfig enables raw count conversion before the filter.
type CalibrationConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	imu.Calibration `mapstructure:",squash" yaml:",inline"`
}

// MQTTConfig is the broker and topics readings are published on.
type MQTTConfig struct {
	Broker          string `mapstructure:"broker" yaml:"broker"`
	ClientID        string `mapstructure:"client_id" yaml:"client_id"`
	TopicPose       string `mapstructure:"topic_pose" yaml:"topic_pose"`
	TopicIMU        string `mapstructure:"topic_imu" yaml:"topic_imu"`
	TopicQuaternion string `mapstructure:"topic_quaternion" yaml:"topic_quaternion"`
	QoS             byte   `mapstructure:"qos" yaml:"qos"`
	Retain          bool   `mapstructure:"retain" yaml:"retain"`
}

// WebConfig is the HTTP/websocket server.
type WebConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SimConfig drives the synthetic board.
type SimConfig struct {
	Device string  `mapstructure:"device" yaml:"device"`
	Rate   float64 `mapstructure:"rate" yaml:"rate"`
	Noise  float64 `mapstructure:"noise" yaml:"noise"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device: "/dev/null",
			Baud:   115200,
			Driver: serial.DefaultDriver,
			Settle: 100 * time.Microsecond,
		},
		Loop: LoopConfig{
			Interval:      10 * time.Millisecond,
			ReadTimeout:   10 * time.Millisecond,
			MaxLine:       200,
			Delimiter:     `\n`,
			StatsInterval: 5 * time.Second,
		},
		Filter: FilterConfig{
			Beta:       orientation.DefaultBeta,
			SampleFreq: orientation.DefaultSampleFreq,
		},
		Calibration: CalibrationConfig{Calibration: imu.DefaultCalibration()},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			ClientID:        "serial-ahrs",
			TopicPose:       "inertial/pose",
			TopicIMU:        "inertial/imu",
			TopicQuaternion: "inertial/quaternion",
		},
		Web: WebConfig{Listen: ":8080"},
		Sim: SimConfig{Device: "/dev/null", Rate: 100},
	}
}

// Validate checks every value that would otherwise fail later at runtime.
// The error names the offending key.
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if !serial.ValidBaud(c.Serial.Baud) {
		return fmt.Errorf("serial.baud %d is not a supported rate", c.Serial.Baud)
	}
	if _, err := serial.NewPort(serial.Options{Driver: c.Serial.Driver}); err != nil {
		return fmt.Errorf("serial.driver: %w", err)
	}
	if c.Serial.Settle < 0 || c.Serial.Reconnect < 0 {
		return fmt.Errorf("serial.settle and serial.reconnect must not be negative")
	}
	if c.Loop.Interval <= 0 {
		return fmt.Errorf("loop.interval must be positive, got %s", c.Loop.Interval)
	}
	if c.Loop.ReadTimeout < time.Millisecond {
		return fmt.Errorf("loop.read_timeout must be at least 1ms, got %s", c.Loop.ReadTimeout)
	}
	if c.Loop.MaxLine <= 1 {
		return fmt.Errorf("loop.max_line must be greater than 1, got %d", c.Loop.MaxLine)
	}
	if _, err := ParseDelimiter(c.Loop.Delimiter); err != nil {
		return fmt.Errorf("loop.delimiter: %w", err)
	}
	if c.Loop.StatsInterval < 0 {
		return fmt.Errorf("loop.stats_interval must not be negative")
	}
	if c.Filter.Beta < 0 {
		return fmt.Errorf("filter.beta must not be negative, got %v", c.Filter.Beta)
	}
	if c.Filter.SampleFreq <= 0 {
		return fmt.Errorf("filter.sample_freq must be positive, got %v", c.Filter.SampleFreq)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0-2, got %d", c.MQTT.QoS)
	}
	if c.Sim.Rate <= 0 {
		return fmt.Errorf("sim.rate must be positive, got %v", c.Sim.Rate)
	}
	return nil
}

// ParseDelimiter accepts a single raw byte or an escape sequence that
// decodes to one byte.
func ParseDelimiter(s string) (byte, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	if strings.HasPrefix(s, `\`) {
		if u, err := strconv.Unquote(`"` + s + `"`); err == nil && len(u) == 1 {
			return u[0], nil
		}
	}
	return 0, fmt.Errorf("must be a single byte, got %q", s)
}

// DelimiterByte is the line delimiter as a byte; '\n' if unset or invalid.
func (c *Config) DelimiterByte() byte {
	b, err := ParseDelimiter(c.Loop.Delimiter)
	if err != nil {
		return '\n'
	}
	return b
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// InitGlobal makes cfg the process-wide configuration returned by Get.
func InitGlobal(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = cfg
}

// Get returns the process-wide configuration, or Default() if InitGlobal
// was never called.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}
