// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadEmptyFileGivesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Serial != def.Serial {
		t.Fatalf("serial got=%+v want=%+v", cfg.Serial, def.Serial)
	}
	if cfg.Loop != def.Loop {
		t.Fatalf("loop got=%+v want=%+v", cfg.Loop, def.Loop)
	}
	if cfg.Filter != def.Filter || cfg.MQTT != def.MQTT || cfg.Web != def.Web {
		t.Fatalf("got=%+v", cfg)
	}
	if cfg.Calibration != def.Calibration {
		t.Fatalf("calibration got=%+v want=%+v", cfg.Calibration, def.Calibration)
	}
	if cfg.DelimiterByte() != '\n' {
		t.Fatalf("delimiter=%q", cfg.DelimiterByte())
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
serial:
  device: /dev/ttyUSB0
  baud: 57600
loop:
  interval: 20ms
  max_line: 128
filter:
  beta: 0.05
  variable_dt: true
calibration:
  enabled: true
  gyro_bias: [48.4827, -76.3552, -64.3234]
mqtt:
  topic_pose: board/pose
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" || cfg.Serial.Baud != 57600 {
		t.Fatalf("serial=%+v", cfg.Serial)
	}
	if cfg.Loop.Interval != 20*time.Millisecond || cfg.Loop.MaxLine != 128 {
		t.Fatalf("loop=%+v", cfg.Loop)
	}
	if cfg.Loop.ReadTimeout != 10*time.Millisecond {
		t.Fatalf("unset read_timeout lost its default: %s", cfg.Loop.ReadTimeout)
	}
	if cfg.Filter.Beta != 0.05 || !cfg.Filter.VariableDt {
		t.Fatalf("filter=%+v", cfg.Filter)
	}
	if !cfg.Calibration.Enabled || cfg.Calibration.GyroBias[1] != -76.3552 {
		t.Fatalf("calibration=%+v", cfg.Calibration)
	}
	if cfg.Calibration.Accel != Default().Calibration.Accel {
		t.Fatalf("accel ratio=%v", cfg.Calibration.Accel)
	}
	if cfg.MQTT.TopicPose != "board/pose" || cfg.MQTT.TopicIMU != "inertial/imu" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERIAL_AHRS_SERIAL_BAUD", "9600")
	t.Setenv("SERIAL_AHRS_WEB_LISTEN", ":9090")
	cfg, err := Load(writeConfig(t, "serial:\n  baud: 57600\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Baud != 9600 {
		t.Fatalf("baud=%d want=9600", cfg.Serial.Baud)
	}
	if cfg.Web.Listen != ":9090" {
		t.Fatalf("listen=%q", cfg.Web.Listen)
	}
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv(EnvLegacyDevice, "/dev/ttyACM0")
	t.Setenv(EnvLegacyBaud, "38400")
	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyACM0" || cfg.Serial.Baud != 38400 {
		t.Fatalf("serial=%+v", cfg.Serial)
	}
}

func TestLoadFlagsWinOverFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("device", "", "")
	fs.Int("baud", 0, "")
	fs.Bool("debug", false, "")
	if err := fs.Parse([]string{"--device", "/dev/ttyS3", "--debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := Load(writeConfig(t, "serial:\n  device: /dev/ttyUSB0\n  baud: 57600\n"), fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyS3" || !cfg.Debug {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Serial.Baud != 57600 {
		t.Fatalf("unset flag overrode file: baud=%d", cfg.Serial.Baud)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		body string
		key  string
	}{
		{"serial:\n  baud: 12345\n", "serial.baud"},
		{"serial:\n  driver: usb-magic\n", "serial.driver"},
		{"loop:\n  interval: 0s\n", "loop.interval"},
		{"loop:\n  max_line: 1\n", "loop.max_line"},
		{"loop:\n  delimiter: \"ab\"\n", "loop.delimiter"},
		{"filter:\n  beta: -1\n", "filter.beta"},
		{"filter:\n  sample_freq: 0\n", "filter.sample_freq"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Fatalf("err=%v want mention of %s", err, tt.key)
			}
		})
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.Serial.Device = "/dev/ttyUSB1"
	cfg.Loop.StatsInterval = 30 * time.Second
	if err := WriteFile(cfg, path, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(cfg, path, false); err == nil {
		t.Fatalf("second write without overwrite should fail")
	}
	if err := WriteFile(cfg, path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Serial != cfg.Serial || got.Loop != cfg.Loop {
		t.Fatalf("got=%+v want=%+v", got, cfg)
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	InitGlobal(nil)
	if Get().Serial.Baud != 115200 {
		t.Fatalf("Get without InitGlobal=%+v", Get())
	}
	cfg := Default()
	cfg.Web.Listen = ":1"
	InitGlobal(cfg)
	defer InitGlobal(nil)
	if Get().Web.Listen != ":1" {
		t.Fatalf("Get=%+v", Get())
	}
}

func TestLoadWithoutAnyFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(EnvConfig, "")
	t.Chdir(dir)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop != Default().Loop {
		t.Fatalf("loop got=%+v want=%+v", cfg.Loop, Default().Loop)
	}
	if cfg.DelimiterByte() != '\n' {
		t.Fatalf("delimiter got=%q want=%q", cfg.DelimiterByte(), '\n')
	}
}

func TestWrittenDefaultsLoadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteFile(Default(), path, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if got.Serial != def.Serial || got.Loop != def.Loop || got.Filter != def.Filter {
		t.Fatalf("got=%+v want=%+v", got, def)
	}
	if got.Calibration != def.Calibration || got.MQTT != def.MQTT || got.Sim != def.Sim {
		t.Fatalf("got=%+v want=%+v", got, def)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want byte
		ok   bool
	}{
		{"\n", '\n', true},
		{`\n`, '\n', true},
		{`\r`, '\r', true},
		{`\x00`, 0, true},
		{";", ';', true},
		{`\`, '\\', true},
		{"", 0, false},
		{"ab", 0, false},
		{`\xzz`, 0, false},
		{`\u00e9`, 0, false},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Fatalf("ParseDelimiter(%q) got=%q err=%v want=%q ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
	}
}

func TestLoadEscapedDelimiterFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "loop:\n  delimiter: '\\r'\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DelimiterByte() != '\r' {
		t.Fatalf("delimiter got=%q want=%q", cfg.DelimiterByte(), '\r')
	}
}
