// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName    = "serial_ahrs"
	ConfigName = "config"
	EnvPrefix  = "SERIAL_AHRS"
	// EnvConfig names a config file when --config is not given.
	EnvConfig = EnvPrefix + "_CONFIG"
)

// Variables read by the board's desktop tooling; kept for compatibility.
const (
	EnvLegacyDevice = "MPU9250_DEVICE_NAME"
	EnvLegacyBaud   = "MPU9250_BAUD_RATE"
)

// SearchPaths are tried in order when no config file is named.
func SearchPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, "/etc/"+AppName, "./")
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"device": "serial.device",
	"baud":   "serial.baud",
	"driver": "serial.driver",
	"debug":  "debug",
	"broker": "mqtt.broker",
	"listen": "web.listen",
	"rate":   "sim.rate",
	"noise":  "sim.noise",

	"sim-device": "sim.device",
}

// DefaultPath is where init writes the configuration when no output is
// given.
func DefaultPath() string {
	return filepath.Join(SearchPaths()[0], ConfigName+".yaml")
}

// Load builds the configuration from, lowest to highest precedence:
// defaults, the config file, environment variables and flags that were set
// on the command line. path may be empty. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfig); env != "" {
			path, explicit = env, true
		}
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("serial.device", EnvPrefix+"_SERIAL_DEVICE", EnvLegacyDevice)
	_ = v.BindEnv("serial.baud", EnvPrefix+"_SERIAL_BAUD", EnvLegacyBaud)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		log.Debugf("config: no config file found, using defaults")
	} else {
		log.Debugf("config: using %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every leaf of def as a viper default, so that
// AutomaticEnv can override keys the file never mentions.
func setDefaults(v *viper.Viper, def *Config) error {
	raw, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("config: encode defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("config: decode defaults: %w", err)
	}
	walk("", tree, v.SetDefault)
	return nil
}

func walk(prefix string, node map[string]any, set func(string, any)) {
	for k, val := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]any); ok {
			walk(key, child, set)
			continue
		}
		set(key, val)
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteFile writes cfg as YAML to path, creating parent directories. An
// existing file is only replaced when overwrite is true.
func WriteFile(cfg *Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists", path)
		}
	}
	buf, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
