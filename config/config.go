// Package config loads the backend's YAML-configured slots and tuneables,
// overlaid with a handful of environment-variable settings that vary by
// deployment (debug mode, data directory, listen address).
package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"

	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

// SlotConfig is one microcontroller slot's deployment-specific settings:
// which serial device it lives on and what firmware version it must report.
type SlotConfig struct {
	SlotID          string `yaml:"slot_id"` // hex, e.g. "D0"
	Device          string `yaml:"device"`  // e.g. "/dev/ttyUSB0"
	FirmwareVersion string `yaml:"firmware_version"`
}

// Config is the YAML document loaded at startup: slot wiring plus the
// default tuneables every run starts with.
type Config struct {
	Version  int                 `yaml:"version"`
	Slots    []SlotConfig        `yaml:"slots"`
	Tuneable robotstate.Tuneable `yaml:"tuneable"`
}

// Env holds the environment-variable settings that vary by deployment
// rather than by robot geometry.
type Env struct {
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"DEV"`
	Debug     bool   `env:"DEBUG" envDefault:"0"`
	SrcDir    string `env:"SRCDIR" envDefault:"."`
	HTMLDir   string `env:"HTMLDIR" envDefault:"./frontend/dist/"`
	DBFile    string `env:"DB_FILE" envDefault:"./tmp/dev.db"`
	ListenOn  string `env:"LISTEN_ON" envDefault:"0.0.0.0:8080"`
}

// LoadEnv parses process environment variables into an Env.
func LoadEnv() (*Env, error) {
	e := new(Env)
	if err := env.Parse(e); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	return e, nil
}

// Load reads and unmarshals the YAML config at path.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolving %s: %w", path, err)
	}
	raw, err := ioutil.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", abs, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: unmarshaling %s: %w", abs, err)
	}
	if c.Tuneable == (robotstate.Tuneable{}) {
		c.Tuneable = robotstate.DefaultTuneable()
	}
	return &c, nil
}
