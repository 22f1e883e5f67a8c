// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package secnode

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Port ranges follow the teacher's Config.Valid() convention of clamping
// into a documented default rather than rejecting a zero value outright.
const (
	DefaultPort         = 10767 // SECoP's registered default TCP port
	PollIntervalMin     = 10 * time.Millisecond
	PollIntervalMax     = 1 * time.Hour
	ReconnectDelayMin   = 100 * time.Millisecond
	ReconnectDelayMax   = 1 * time.Hour
)

// ModuleConfig is one [MODULE] block from the node's YAML config file
// (§6 "config input shape"): a class name the process's module registry
// resolves, plus free-form parameter initializers.
type ModuleConfig struct {
	Class      string                 `yaml:"class"`
	Group      string                 `yaml:"group"`
	DependsOn  []string               `yaml:"depends_on"`
	Parameters map[string]interface{} `yaml:"parameters"`
}

// Config is the node's top-level configuration, the Go analogue of
// cs104.Config but for a SECoP node's listener + node identity +
// per-module declarations rather than IEC-104 timing parameters.
type Config struct {
	EquipmentID  string                   `yaml:"equipment_id"`
	Description  string                   `yaml:"description"`
	Listen       string                   `yaml:"listen"`
	PollInterval time.Duration            `yaml:"poll_interval"`
	Modules      map[string]ModuleConfig  `yaml:"modules"`
}

// Valid fills in unspecified values with their documented defaults and
// rejects out-of-range ones, mirroring cs104.Config.Valid().
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("secnode: nil config")
	}
	if c.EquipmentID == "" {
		return errors.New("secnode: equipment_id is required")
	}
	if c.Listen == "" {
		c.Listen = fmt.Sprintf(":%d", DefaultPort)
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	} else if c.PollInterval < PollIntervalMin || c.PollInterval > PollIntervalMax {
		return fmt.Errorf("secnode: poll_interval %s not in [%s, %s]", c.PollInterval, PollIntervalMin, PollIntervalMax)
	}
	if len(c.Modules) == 0 {
		return errors.New("secnode: at least one module must be declared")
	}
	return nil
}

// DefaultConfig mirrors cs104.DefaultConfig's role: a ready-to-validate
// skeleton a caller fills module declarations into.
func DefaultConfig() Config {
	return Config{
		Listen:       fmt.Sprintf(":%d", DefaultPort),
		PollInterval: 5 * time.Second,
		Modules:      map[string]ModuleConfig{},
	}
}

// LoadConfig reads a YAML node configuration file and applies any
// SECOP_ environment overrides loaded via godotenv (process-level
// overrides for equipment_id/listen, the deployment knob a containerized
// node needs without editing the shipped YAML).
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("secnode: read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("secnode: parse config %s: %w", path, err)
	}

	_ = godotenv.Load() // optional .env; absence is not an error
	if v := os.Getenv("SECOP_EQUIPMENT_ID"); v != "" {
		cfg.EquipmentID = v
	}
	if v := os.Getenv("SECOP_LISTEN"); v != "" {
		cfg.Listen = v
	}

	if err := cfg.Valid(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
