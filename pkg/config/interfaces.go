// Package config loads and validates the evolution engine configuration
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/dna-evolution/pkg/data"
)

// Common configuration constants
const (
	DefaultMinPartitionEvents = 200
	DefaultWatchInterval      = 6 * time.Hour
	DefaultQueryTimeout       = 30 * time.Second

	DefaultCheckpointDir = "checkpoints"
	DefaultStrategyDir   = "strategies"
	DefaultLogDir        = "logs"
	DefaultReportDir     = "results"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "EVOLVE_"
)

// ConfigManager handles loading, validation and saving of configurations
type ConfigManager interface {
	// LoadConfig builds a configuration from defaults, an optional file and the environment
	LoadConfig(configFile string) (*EngineConfig, error)

	// SaveConfig writes cfg as JSON or YAML depending on the extension
	SaveConfig(cfg *EngineConfig, path string) error
}

// Duration is a time.Duration that reads "90s", "6h" or "30d" in config files
type Duration time.Duration

// D returns the value as a time.Duration
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// String renders the duration the way time.Duration does
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %w", err)
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts the same spellings as UnmarshalJSON
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs float64
	if value.Tag == "!!int" || value.Tag == "!!float" {
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	if v, err := time.ParseDuration(s); err == nil && v == 0 {
		*d = 0
		return nil
	}
	v, ok := data.ParseTrailingPeriod(s)
	if !ok {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}
