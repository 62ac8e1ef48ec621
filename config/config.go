// Package config loads timer and reporting settings from YAML or JSON
// so an embedding host can configure instrumentation without code
// changes.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BerriJ/tictoc"
)

// Config describes a Timer plus the optional report and export
// surfaces built around it.
type Config struct {
	Verbose bool         `json:"verbose" yaml:"verbose"`
	MinMax  bool         `json:"min_max" yaml:"min_max"`
	Report  ReportConfig `json:"report,omitempty" yaml:"report,omitempty"`
	Export  ExportConfig `json:"export,omitempty" yaml:"export,omitempty"`
}

// ReportConfig configures the live snapshot endpoint.
type ReportConfig struct {
	Listen   string   `json:"listen,omitempty" yaml:"listen,omitempty"`
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// Duration is a time.Duration that unmarshals from either a bare
// nanosecond count or a time.ParseDuration string such as "250ms".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if ns, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*d = Duration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(x)
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("duration must be a string or nanosecond count, got %T", v)
	}
	return nil
}

// ExportConfig configures the Prometheus bridge.
type ExportConfig struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// Default returns the configuration matching tictoc.New with no
// options.
func Default() Config {
	return Config{
		Verbose: true,
		MinMax:  true,
		Report:  ReportConfig{Interval: Duration(time.Second)},
	}
}

// LoadYAML decodes a configuration from YAML.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode yaml config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadJSON decodes a configuration from JSON.
func LoadJSON(r io.Reader) (Config, error) {
	c := Default()
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode json config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Validate rejects configurations the runtime could not honor.
func (c Config) Validate() error {
	if c.Report.Interval < 0 {
		return fmt.Errorf("report interval must not be negative, got %s", c.Report.Interval)
	}
	return nil
}

// Options translates the configuration into tictoc constructor
// options.
func (c Config) Options() []tictoc.Option {
	return []tictoc.Option{
		tictoc.WithVerbose(c.Verbose),
		tictoc.WithMinMax(c.MinMax),
	}
}
