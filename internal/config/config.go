package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/itsrenoria/spinbar/internal/throttle"
)

// config.go loads, validates, and exposes the demo runner configuration.

// Config holds the demo runner configuration
type Config struct {
	Total       float64 `json:"total"`
	Width       int     `json:"width"`
	ShowDetails bool    `json:"show_details"`
	AsyncRender bool    `json:"async_render"`

	Workers     int    `json:"workers"`
	StepDelayMs int    `json:"step_delay_ms"`
	RefreshRate string `json:"refresh_rate"`

	LogLevel string `json:"log_level"`
	LogDir   string `json:"log_dir"`

	// Internal
	Path string `json:"-"` // Directory of the loaded config file, empty when defaults are used
}

// Defaults returns a Config with default values
func Defaults() *Config {
	return &Config{
		Total:       1000,
		Width:       200,
		ShowDetails: true,
		AsyncRender: false,
		Workers:     4,
		StepDelayMs: 1,
		RefreshRate: "30/second",
		LogLevel:    "info",
		LogDir:      ".",
	}
}

// Load reads configuration from a JSON file. An explicit path must exist;
// otherwise the well-known locations are tried and defaults are used when
// none is present.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	paths := []string{
		configPath,
		"spinbar.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config/spinbar/config.json"))
	}

	var configFile string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			configFile = p
			break
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		cfg.Path = filepath.Dir(configFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the progress bar cannot render and fills in
// defaults for the optional tuning knobs
func (c *Config) Validate() error {
	var errs []error

	if c.Total <= 0 {
		errs = append(errs, fmt.Errorf("total must be positive, got %v", c.Total))
	}
	if c.Width <= 0 {
		errs = append(errs, fmt.Errorf("width must be positive, got %d", c.Width))
	}
	if c.RefreshRate != "" && throttle.ParseRate(c.RefreshRate) == nil {
		errs = append(errs, fmt.Errorf("invalid refresh_rate %q", c.RefreshRate))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.StepDelayMs < 0 {
		c.StepDelayMs = 0
	}
	if c.RefreshRate == "" {
		c.RefreshRate = "30/second"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}
