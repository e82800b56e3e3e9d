// Package config provides configuration loading and management for
// fmriclean. It handles loading configuration from YAML files,
// provides default values, and validates the fields that would
// otherwise only fail deep inside a run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"fmriclean/internal/models"
	"fmriclean/pkg/regressors"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Paths locate the datasets and the output tree.
	Paths struct {
		// BidsDir is the raw BIDS dataset root.
		BidsDir string `yaml:"bidsDir"`

		// DerivDir is the preprocessing derivatives root.
		DerivDir string `yaml:"derivDir"`

		// OutDir is where per-subject outputs are written.
		OutDir string `yaml:"outDir"`
	} `yaml:"paths"`

	// Pipeline holds the per-run conditioning parameters.
	Pipeline struct {
		// Task is the BIDS task label to process.
		Task string `yaml:"task"`

		// Session is the BIDS session label, empty when the dataset
		// has no session level.
		Session string `yaml:"session"`

		// DropVols is the number of leading volumes to discard.
		DropVols int `yaml:"dropvols"`

		// HighPassSec is the high-pass cutoff period in seconds.
		HighPassSec float64 `yaml:"hpf"`

		// Filter selects the temporal filter: none, cosine or
		// butterworth.
		Filter string `yaml:"filter"`

		// Detrend enables linear detrending.
		Detrend bool `yaml:"detrend"`

		// Standardize selects output normalization: no, zscore or psc.
		Standardize string `yaml:"standardize"`

		// SmoothingFWHM is the spatial smoothing kernel in mm; zero
		// disables smoothing.
		SmoothingFWHM float64 `yaml:"smoothing"`

		// Regressors lists nuisance regressor kinds by alias; the
		// special alias "art" enables scrubbing of detected outlier
		// volumes.
		Regressors []string `yaml:"regressors"`
	} `yaml:"pipeline"`

	// Execution controls the batch driver.
	Execution struct {
		// Workers bounds how many runs are conditioned in parallel.
		Workers int `yaml:"workers"`

		// Overwrite replaces an existing output tree instead of
		// refusing to touch it.
		Overwrite bool `yaml:"overwrite"`
	} `yaml:"execution"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Pipeline.Task = "rest"
	cfg.Pipeline.HighPassSec = 128
	cfg.Pipeline.Filter = "none"
	cfg.Pipeline.Standardize = "no"
	cfg.Pipeline.Regressors = []string{"FD", "aCompCor"}

	cfg.Execution.Workers = runtime.NumCPU()

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate rejects configurations that would fail mid-batch: unknown
// enum values, impossible cutoffs, unknown regressor aliases. It runs
// before any subject is processed.
func (c *Config) Validate() error {
	filter, err := models.ParseFilterMode(c.Pipeline.Filter)
	if err != nil {
		return err
	}
	if _, err := models.ParseStandardizeMode(c.Pipeline.Standardize); err != nil {
		return err
	}
	if filter != models.FilterNone && c.Pipeline.HighPassSec <= 0 {
		return fmt.Errorf("hpf must be a positive cutoff period in seconds when filter is %q, got %g",
			c.Pipeline.Filter, c.Pipeline.HighPassSec)
	}
	if c.Pipeline.DropVols < 0 {
		return fmt.Errorf("dropvols must be non-negative, got %d", c.Pipeline.DropVols)
	}
	if c.Pipeline.SmoothingFWHM < 0 {
		return fmt.Errorf("smoothing must be non-negative, got %g", c.Pipeline.SmoothingFWHM)
	}
	if c.Pipeline.Task == "" {
		return fmt.Errorf("task must be set")
	}
	for _, alias := range c.Pipeline.Regressors {
		if alias == regressors.ScrubAlias {
			continue
		}
		if _, ok := regressors.Lookup(alias); !ok {
			return fmt.Errorf("unrecognized regressor kind %q (supported: %s, %s)",
				alias, strings.Join(regressors.Aliases(), ", "), regressors.ScrubAlias)
		}
	}
	return nil
}

// Kinds splits the configured regressor list into the column kinds
// passed to the regressor builder and the scrub-enable flag carried by
// the "art" alias.
func (c *Config) Kinds() (aliases []string, scrub bool) {
	for _, alias := range c.Pipeline.Regressors {
		if alias == regressors.ScrubAlias {
			scrub = true
			continue
		}
		aliases = append(aliases, alias)
	}
	return aliases, scrub
}

// FilterMode returns the parsed temporal filter mode. Validate must
// have accepted the configuration first.
func (c *Config) FilterMode() models.FilterMode {
	mode, _ := models.ParseFilterMode(c.Pipeline.Filter)
	return mode
}

// StandardizeMode returns the parsed normalization mode. Validate must
// have accepted the configuration first.
func (c *Config) StandardizeMode() models.StandardizeMode {
	mode, _ := models.ParseStandardizeMode(c.Pipeline.Standardize)
	return mode
}
