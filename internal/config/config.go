// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config holds the runtime settings shared by planning and execution.
//
// Settings are read from a YAML file. Every field has a default, so an empty or missing file
// yields Default(). Command line flags are applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

var (
	// ErrInvalidYaml is returned when the configuration file cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML configuration")
	// ErrInvalidValue is returned when a decoded value is out of range.
	ErrInvalidValue = errors.New("invalid configuration value")
	// ErrReadConfig is returned when the configuration file cannot be read.
	ErrReadConfig = errors.New("failed to read configuration file")
)

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultDownloadWorkers = 4
	defaultTimingTop       = 10
	defaultCompression     = 6
)

// FS is the filesystem LoadFile reads from.
var FS = afero.NewOsFs()

// Config holds the runtime settings.
type Config struct {
	// AbortFile is watched while processes run. Its disappearance cancels the run.
	AbortFile string `yaml:"abort_file,omitempty"`
	// PollInterval is how often running processes and the abort file are checked.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	// UnitTimeout is an optional wall clock limit applied to every unit of work.
	UnitTimeout time.Duration `yaml:"unit_timeout,omitempty"`
	// SplitThreshold is the default archive part size in bytes. Zero disables splitting.
	SplitThreshold int64 `yaml:"split_threshold,omitempty"`
	// Ignore lists base name glob patterns excluded from checksums, archives and copies.
	Ignore []string `yaml:"ignore,omitempty"`
	// BookkeepingDirs are directory names skipped when unpacking a whole tree.
	BookkeepingDirs []string `yaml:"bookkeeping_dirs,omitempty"`
	// HardLinks enables hard linking when copying files.
	HardLinks bool `yaml:"hard_links,omitempty"`
	// Shell is used to run shell command lines.
	Shell string `yaml:"shell,omitempty"`
	// CurlPath is the download client executable.
	CurlPath string `yaml:"curl_path,omitempty"`
	// DownloadWorkers is the number of concurrent download clients.
	DownloadWorkers int `yaml:"download_workers,omitempty"`
	// CompressionLevel is the DEFLATE level used for .wzip files.
	CompressionLevel int `yaml:"compression_level,omitempty"`
	// TimingSummaryTop limits how many of the slowest units are listed after a run.
	TimingSummaryTop int `yaml:"timing_summary_top,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		PollInterval:     defaultPollInterval,
		Ignore:           []string{".DS_Store"},
		BookkeepingDirs:  []string{".stevedore"},
		Shell:            "/bin/sh",
		CurlPath:         "curl",
		DownloadWorkers:  defaultDownloadWorkers,
		CompressionLevel: defaultCompression,
		TimingSummaryTop: defaultTimingTop,
	}
}

// Load decodes YAML data over the defaults.
func Load(data []byte) (*Config, error) {
	c := Default()

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Join(ErrInvalidYaml, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadFile reads and decodes the file at path. An empty path returns Default().
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := afero.ReadFile(FS, path)
	if err != nil {
		return nil, errors.Join(ErrReadConfig, err)
	}

	return Load(data)
}

// Validate checks the settings for values that can never work.
func (c *Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval must be positive, got %s", ErrInvalidValue, c.PollInterval)
	case c.UnitTimeout < 0:
		return fmt.Errorf("%w: unit_timeout must not be negative", ErrInvalidValue)
	case c.SplitThreshold < 0:
		return fmt.Errorf("%w: split_threshold must not be negative", ErrInvalidValue)
	case c.DownloadWorkers < 1:
		return fmt.Errorf("%w: download_workers must be at least 1", ErrInvalidValue)
	case c.CompressionLevel < -2 || c.CompressionLevel > 9:
		return fmt.Errorf("%w: compression_level must be between -2 and 9", ErrInvalidValue)
	}

	return nil
}

// Marshal encodes the settings as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c) //nolint:wrapcheck
}
