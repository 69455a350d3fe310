// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads treeshake.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianTreeShake/services/treeshake/depgraph"
)

// FileName is the config file looked up by the CLI.
const FileName = "treeshake.yaml"

// Defaults.
const (
	DefaultMode        = "development"
	DefaultWorkers     = 4
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultStorePath   = ".treeshake"

	// MaxYAMLFileSize bounds the config file.
	MaxYAMLFileSize = 1 << 20
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the tree-shaker settings.
//
// Description:
//
//	Loaded from treeshake.yaml. All fields are optional; zero values are
//	replaced by the defaults. A missing file is not an error.
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// Mode is "development" or "production".
	Mode string `yaml:"mode" validate:"oneof=development dev production prod"`

	// Workers bounds the number of modules processed at once.
	Workers int `yaml:"workers" validate:"min=1,max=256"`

	// MaxFileSize is the largest module accepted by the parser, in bytes.
	MaxFileSize int `yaml:"max_file_size" validate:"min=1"`

	Store  StoreConfig  `yaml:"store"`
	Report ReportConfig `yaml:"report"`
}

// StoreConfig configures the part store.
type StoreConfig struct {
	// Path is the BadgerDB directory.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	// InMemory skips the disk entirely.
	InMemory bool `yaml:"in_memory"`
}

// ReportConfig configures the markdown report.
type ReportConfig struct {
	// Mermaid includes the graph diagrams.
	Mermaid bool `yaml:"mermaid"`
}

// Option overrides a loaded setting.
type Option func(*Config)

// WithMode overrides the mode.
func WithMode(mode string) Option {
	return func(c *Config) {
		if mode != "" {
			c.Mode = mode
		}
	}
}

// WithWorkers overrides the worker count. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithStorePath overrides the store directory.
func WithStorePath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Store.Path = path
		}
	}
}

// WithInMemoryStore keeps the store in memory.
func WithInMemoryStore() Option {
	return func(c *Config) {
		c.Store.InMemory = true
	}
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Mode:        DefaultMode,
		Workers:     DefaultWorkers,
		MaxFileSize: DefaultMaxFileSize,
		Store:       StoreConfig{Path: DefaultStorePath},
		Report:      ReportConfig{Mermaid: true},
	}
}

// Load reads a config file, applies defaults and opts, and validates the
// result.
//
// Description:
//
//	If path is empty or the file does not exist, the defaults are used.
//	Only returns an error if the file exists but cannot be read or parsed,
//	or if the final configuration is invalid.
//
// Inputs:
//
//	path - Path to the YAML file. May be empty.
//	opts - Overrides applied after the file.
//
// Outputs:
//
//	Config - The configuration.
//	error  - Non-nil on read, parse or validation failure.
func Load(path string, opts ...Option) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		default:
			if len(data) > MaxYAMLFileSize {
				return Config{}, fmt.Errorf("%s exceeds maximum size (%d > %d)", path, len(data), MaxYAMLFileSize)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParsedMode returns Mode as a depgraph.Mode.
func (c Config) ParsedMode() (depgraph.Mode, error) {
	return depgraph.ParseMode(c.Mode)
}
