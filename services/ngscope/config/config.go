// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads ngscope.config.yaml.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the project-level configuration file.
const FileName = "ngscope.config.yaml"

// PasswordEnv overrides neo4j.password so it need not be committed.
const PasswordEnv = "NGSCOPE_NEO4J_PASSWORD"

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultConfigYAML []byte

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the ngscope configuration.
//
// Description:
//
//	Loaded from the embedded defaults overlaid with <projectRoot>/
//	ngscope.config.yaml. A missing project file is not an error.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// Include and Exclude are slash-separated globs relative to the project
	// root. "**" matches any number of path segments.
	Include []string `yaml:"include" validate:"min=1,dive,required"`
	Exclude []string `yaml:"exclude" validate:"dive,required"`

	// MaxFileSize is the largest file the parser accepts, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// Workers bounds concurrent file parsing.
	Workers int `yaml:"workers" validate:"gte=1,lte=256"`

	// PrivatePrefix marks modules that are not public.
	PrivatePrefix string `yaml:"private_prefix"`

	// StandaloneDefault is the standalone flag of declarations whose
	// decorator does not set one.
	StandaloneDefault bool `yaml:"standalone_default"`

	// ModuleWrapperTypes are generic return types whose first type argument
	// is the wrapped module.
	ModuleWrapperTypes []string `yaml:"module_wrapper_types" validate:"min=1,dive,required"`

	// MetadataFallback maps "Class.method" or function names to the module
	// class they return, for functions whose types do not say.
	MetadataFallback map[string]string `yaml:"metadata_fallback" validate:"dive,keys,required,endkeys,required"`

	Cache CacheConfig `yaml:"cache"`
	Neo4j Neo4jConfig `yaml:"neo4j"`
}

// CacheConfig configures the persistent scope store.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is relative to the project root unless absolute. Empty keeps the
	// store in memory.
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Neo4jConfig configures `ngscope export`.
type Neo4jConfig struct {
	URI      string `yaml:"uri" validate:"omitempty,uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// =============================================================================
// Loading
// =============================================================================

// Default returns the embedded default configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults.yaml is invalid: %v", err))
	}
	return &cfg
}

// Load reads ngscope.config.yaml from projectRoot over the defaults.
//
// Description:
//
//	Keys present in the project file replace the defaults; absent keys keep
//	them. The neo4j password may come from the NGSCOPE_NEO4J_PASSWORD
//	environment variable. The result is validated.
//
// Inputs:
//
//	projectRoot - Project root directory. Empty returns the defaults.
//
// Outputs:
//
//	*Config - The loaded configuration.
//	error - Non-nil if the file exists but cannot be read or parsed, or if
//	        validation fails (wrapping ErrInvalidConfig).
//
// Thread Safety: Safe for concurrent use (stateless function).
func Load(projectRoot string) (*Config, error) {
	cfg := Default()
	if projectRoot != "" {
		data, err := os.ReadFile(filepath.Join(projectRoot, FileName))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", FileName, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", FileName, err)
			}
		}
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		cfg.Neo4j.Password = pw
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CacheDir returns the store directory resolved against projectRoot.
func (c *Config) CacheDir(projectRoot string) string {
	if c.Cache.Dir == "" || filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(projectRoot, c.Cache.Dir)
}

// Matches reports whether the slash-separated relative path is included
// and not excluded.
func (c *Config) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Exclude {
		if MatchGlob(pattern, rel) {
			return false
		}
	}
	for _, pattern := range c.Include {
		if MatchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// ExcludesDir reports whether a directory, given relative to the project
// root, is excluded as a whole. Discovery does not descend into it.
func (c *Config) ExcludesDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Exclude {
		if strings.HasSuffix(pattern, "/**") && MatchGlob(pattern, rel) {
			return true
		}
	}
	return false
}
