// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the settings of the coffee command from an optional
// YAML file and COFFEE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/curioloop/coffee/coffee"
)

// envPrefix is the environment variable prefix of every setting, e.g.
// COFFEE_OPTIMIZER_MAX_ITERATIONS or COFFEE_SERVER_ADDR.
const envPrefix = "COFFEE"

// Config is the complete configuration of the command.
type Config struct {
	Optimizer coffee.Options `mapstructure:"optimizer" json:"optimizer" yaml:"optimizer"`
	Log       LogConfig      `mapstructure:"log" json:"log" yaml:"log"`
	Server    ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
}

// LogConfig selects the operational logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	// Format is json or console.
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxUploadBytes bounds the size of the uploaded input files.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Optimizer: coffee.DefaultOptions(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
	}
}

// newViper builds a viper instance reading YAML, binding COFFEE_* variables
// with "." mapped to "_", and registering every default so that environment
// overrides of unset keys are visible to Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("optimizer.max_iterations", d.Optimizer.MaxIterations)
	v.SetDefault("optimizer.max_delta", d.Optimizer.MaxDelta)
	v.SetDefault("optimizer.eta", d.Optimizer.Eta)
	v.SetDefault("optimizer.norm_ratio_threshold", d.Optimizer.NormRatioThreshold)
	v.SetDefault("optimizer.rho_thresholds", d.Optimizer.RhoThresholds[:])
	v.SetDefault("optimizer.scale_factors", d.Optimizer.ScaleFactors[:])
	v.SetDefault("optimizer.scaling", d.Optimizer.Scaling)
	v.SetDefault("optimizer.temp_celsius", d.Optimizer.TempCelsius)
	v.SetDefault("optimizer.verbose", d.Optimizer.Verbose)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	return v
}

// Load reads the YAML file at path, merges environment overrides over it
// and validates the result. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	switch {
	case c.Server.Addr == "":
		return errors.New("server: address must not be empty")
	case c.Server.MaxUploadBytes <= 0:
		return errors.New("server: max upload bytes must be positive")
	case c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0:
		return errors.New("server: timeouts must not be negative")
	}
	return nil
}
