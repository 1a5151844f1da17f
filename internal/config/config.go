// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Patchman - Patchman curates upstream commits into a reviewable, re-appliable patch set for downstream forks.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package config loads patchman settings from .patchman.yaml and PATCHMAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the repository root.
const FileName = ".patchman"

// DefaultBaseURL prefixes commit ids in exported reports.
const DefaultBaseURL = "https://github.com/torvalds/linux/commit/"

// Config holds all configuration options for patchman.
type Config struct {
	Select   SelectConfig   `mapstructure:"select"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Apply    ApplyConfig    `mapstructure:"apply"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
}

// SelectConfig controls commit selection.
type SelectConfig struct {
	// DefaultLimit caps the log query when no filter is given.
	DefaultLimit int `mapstructure:"default_limit"`
	// DateFormat is passed to git log as --date=<fmt>. Empty keeps git's default.
	DateFormat string `mapstructure:"date_format"`
}

// ManifestConfig controls how manifests are written.
type ManifestConfig struct {
	Format string `mapstructure:"format"` // "json" or "yaml"
}

// ApplyConfig controls patch replay.
type ApplyConfig struct {
	ThreeWay bool `mapstructure:"three_way"`
}

// ReportConfig controls report export.
type ReportConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Defaults returns the configuration used when no file or env override is present.
func Defaults() Config {
	return Config{
		Select:   SelectConfig{DefaultLimit: 10},
		Manifest: ManifestConfig{Format: "json"},
		Apply:    ApplyConfig{ThreeWay: true},
		Report:   ReportConfig{BaseURL: DefaultBaseURL},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configuration. An explicit path must exist; otherwise
// .patchman.yaml is looked up in searchDir and silently skipped when absent.
func Load(path, searchDir string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("select.default_limit", d.Select.DefaultLimit)
	v.SetDefault("select.date_format", d.Select.DateFormat)
	v.SetDefault("manifest.format", d.Manifest.Format)
	v.SetDefault("apply.three_way", d.Apply.ThreeWay)
	v.SetDefault("report.base_url", d.Report.BaseURL)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix("PATCHMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if searchDir != "" {
			v.AddConfigPath(searchDir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration values for errors.
func (c Config) Validate() error {
	if c.Select.DefaultLimit <= 0 {
		return fmt.Errorf("select.default_limit must be positive, got %d", c.Select.DefaultLimit)
	}
	switch c.Manifest.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("manifest.format must be json or yaml, got %q", c.Manifest.Format)
	}
	if c.Report.BaseURL == "" {
		return errors.New("report.base_url is required")
	}
	return nil
}
