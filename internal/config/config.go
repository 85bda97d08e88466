// Package config loads the YAML configuration describing views, their
// sources and the server settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one upstream feed of a view.
type SourceConfig struct {
	// Name labels the source in event titles and logs.
	Name string `yaml:"name"`
	// Emoji is an optional short prefix for event titles.
	Emoji string `yaml:"emoji,omitempty"`
	// URL is the feed endpoint. May be given as !secret.
	URL Secret `yaml:"url"`
}

// MetadataConfig is the display metadata of an output calendar.
type MetadataConfig struct {
	CalName     string `yaml:"cal_name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Timezone    string `yaml:"timezone,omitempty"`
}

// CalendarConfig is one output product ("view"): a merged calendar
// built from an ordered list of sources.
type CalendarConfig struct {
	Name string `yaml:"name"`
	// Output is the generated file name; defaults to "<name>.ics".
	Output string `yaml:"output,omitempty"`
	// Visibility is one of all_details, title_only, busy_only.
	Visibility string `yaml:"visibility,omitempty"`
	// Password, when set, gates HTTP access to the generated file.
	Password Secret `yaml:"password,omitempty"`
	// IncludeOpties also publishes events tagged [optie].
	IncludeOpties bool           `yaml:"include_opties,omitempty"`
	Metadata      MetadataConfig `yaml:"metadata,omitempty"`
	Sources       []SourceConfig `yaml:"sources"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	OutputDir string `yaml:"output_dir"`
}

// SyncConfig holds the sync run settings.
type SyncConfig struct {
	// TimeoutSeconds bounds each individual source fetch.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxParallel bounds concurrent source fetches within a view.
	MaxParallel int `yaml:"max_parallel"`
	// Refresh is an optional cron expression for periodic resync in
	// server mode. Empty disables the schedule.
	Refresh string `yaml:"refresh,omitempty"`
	// CacheDir is the feed fetch cache location; empty disables it.
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Sync      SyncConfig       `yaml:"sync"`
	Calendars []CalendarConfig `yaml:"calendars"`
}

// Normalize fills in missing values with defaults so partially-filled
// configs behave correctly.
func (c *Config) Normalize() {
	if c.Server.Listen == "" {
		c.Server.Listen = "0.0.0.0:8080"
	}
	if c.Server.OutputDir == "" {
		c.Server.OutputDir = "./output"
	}
	if c.Sync.TimeoutSeconds <= 0 {
		c.Sync.TimeoutSeconds = 20
	}
	if c.Sync.MaxParallel <= 0 {
		c.Sync.MaxParallel = 4
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		if cal.Output == "" {
			cal.Output = cal.Name + ".ics"
		}
		if cal.Visibility == "" {
			cal.Visibility = "all_details"
		}
	}
}

// Validate rejects configurations the sync run cannot work with.
func (c *Config) Validate() error {
	if len(c.Calendars) == 0 {
		return errors.New("config must contain at least one calendar")
	}
	for _, cal := range c.Calendars {
		if cal.Name == "" {
			return errors.New("calendar without a name")
		}
	}
	return nil
}

// Load reads and validates the configuration at path. Secrets given as
// !secret are resolved from the environment or from a secrets.yaml
// next to the config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// !secret lookups inside UnmarshalYAML have no access to the
	// config location, so the secrets file is resolved up front.
	setSecretsFile(filepath.Join(filepath.Dir(path), "secrets.yaml"))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindCalendar returns the view with the given name.
func (c *Config) FindCalendar(name string) (CalendarConfig, bool) {
	for _, cal := range c.Calendars {
		if cal.Name == name {
			return cal, true
		}
	}
	return CalendarConfig{}, false
}
