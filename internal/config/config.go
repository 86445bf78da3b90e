// Package config handles loading application configuration from a YAML file
// with environment variable overrides.
//
// Config file format (tinyopds.yaml):
//
//	library_path: ./library
//	database_path: ./library/.tinyopds.db
//	sort_order: 1
//	new_books_period: 2
//	use_authors_aliases: true
//	alias_file_path: ./a_aliases.txt
//	cache_images_in_memory: true
//	max_ram_image_cache_size_mb: 128
//	log_level: normal
//
// Configuration sources, in increasing priority order:
//  1. Built-in defaults
//  2. YAML config file (located by FindConfigFile or explicit path)
//  3. Environment variables (TINYOPDS_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// NewBooksPeriods is the fixed selector table of spec.md §6: the set of
// windows (in days) the facade can treat as "new books".
var NewBooksPeriods = [7]int{7, 14, 21, 30, 44, 60, 90}

// Config holds all application configuration.
type Config struct {
	// LibraryPath is the root directory under which relative FileNames are
	// resolved; it is stripped as a prefix from incoming FileNames (OQ-3).
	LibraryPath string `yaml:"library_path"`

	// DatabasePath is the path to the SQLite catalog database file.
	DatabasePath string `yaml:"database_path"`

	// SortOrder selects the collation used by list caches and the
	// alphabetical author cache: 0 = Latin-first, >0 = Cyrillic-first.
	SortOrder int `yaml:"sort_order"`

	// NewBooksPeriodIndex indexes into NewBooksPeriods.
	NewBooksPeriodIndex int `yaml:"new_books_period"`

	// UseAuthorsAliases enables alias substitution on insert.
	UseAuthorsAliases bool `yaml:"use_authors_aliases"`

	// AliasFilePath is the external author-alias file (overrides the
	// embedded gzipped copy when present).
	AliasFilePath string `yaml:"alias_file_path"`

	// CacheImagesInMemory and MaxRAMImageCacheSizeMB are consumed by the
	// cover-cache collaborator; the library facade only advertises them.
	CacheImagesInMemory    bool `yaml:"cache_images_in_memory"`
	MaxRAMImageCacheSizeMB int  `yaml:"max_ram_image_cache_size_mb"`

	// LogLevel is "none", "normal", or "debug".
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		LibraryPath:            "./library",
		DatabasePath:           "./library/.tinyopds.db",
		SortOrder:              0,
		NewBooksPeriodIndex:    0,
		UseAuthorsAliases:      true,
		AliasFilePath:          "",
		CacheImagesInMemory:    false,
		MaxRAMImageCacheSizeMB: 64,
		LogLevel:               "normal",
	}
}

// NewBooksPeriodDays returns the configured "new books" window in days,
// clamping NewBooksPeriodIndex into range.
func (c Config) NewBooksPeriodDays() int {
	idx := c.NewBooksPeriodIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(NewBooksPeriods) {
		idx = len(NewBooksPeriods) - 1
	}
	return NewBooksPeriods[idx]
}

// Load reads configuration from the YAML file at path (if non-empty), then
// applies environment variable overrides on top. Returns the merged Config.
// If path is empty, only defaults and environment variables are applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	// Environment variables always override file values so that container
	// or systemd overrides still work even when a config file is present.
	if v := os.Getenv("TINYOPDS_LIBRARY_PATH"); v != "" {
		cfg.LibraryPath = v
	}
	if v := os.Getenv("TINYOPDS_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TINYOPDS_SORT_ORDER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SortOrder = n
		}
	}
	if v := os.Getenv("TINYOPDS_NEW_BOOKS_PERIOD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NewBooksPeriodIndex = n
		}
	}
	if v := os.Getenv("TINYOPDS_USE_AUTHORS_ALIASES"); v != "" {
		cfg.UseAuthorsAliases = v == "1" || v == "true"
	}
	if v := os.Getenv("TINYOPDS_ALIAS_FILE_PATH"); v != "" {
		cfg.AliasFilePath = v
	}
	if v := os.Getenv("TINYOPDS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// FindConfigFile returns the path to the first config file found in the
// standard search order, or "" if none is found.
//
// Search order:
//  1. TINYOPDS_CONFIG environment variable (explicit override)
//  2. ./tinyopds.yaml (current working directory)
//  3. ~/.config/tinyopds/config.yaml (XDG user config)
func FindConfigFile() string {
	if p := os.Getenv("TINYOPDS_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("tinyopds.yaml"); err == nil {
		return "tinyopds.yaml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "tinyopds", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
