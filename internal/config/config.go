// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package config loads the depssmuggler configuration record described in
// spec.md §6, overlaying a TOML file on top of documented defaults and a
// small set of environment-variable overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// MaxDepth holds the per-ecosystem closure-walk depth caps from
// spec.md §4.9.
type MaxDepth struct {
	Maven          int `toml:"maven"`
	CondaYum       int `toml:"conda_yum"`
	OSDepLookahead int `toml:"os_dep_lookahead"`
}

// Concurrency holds the per-phase worker-pool limits from spec.md §4.10.
type Concurrency struct {
	Metadata  int `toml:"metadata"`
	Prefetch  int `toml:"prefetch"`
	SizeProbe int `toml:"size_probe"`
	Download  int `toml:"download"`
}

// Config is the full configuration record, per spec.md §6.
type Config struct {
	StrictSSL             bool   `toml:"strict_ssl"`
	CacheDir              string `toml:"cache_dir"`
	CatalogCacheTTLms     int64  `toml:"catalog_cache_ttl_ms"`
	PomCacheTTLms         int64  `toml:"pom_cache_ttl_ms"`
	CondaRepodataTTLms    int64  `toml:"conda_repodata_ttl_ms"`
	NpmPackumentTTLms     int64  `toml:"npm_packument_ttl_ms"`
	MavenRepoURL          string `toml:"maven_repo_url"`
	PypiBaseURL           string `toml:"pypi_base_url"`
	DockerDefaultRegistry string `toml:"docker_default_registry"`

	MaxDepth    MaxDepth    `toml:"max_depth"`
	Concurrency Concurrency `toml:"concurrency"`
}

// CatalogCacheTTL, PomCacheTTL, CondaRepodataTTL, and NpmPackumentTTL
// convert the millisecond fields to time.Duration for callers wiring
// internal/cache.
func (c Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLms) * time.Millisecond
}
func (c Config) PomCacheTTL() time.Duration {
	return time.Duration(c.PomCacheTTLms) * time.Millisecond
}
func (c Config) CondaRepodataTTL() time.Duration {
	return time.Duration(c.CondaRepodataTTLms) * time.Millisecond
}
func (c Config) NpmPackumentTTL() time.Duration {
	return time.Duration(c.NpmPackumentTTLms) * time.Millisecond
}

// Default returns the documented default configuration, per spec.md §6.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		StrictSSL:             false,
		CacheDir:              filepath.Join(home, ".depssmuggler", "cache"),
		CatalogCacheTTLms:     3_600_000,
		PomCacheTTLms:         300_000,
		CondaRepodataTTLms:    86_400_000,
		NpmPackumentTTLms:     300_000,
		MavenRepoURL:          "https://repo1.maven.org/maven2",
		PypiBaseURL:           "https://pypi.org",
		DockerDefaultRegistry: "docker.io",
		MaxDepth:              MaxDepth{Maven: 20, CondaYum: 10, OSDepLookahead: 5},
		Concurrency:           Concurrency{Metadata: 3, Prefetch: 5, SizeProbe: 15, Download: 3},
	}
}

// Load returns Default() overlaid with path's TOML contents (if it
// exists) and then the DEPSSMUGGLER_STRICT_SSL environment override from
// spec.md §6. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if b, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parsing config %s", path)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	if v := os.Getenv("DEPSSMUGGLER_STRICT_SSL"); v == "true" {
		cfg.StrictSSL = true
	}
	return cfg, nil
}

// DefaultPath returns $HOME/.depssmuggler/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".depssmuggler", "config.toml"), nil
}
