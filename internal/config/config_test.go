// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
maven_repo_url = "https://mirror.example.com/maven2"

[concurrency]
download = 8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MavenRepoURL != "https://mirror.example.com/maven2" {
		t.Errorf("MavenRepoURL = %q, want override", cfg.MavenRepoURL)
	}
	if cfg.Concurrency.Download != 8 {
		t.Errorf("Concurrency.Download = %d, want 8", cfg.Concurrency.Download)
	}
	if cfg.Concurrency.Metadata != Default().Concurrency.Metadata {
		t.Errorf("Concurrency.Metadata = %d, want default preserved", cfg.Concurrency.Metadata)
	}
}

func TestLoadStrictSSLEnvOverride(t *testing.T) {
	t.Setenv("DEPSSMUGGLER_STRICT_SSL", "true")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.StrictSSL {
		t.Error("StrictSSL = false, want true from env override")
	}
}

func TestCacheDirDefaultUnderHome(t *testing.T) {
	cfg := Default()
	if filepath.Base(cfg.CacheDir) != "cache" {
		t.Errorf("CacheDir = %q, want it to end in /cache", cfg.CacheDir)
	}
}
