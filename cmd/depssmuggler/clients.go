// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"
	"path/filepath"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/cache"
	"github.com/airgapcourier/depssmuggler/internal/config"
	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

const userAgent = "depssmuggler/1"

// loadConfig reads -config (or its documented default path) overlaid on
// spec.md §6's defaults.
func loadConfig() config.Config {
	path := *configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			log.Fatal(err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func newTarget() platform.Target {
	return platform.Target{
		OS:            platform.NormalizeOS(*targetOS),
		Arch:          platform.NormalizeArch(*targetArch),
		PythonVersion: *pythonVer,
	}
}

// registryClient returns the single BasicClient a registry's HTTPRegistry
// uses for both its metadata/index calls and its artifact downloads (every
// HTTPRegistry in pkg/registry has exactly one Client field). It is tuned
// to the Artifact timeout, generous enough for both, and wrapped in a
// TwoTierCache (memory-coalesced, write-through to a DiskCache under
// cfg.CacheDir/subdir keyed by URL) when ttl is positive, per spec.md
// §4.2's two-tier cache contract -- CachedClient drives conditional
// revalidation and stale fallback against it automatically, since
// TwoTierCache implements cache.ConditionalCache. -force-refresh wraps the
// whole chain so every request bypasses both tiers regardless of freshness.
func registryClient(cfg config.Config, subdir string, ttl time.Duration) httpx.BasicClient {
	pool := httpx.NewPool(cfg.StrictSSL, userAgent)
	var client httpx.BasicClient = pool.Artifact()
	if ttl > 0 {
		dc, err := cache.NewDiskCache(filepath.Join(cfg.CacheDir, subdir), ttl)
		if err != nil {
			log.Fatal(errors.Wrap(err, "opening registry cache"))
		}
		client = httpx.NewCachedClient(client, cache.NewTwoTierCache(dc))
	}
	if *forceRefresh {
		client = &httpx.ForceRefreshClient{BasicClient: client, Enabled: true}
	}
	return client
}
