// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"

	"github.com/airgapcourier/depssmuggler/internal/config"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/orchestrator"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/airgapcourier/depssmuggler/pkg/registry/apk"
	"github.com/airgapcourier/depssmuggler/pkg/registry/apt"
	"github.com/airgapcourier/depssmuggler/pkg/registry/conda"
	"github.com/airgapcourier/depssmuggler/pkg/registry/docker"
	"github.com/airgapcourier/depssmuggler/pkg/registry/maven"
	"github.com/airgapcourier/depssmuggler/pkg/registry/npm"
	"github.com/airgapcourier/depssmuggler/pkg/registry/osrepo"
	"github.com/airgapcourier/depssmuggler/pkg/registry/pypi"
	"github.com/airgapcourier/depssmuggler/pkg/registry/yum"
)

// pypiSource, npmSource, etc. each construct one ecosystem's facade from
// the current flags and config. They're split out (rather than one giant
// switch) so resolve/download/search can grab exactly the Searcher or
// Fetcher shape they need without caring about the others.

func pypiSource(cfg config.Config) *pypi.Source {
	return &pypi.Source{
		Registry: &pypi.HTTPRegistry{Client: registryClient(cfg, "pypi", cfg.CatalogCacheTTL())},
		Target:   newTarget(),
	}
}

func npmSource(cfg config.Config) *npm.Source {
	return &npm.Source{
		Registry: npm.HTTPRegistry{Client: registryClient(cfg, "npm", cfg.NpmPackumentTTL())},
	}
}

func mavenSource(cfg config.Config) *maven.Source {
	return &maven.Source{
		Registry: maven.HTTPRegistry{Client: registryClient(cfg, "maven", cfg.PomCacheTTL())},
		Opts:     maven.ClosureOptions{MaxDepth: cfg.MaxDepth.Maven},
	}
}

func condaSource(cfg config.Config) *conda.Source {
	return &conda.Source{
		Registry: conda.HTTPRegistry{Client: registryClient(cfg, "conda", cfg.CondaRepodataTTL())},
		Channel:  *condaChan,
		Target:   newTarget(),
	}
}

func dockerSource(cfg config.Config) *docker.Source {
	return &docker.Source{
		Registry: &docker.HTTPRegistry{Client: registryClient(cfg, "docker", 0)},
		Target:   newTarget(),
	}
}

func aptSource(cfg config.Config) *osrepo.AptSource {
	return &osrepo.AptSource{
		Registry:  &apt.HTTPRegistry{Client: registryClient(cfg, "apt", cfg.CatalogCacheTTL())},
		Component: *osComponent,
		Arch:      newTarget().Arch,
	}
}

func yumSource(cfg config.Config) *osrepo.YumSource {
	return &osrepo.YumSource{
		Registry:   &yum.HTTPRegistry{Client: registryClient(cfg, "yum", cfg.CatalogCacheTTL())},
		Releasever: *osRelease,
		Arch:       newTarget().Arch,
	}
}

func apkSource(cfg config.Config) *osrepo.ApkSource {
	return &osrepo.ApkSource{
		Registry: &apk.HTTPRegistry{Client: registryClient(cfg, "apk", cfg.CatalogCacheTTL())},
		Branch:   *osRelease,
		Repo:     *osRepo,
		Arch:     newTarget().Arch,
	}
}

// fetcherFor returns the orchestrator.Fetcher for one ecosystem.
func fetcherFor(cfg config.Config, eco courier.Ecosystem) orchestrator.Fetcher {
	switch eco {
	case courier.Pip:
		return pypiSource(cfg)
	case courier.NPM:
		return npmSource(cfg)
	case courier.Maven:
		return mavenSource(cfg)
	case courier.Conda:
		return condaSource(cfg)
	case courier.Docker:
		return dockerSource(cfg)
	case courier.APT:
		return aptSource(cfg)
	case courier.YUM:
		return yumSource(cfg)
	case courier.APK:
		return apkSource(cfg)
	default:
		log.Fatalf("unknown ecosystem %q", eco)
		return nil
	}
}

// searcherFor returns the registry.Searcher for one ecosystem. Every known
// ecosystem, docker and the OS-package ecosystems included, has one; an
// unknown ecosystem is fatal.
func searcherFor(cfg config.Config, eco courier.Ecosystem) registry.Searcher {
	switch eco {
	case courier.Pip:
		return pypiSource(cfg)
	case courier.NPM:
		return npmSource(cfg)
	case courier.Maven:
		return mavenSource(cfg)
	case courier.Conda:
		return condaSource(cfg)
	case courier.Docker:
		return dockerSource(cfg)
	case courier.APT:
		return aptSource(cfg)
	case courier.YUM:
		return yumSource(cfg)
	case courier.APK:
		return apkSource(cfg)
	default:
		log.Fatalf("unknown ecosystem %q", eco)
		return nil
	}
}
