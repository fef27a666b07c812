// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pypi

import (
	"context"
	"io"

	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/pkg/errors"
)

// Source is a registry.Searcher and orchestrator.Fetcher backed by one
// PyPI HTTPRegistry, resolving artifacts for a fixed target platform
// (interpreter ABI tag, OS, architecture).
type Source struct {
	Registry *HTTPRegistry
	Target   platform.Target
}

var _ registry.Searcher = &Source{}

// Search delegates to the simple-index prefix search, translating plain
// project names into courier.ResolvedPackage stubs (no version resolved
// yet -- callers call ResolveDependencies for that).
func (s *Source) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	names, err := s.Registry.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]courier.ResolvedPackage, 0, len(names))
	for _, name := range names {
		out = append(out, courier.ResolvedPackage{
			PackageRef: courier.PackageRef{Ecosystem: courier.Pip, Name: name},
			Registry:   "pypi",
		})
	}
	return out, nil
}

func (s *Source) toResult(d ResolvedDep) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef: courier.PackageRef{
			Ecosystem: courier.Pip,
			Name:      d.Name,
			Version:   d.Version,
			Arch:      s.Target.Arch,
			Platform:  s.Target.OS,
		},
		ResolvedVersion: d.Version,
		URL:             d.Artifact.URL,
		Checksum:        courier.Checksum{Type: "sha256", Hex: d.Artifact.SHA256},
		Size:            d.Artifact.Size,
		Registry:        "pypi",
		Meta:            map[string]any{"filename": d.Artifact.Filename},
	}
}

// ResolveDependencies computes name@version's full requires_dist closure
// for s.Target, per spec.md §4.3.
func (s *Source) ResolveDependencies(ctx context.Context, name, version string) (*courier.GraphResult, error) {
	flat, failed, err := s.Registry.Closure(ctx, name, version, s.Target)
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{}
	for _, d := range flat {
		result.FlatList = append(result.FlatList, s.toResult(d))
	}
	for _, n := range failed {
		result.Failed = append(result.Failed, courier.FailedRef{
			Ref: courier.PackageRef{Ecosystem: courier.Pip, Name: n},
			Err: errors.Errorf("could not resolve %s for %s/%s", n, s.Target.OS, s.Target.Arch),
		})
	}
	return result, nil
}

// Download fetches the wheel/sdist selected during resolution, keyed by
// the filename ResolveDependencies recorded in Meta.
func (s *Source) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	filename, _ := pkg.Meta["filename"].(string)
	if filename == "" {
		return nil, errors.Errorf("pypi: no artifact filename recorded for %s", pkg.Key())
	}
	return s.Registry.Artifact(ctx, pkg.Name, pkg.ResolvedVersion, filename)
}
