// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package conda

import (
	"context"
	"io"

	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/pkg/errors"
)

// Source is a registry.Searcher and orchestrator.Fetcher backed by one
// Conda channel's HTTPRegistry, resolving artifacts for a fixed target
// platform.
type Source struct {
	Registry HTTPRegistry
	Channel  string
	Target   platform.Target
}

var _ registry.Searcher = &Source{}

// Search matches a query against the primary subdir's repodata, falling
// back to noarch, since the repodata.json format has no search endpoint
// of its own.
func (s *Source) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	subdir := platform.CondaSubdir(s.Target)
	rd, err := s.Registry.Repodata(ctx, s.Channel, subdir)
	if err != nil {
		return nil, err
	}
	candidates := rd.Candidates(query)
	if len(candidates) == 0 {
		if noarch, nerr := s.Registry.Repodata(ctx, s.Channel, "noarch"); nerr == nil {
			candidates = noarch.Candidates(query)
		}
	}
	out := make([]courier.ResolvedPackage, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, s.toResult(ResolvedDep{Channel: s.Channel, Subdir: c.Subdir, Package: c}))
	}
	return out, nil
}

func (s *Source) toResult(d ResolvedDep) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef: courier.PackageRef{
			Ecosystem: courier.Conda,
			Name:      d.Package.Name,
			Version:   d.Package.Version,
			Arch:      s.Target.Arch,
			Platform:  s.Target.OS,
		},
		ResolvedVersion: d.Package.Version,
		URL:             URL(d.Channel, d.Subdir, d.Package.Filename),
		Checksum:        courier.Checksum{Type: "sha256", Hex: d.Package.SHA256},
		Size:            d.Package.Size,
		Registry:        "conda",
		Meta:            map[string]any{"filename": d.Package.Filename, "subdir": d.Subdir},
	}
}

// ResolveDependencies resolves root (a MatchSpec string) and its
// transitive Depends against s.Target, per spec.md §4.4.
func (s *Source) ResolveDependencies(ctx context.Context, root string) (*courier.GraphResult, error) {
	flat, failed, err := s.Registry.Closure(ctx, s.Channel, root, s.Target)
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{}
	for _, d := range flat {
		result.FlatList = append(result.FlatList, s.toResult(d))
	}
	for _, n := range failed {
		result.Failed = append(result.Failed, courier.FailedRef{
			Ref: courier.PackageRef{Ecosystem: courier.Conda, Name: n},
			Err: errors.Errorf("could not resolve %s", n),
		})
	}
	return result, nil
}

// Download fetches the .conda/.tar.bz2 artifact recorded at resolution
// time.
func (s *Source) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	subdir, _ := pkg.Meta["subdir"].(string)
	filename, _ := pkg.Meta["filename"].(string)
	if filename == "" {
		return nil, errors.Errorf("conda: no artifact filename recorded for %s", pkg.Key())
	}
	return s.Registry.Artifact(ctx, s.Channel, subdir, filename)
}
