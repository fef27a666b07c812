// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package npm

import (
	"context"
	"io"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/pkg/errors"
)

// Source is a registry.Searcher and orchestrator.Fetcher backed by one
// npm HTTPRegistry.
type Source struct {
	Registry Registry
}

var _ registry.Searcher = &Source{}

// Search probes the registry for an exact package name match -- the npm
// registry API has no public prefix-search endpoint, so this is the same
// "exact name or nothing" fallback pypi.Source.Search uses when its simple
// index is unavailable.
func (s *Source) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	pkg, err := s.Registry.Package(ctx, query)
	if err != nil {
		return nil, nil
	}
	version, ok := distTag(pkg, "latest")
	if !ok {
		return nil, nil
	}
	return []courier.ResolvedPackage{s.toResult(FlatEntry{Name: pkg.Name, Version: version})}, nil
}

func (s *Source) toResult(e FlatEntry) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Ecosystem: courier.NPM, Name: e.Name, Version: e.Version},
		ResolvedVersion: e.Version,
		Registry:        "npm",
		Meta:            map[string]any{"path": e.Path},
	}
}

// ResolveDependencies hoists name@spec's full dependency tree per
// spec.md §4.6, fetching each placed node's Dist metadata so the flat
// list carries download URLs and checksums.
func (s *Source) ResolveDependencies(ctx context.Context, name, spec string) (*courier.GraphResult, error) {
	in := NewInstaller(s.Registry)
	root, failed, err := in.Hoist(ctx, map[string]string{name: spec})
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{}
	for _, e := range Flatten(root) {
		v, verr := s.Registry.Version(ctx, e.Name, e.Version)
		if verr != nil {
			result.Failed = append(result.Failed, courier.FailedRef{
				Ref: courier.PackageRef{Ecosystem: courier.NPM, Name: e.Name, Version: e.Version},
				Err: verr,
			})
			continue
		}
		rp := s.toResult(e)
		rp.URL = v.Dist.URL
		rp.Checksum = courier.Checksum{Type: "sha1", Hex: v.Dist.SHA1}
		result.FlatList = append(result.FlatList, rp)
	}
	for _, n := range failed {
		result.Failed = append(result.Failed, courier.FailedRef{
			Ref: courier.PackageRef{Ecosystem: courier.NPM, Name: n},
			Err: errors.Errorf("could not resolve %s", n),
		})
	}
	return result, nil
}

// Download fetches the tarball recorded at resolution time.
func (s *Source) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	return s.Registry.Artifact(ctx, pkg.Name, pkg.ResolvedVersion)
}
