// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osrepo

import (
	"context"
	"io"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry/apt"
)

// AptSource is a Downloader backed by one Debian/APT (component,
// architecture) pair, e.g. ("main", "amd64").
type AptSource struct {
	Registry  apt.Registry
	Component string
	Arch      string

	idx onceIndex[apt.Index]
}

var _ Downloader = (*AptSource)(nil)

func (s *AptSource) index(ctx context.Context) (*apt.Index, error) {
	s.idx.fetch = func(ctx context.Context) (*apt.Index, error) {
		return s.Registry.Packages(ctx, s.Component, s.Arch)
	}
	return s.idx.get(ctx)
}

func (s *AptSource) toResult(p apt.Package) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef: courier.PackageRef{
			Ecosystem: courier.APT,
			Name:      p.Name,
			Arch:      p.Architecture,
		},
		ResolvedVersion: p.Version,
		URL:             apt.ArtifactURL(p.Filename),
		Checksum:        courier.Checksum{Type: "sha256", Hex: p.SHA256},
		Size:            p.Size,
		Registry:        "apt",
	}
}

func (s *AptSource) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(idx.Packages))
	seen := map[string]bool{}
	for _, p := range idx.Packages {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return searchByName(names, idx.Lookup, query, s.toResult), nil
}

func (s *AptSource) ResolveDependencies(ctx context.Context, name string) (*courier.GraphResult, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	flat, failed, err := apt.Closure(ctx, idx, name, apt.ClosureOptions{})
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{Failed: failedRefs(courier.APT, failed)}
	for _, rp := range flat {
		result.FlatList = append(result.FlatList, s.toResult(rp.Package))
	}
	return result, nil
}

func (s *AptSource) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	url := apt.PoolURL(s.Component, pkg.Name, apt.ArtifactName(pkg.Name, pkg.ResolvedVersion, s.Arch))
	for _, v := range idx.Lookup(pkg.Name) {
		if v.Version == pkg.ResolvedVersion && v.Filename != "" {
			url = apt.ArtifactURL(v.Filename)
			break
		}
	}
	return s.Registry.Artifact(ctx, url)
}
