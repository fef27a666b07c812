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
	"github.com/airgapcourier/depssmuggler/pkg/registry/yum"
)

// YumSource is a Downloader backed by one Fedora/RPM
// (releasever, architecture) pair, e.g. ("40", "x86_64").
type YumSource struct {
	Registry   yum.Registry
	Releasever string
	Arch       string

	idx onceIndex[yum.Index]
}

var _ Downloader = (*YumSource)(nil)

func (s *YumSource) index(ctx context.Context) (*yum.Index, error) {
	s.idx.fetch = func(ctx context.Context) (*yum.Index, error) {
		return s.Registry.Primary(ctx, s.Releasever, s.Arch)
	}
	return s.idx.get(ctx)
}

func (s *YumSource) toResult(p yum.Package) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef: courier.PackageRef{
			Ecosystem: courier.YUM,
			Name:      p.Name,
			Arch:      p.Arch,
		},
		ResolvedVersion: p.EVR,
		URL:             p.Location,
		Checksum:        courier.Checksum{Type: p.ChecksumType, Hex: p.Checksum},
		Size:            p.Size,
		Registry:        "yum",
	}
}

func (s *YumSource) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
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

func (s *YumSource) ResolveDependencies(ctx context.Context, name string) (*courier.GraphResult, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	flat, failed, err := yum.Closure(ctx, idx, name, yum.ClosureOptions{})
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{Failed: failedRefs(courier.YUM, failed)}
	for _, rp := range flat {
		result.FlatList = append(result.FlatList, s.toResult(rp.Package))
	}
	return result, nil
}

func (s *YumSource) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	idx, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range idx.Lookup(pkg.Name) {
		if v.EVR == pkg.ResolvedVersion {
			return s.Registry.Artifact(ctx, v.Location)
		}
	}
	return s.Registry.Artifact(ctx, pkg.URL)
}
