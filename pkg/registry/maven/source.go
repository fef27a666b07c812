// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package maven

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/airgapcourier/depssmuggler/pkg/registry"
	"github.com/pkg/errors"
)

// Source is a registry.Searcher and orchestrator.Fetcher backed by one
// Maven Central HTTPRegistry.
type Source struct {
	Registry HTTPRegistry
	Opts     ClosureOptions
}

var _ registry.Searcher = &Source{}

// Search looks query up through PackageMetadata, which fetches the
// artifact's metadata file rather than calling a search endpoint, so it
// only succeeds for an exact "group:artifact" coordinate; there is no
// free-text or prefix search.
func (s *Source) Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error) {
	meta, err := s.Registry.PackageMetadata(ctx, query)
	if err != nil {
		return nil, nil
	}
	out := make([]courier.ResolvedPackage, 0, len(meta.Versions))
	for _, v := range meta.Versions {
		out = append(out, courier.ResolvedPackage{
			PackageRef:      courier.PackageRef{Ecosystem: courier.Maven, Name: query, Version: v},
			ResolvedVersion: v,
			Registry:        "maven",
		})
	}
	return out, nil
}

// packagingExtension maps a POM's packaging element to the artifact
// extension fetched alongside it, per spec.md §4.5: most packaging types
// keep their own extension, but a handful of secondary artifact types
// (ejb, maven-plugin, bundle, test-jar, sources, javadoc) are jars.
func packagingExtension(packaging string) string {
	switch packaging {
	case "jar", "war", "ear", "rar", "aar", "hpi", "pom":
		return "." + packaging
	default:
		return TypeJar
	}
}

func (s *Source) relPath(coord, version, ext string) string {
	g, a, _ := strings.Cut(coord, ":")
	groupPath := strings.ReplaceAll(g, ".", "/")
	return fmt.Sprintf("%s/%s/%s/%s-%s%s", groupPath, a, version, a, version, ext)
}

func (s *Source) toResult(n ResolvedNode) courier.ResolvedPackage {
	ext := packagingExtension(n.Packaging)
	if n.Packaging == "pom" {
		ext = TypePOM
	}
	return courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Ecosystem: courier.Maven, Name: n.Coord, Version: n.Version},
		ResolvedVersion: n.Version,
		Registry:        "maven",
		Meta: map[string]any{
			"packaging": n.Packaging,
			"relPath":   s.relPath(n.Coord, n.Version, ext),
			"pomPath":   s.relPath(n.Coord, n.Version, TypePOM),
		},
	}
}

// pomResult returns n's POM sidecar as its own downloadable package, for
// nodes whose primary packaging isn't already "pom" -- every Maven node
// gets a POM alongside its primary artifact regardless of packaging
// (spec.md §4.5), and the orchestrator's Fetcher contract downloads one
// artifact per courier.ResolvedPackage, so the sidecar needs its own
// flat-list entry to be downloaded at all.
func (s *Source) pomResult(n ResolvedNode) courier.ResolvedPackage {
	return courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Ecosystem: courier.Maven, Name: n.Coord, Version: n.Version},
		ResolvedVersion: n.Version,
		Registry:        "maven",
		Meta: map[string]any{
			"packaging": "pom",
			"relPath":   s.relPath(n.Coord, n.Version, TypePOM),
		},
	}
}

// ResolveDependencies computes coord@version's transitive closure under
// Maven's nearest-wins scope-transitivity rules (spec.md §4.5).
func (s *Source) ResolveDependencies(ctx context.Context, coord, version string) (*courier.GraphResult, error) {
	flat, conflicts, failed, err := s.Registry.Closure(ctx, coord, version, s.Opts)
	if err != nil {
		return nil, err
	}
	result := &courier.GraphResult{Conflicts: conflicts}
	for _, n := range flat {
		result.FlatList = append(result.FlatList, s.toResult(n))
		if n.Packaging != "pom" {
			result.FlatList = append(result.FlatList, s.pomResult(n))
		}
	}
	for _, name := range failed {
		result.Failed = append(result.Failed, courier.FailedRef{
			Ref: courier.PackageRef{Ecosystem: courier.Maven, Name: name},
			Err: errors.Errorf("could not resolve %s", name),
		})
	}
	return result, nil
}

// Download fetches the artifact file (jar/war/pom/...) resolved for pkg;
// a node's POM sidecar arrives as a separate courier.ResolvedPackage (see
// pomResult) rather than a second fetch here.
func (s *Source) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	packaging, _ := pkg.Meta["packaging"].(string)
	ext := packagingExtension(packaging)
	if packaging == "pom" {
		ext = TypePOM
	}
	return s.Registry.ReleaseFile(ctx, pkg.Name, pkg.ResolvedVersion, ext)
}
