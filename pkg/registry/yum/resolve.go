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

package yum

import (
	"context"

	"github.com/airgapcourier/depssmuggler/internal/parallel"
	"github.com/airgapcourier/depssmuggler/internal/rpmver"
	"github.com/airgapcourier/depssmuggler/pkg/resolve"
)

// ResolvedPackage is one entry in a YUM transitive closure.
type ResolvedPackage struct {
	Package Package
	Depth   int
}

// ClosureOptions configures Closure.
type ClosureOptions struct {
	MaxDepth int
}

// satisfiesRequire reports whether candidate's EVR satisfies a single
// rpm:requires entry's version comparison, using RPM's epoch:ver-rel
// ordering.
func satisfiesRequire(candidate Package, req Entry) bool {
	if req.Flag == "" || req.Version == "" {
		return true
	}
	cmp := rpmver.Compare(candidate.EVR, req.Version)
	switch req.Flag {
	case "GE":
		return cmp >= 0
	case "LE":
		return cmp <= 0
	case "GT":
		return cmp > 0
	case "LT":
		return cmp < 0
	case "EQ":
		return cmp == 0
	default:
		return true
	}
}

// resolveRequire picks a package satisfying a single rpm:requires entry,
// first by matching a real package name and version, then by falling back
// to an rpm:provides capability match (spec.md §4.8's virtual-capability
// handling, e.g. "libc.so.6(GLIBC_2.4)" or soname-style requires that
// don't name an installable package directly).
func resolveRequire(idx *Index, req Entry) (Package, bool) {
	for _, cand := range idx.Lookup(req.Name) {
		if satisfiesRequire(cand, req) {
			return cand, true
		}
	}
	if req.Version != "" {
		return Package{}, false
	}
	for _, provider := range idx.Providers(req.Name) {
		versions := idx.Lookup(provider)
		if len(versions) > 0 {
			return versions[0], true
		}
	}
	return Package{}, false
}

// Closure computes the transitive closure of root's rpm:requires entries
// using the shared BFS/Skipper kernel, purely for cycle detection and
// dedup: like APT, YUM wants exactly one resolved version per package
// name, not Maven-style nearest-wins arbitration.
func Closure(ctx context.Context, idx *Index, rootName string, opts ClosureOptions) (flat []ResolvedPackage, failed []string, err error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 30
	}
	skipper := resolve.New(maxDepth)

	rootPkgs := idx.Lookup(rootName)
	if len(rootPkgs) == 0 {
		return nil, []string{rootName}, nil
	}
	root := rootPkgs[0]
	skipper.RecordResolved(rootName, root.EVR, 0, -1)
	flat = append(flat, ResolvedPackage{Package: root, Depth: 0})

	roots := directChildren(idx, root, 1)
	edges, bfsFailed := resolve.BFS(ctx, skipper, roots, parallel.DefaultLimit, func(ctx context.Context, c resolve.Candidate) (Package, []resolve.Candidate, error) {
		pkgs := idx.Lookup(c.Name)
		var pkg Package
		if len(pkgs) > 0 {
			pkg = pkgs[0]
		} else {
			pkg = Package{Name: c.Name, EVR: c.Version}
		}
		return pkg, directChildren(idx, pkg, 0), nil
	})
	for _, e := range edges {
		flat = append(flat, ResolvedPackage{Package: e.Node, Depth: e.Candidate.Depth})
	}
	for _, c := range bfsFailed {
		failed = append(failed, c.Name)
	}
	return flat, failed, nil
}

func directChildren(idx *Index, pkg Package, depthHint int) []resolve.Candidate {
	var out []resolve.Candidate
	seenNames := map[string]bool{}
	for _, req := range pkg.Requires {
		resolved, ok := resolveRequire(idx, req)
		name, version := req.Name, ""
		if ok {
			name, version = resolved.Name, resolved.EVR
		}
		if seenNames[name] {
			continue
		}
		seenNames[name] = true
		out = append(out, resolve.Candidate{Name: name, Version: version, Depth: depthHint})
	}
	return out
}
