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

package apt

import (
	"context"

	"github.com/airgapcourier/depssmuggler/internal/debver"
	"github.com/airgapcourier/depssmuggler/internal/parallel"
	"github.com/airgapcourier/depssmuggler/pkg/resolve"
)

// ResolvedPackage is one entry in an APT transitive closure.
type ResolvedPackage struct {
	Package Package
	Depth   int
}

// ClosureOptions configures Closure.
type ClosureOptions struct {
	MaxDepth          int
	IncludeRecommends bool
}

// satisfies reports whether candidate's version satisfies a single
// Depends alternative's version constraint, using Debian's dpkg version
// ordering.
func satisfies(candidate Package, d Dependency) bool {
	if d.Op == "" {
		return true
	}
	cmp := debver.Compare(candidate.Version, d.Version)
	switch d.Op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">>", ">":
		return cmp > 0
	case "<<", "<":
		return cmp < 0
	case "=":
		return cmp == 0
	default:
		return true
	}
}

// resolveAlternatives picks the first alternative (spec.md §4.8's
// "first satisfiable alternative wins" rule) that has a matching real
// package, either directly or via a Provides virtual package. A Provides
// entry carries no version, so a versioned constraint against a virtual
// name is treated as unsatisfiable by that provider, per Debian policy.
func resolveAlternatives(idx *Index, alts []Dependency) (Package, bool) {
	for _, alt := range alts {
		for _, cand := range idx.Lookup(alt.Name) {
			if satisfies(cand, alt) {
				return cand, true
			}
		}
		if alt.Op != "" {
			continue
		}
		for _, provider := range idx.Providers(alt.Name) {
			versions := idx.Lookup(provider)
			if len(versions) > 0 {
				return versions[0], true
			}
		}
	}
	return Package{}, false
}

// Closure computes the transitive closure of root's Depends/Pre-Depends
// (and, if requested, Recommends) using the shared BFS/Skipper kernel.
// Unlike Maven's version-conflict semantics, APT always wants exactly one
// installed version per package name chosen at first encounter -- so the
// Skipper here is used purely for cycle detection and dedup, not
// nearest-wins arbitration.
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
	skipper.RecordResolved(rootName, root.Version, 0, -1)
	flat = append(flat, ResolvedPackage{Package: root, Depth: 0})

	roots := directChildren(idx, root, opts.IncludeRecommends, 1)
	edges, bfsFailed := resolve.BFS(ctx, skipper, roots, parallel.DefaultLimit, func(ctx context.Context, c resolve.Candidate) (Package, []resolve.Candidate, error) {
		pkgs := idx.Lookup(c.Name)
		var pkg Package
		if len(pkgs) > 0 {
			pkg = pkgs[0]
		} else {
			pkg = Package{Name: c.Name, Version: c.Version}
		}
		return pkg, directChildren(idx, pkg, opts.IncludeRecommends, 0), nil
	})
	for _, e := range edges {
		flat = append(flat, ResolvedPackage{Package: e.Node, Depth: e.Candidate.Depth})
	}
	for _, c := range bfsFailed {
		failed = append(failed, c.Name)
	}
	return flat, failed, nil
}

func directChildren(idx *Index, pkg Package, includeRecommends bool, depthHint int) []resolve.Candidate {
	var out []resolve.Candidate
	seenNames := map[string]bool{}
	addFrom := func(field string) {
		for _, alts := range splitDependList(field) {
			resolved, ok := resolveAlternatives(idx, alts)
			name := alts[0].Name
			version := ""
			if ok {
				name, version = resolved.Name, resolved.Version
			}
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
			out = append(out, resolve.Candidate{Name: name, Version: version, Depth: depthHint})
		}
	}
	addFrom(pkg.PreDepends)
	addFrom(pkg.Depends)
	if includeRecommends {
		addFrom(pkg.Recommends)
	}
	return out
}
