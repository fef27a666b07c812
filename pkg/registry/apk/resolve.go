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

package apk

import (
	"context"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/debver"
	"github.com/airgapcourier/depssmuggler/internal/parallel"
	"github.com/airgapcourier/depssmuggler/pkg/resolve"
)

// ResolvedPackage is one entry in an APK transitive closure.
type ResolvedPackage struct {
	Package Package
	Depth   int
}

// ClosureOptions configures Closure.
type ClosureOptions struct {
	MaxDepth int
}

// apkVersionCompare reuses dpkg's alternating-digit/non-digit ordering
// rule, which apk's own version comparator is modeled on closely enough
// for dependency-satisfaction purposes (both treat a missing suffix as
// older and compare numeric runs numerically).
func apkVersionCompare(a, b string) int {
	return debver.Compare(a, b)
}

func satisfiesConstraint(version, op, want string) bool {
	if op == "" {
		return true
	}
	cmp := apkVersionCompare(version, want)
	switch op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "=":
		return cmp == 0
	default:
		return true
	}
}

// resolveDependency picks a package satisfying a single D: token, first
// by a real package name/version match, then by a "p:" provides match
// (e.g. "so:libfoo.so.1" or "cmd:foo") per spec.md §4.8.
func resolveDependency(idx *Index, token string) (Package, bool) {
	name, op, want := splitConstraint(token)
	for _, cand := range idx.Lookup(name) {
		if satisfiesConstraint(cand.Version, op, want) {
			return cand, true
		}
	}
	if op != "" {
		return Package{}, false
	}
	for _, provider := range idx.Providers(name) {
		versions := idx.Lookup(provider)
		if len(versions) > 0 {
			return versions[0], true
		}
	}
	return Package{}, false
}

// Closure computes the transitive closure of root's Depends (D:) entries
// using the shared BFS/Skipper kernel for cycle detection and dedup only,
// matching apt's and yum's first-encountered-version-wins semantics.
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

	roots := directChildren(idx, root, 1)
	edges, bfsFailed := resolve.BFS(ctx, skipper, roots, parallel.DefaultLimit, func(ctx context.Context, c resolve.Candidate) (Package, []resolve.Candidate, error) {
		pkgs := idx.Lookup(c.Name)
		var pkg Package
		if len(pkgs) > 0 {
			pkg = pkgs[0]
		} else {
			pkg = Package{Name: c.Name, Version: c.Version}
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
	for _, token := range strings.Fields(pkg.Depends) {
		if strings.HasPrefix(token, "!") {
			continue // A negative constraint (conflict), not a dependency to pull in.
		}
		resolved, ok := resolveDependency(idx, token)
		name, _, _ := splitConstraint(token)
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
	return out
}
