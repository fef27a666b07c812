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

package maven

import (
	"context"
	"regexp"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/parallel"
	"github.com/airgapcourier/depssmuggler/pkg/resolve"
)

// EffectivePOM is a POM with its parent chain, property substitution, and
// dependencyManagement (including BOM imports) fully resolved, ready for
// scope-transitivity-aware dependency expansion.
type EffectivePOM struct {
	POM
	// DependencyManagement is the merged version/scope map keyed by
	// "groupId:artifactId", nearest-definition-wins across the parent
	// chain and BOM imports.
	DependencyManagement map[string]Dependency
}

// maxPropertyPasses bounds property substitution per spec.md §4.5: "up to
// 10 passes or until fixed point".
const maxPropertyPasses = 10

var placeholderRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveEffective fetches pkg@version's POM, walks its <parent> chain
// (child properties override parent), performs BOM imports, and returns
// the fully property-substituted POM plus merged dependencyManagement.
func (r HTTPRegistry) resolveEffective(ctx context.Context, pkg, version string, visited map[string]bool) (*EffectivePOM, error) {
	key := pkg + "@" + version
	if visited[key] {
		return nil, errCycle(key)
	}
	visited[key] = true

	p, err := r.FetchPOM(ctx, pkg, version)
	if err != nil {
		return nil, err
	}

	props := map[string]string{}
	var chain []*POM
	cur := p
	for {
		chain = append([]*POM{cur}, chain...) // prepend so root-most parent is first
		if cur.Parent == nil {
			break
		}
		parentCoord := cur.Parent.GroupID + ":" + cur.Parent.ArtifactID
		if visited[parentCoord+"@"+cur.Parent.Version] {
			break // parent cycle: stop climbing rather than loop forever
		}
		parentPOM, perr := r.FetchPOM(ctx, parentCoord, cur.Parent.Version)
		if perr != nil {
			break // missing parent degrades to "no further properties", not fatal
		}
		visited[parentCoord+"@"+cur.Parent.Version] = true
		cur = parentPOM
	}
	for _, pom := range chain {
		for k, v := range pom.propertyMap() {
			props[k] = v
		}
	}
	for pass := 0; pass < maxPropertyPasses; pass++ {
		changed := false
		for k, v := range props {
			nv := substitute(v, props)
			if nv != v {
				props[k] = nv
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	depMgmt := map[string]Dependency{}
	var imports []Dependency
	for i := len(chain) - 1; i >= 0; i-- { // child first, so the nearest definition wins
		pom := chain[i]
		for _, d := range pom.DependencyManagement.Dependencies {
			d = substituteDependency(d, props)
			if d.Type == "pom" && d.Scope == "import" {
				imports = append(imports, d)
				continue
			}
			if _, ok := depMgmt[d.Coord()]; !ok {
				depMgmt[d.Coord()] = d
			}
		}
	}
	if len(imports) > 0 {
		results, _ := parallel.Map(ctx, imports, parallel.DefaultLimit, func(ctx context.Context, d Dependency) (map[string]Dependency, error) {
			imported, ierr := r.resolveEffective(ctx, d.Coord(), simplifyVersionRange(d.Version), cloneVisited(visited))
			if ierr != nil {
				return nil, ierr
			}
			return imported.DependencyManagement, nil
		})
		for _, m := range results {
			for k, v := range m {
				if _, ok := depMgmt[k]; !ok {
					depMgmt[k] = v
				}
			}
		}
	}

	effective := p
	effective.GroupID = substitute(orParent(p.GroupID, chain, func(x *POM) string { return x.GroupID }), props)
	effective.ArtifactID = substitute(p.ArtifactID, props)
	effective.Version = substitute(orParent(p.Version, chain, func(x *POM) string { return x.Version }), props)
	for i, d := range effective.Dependencies {
		effective.Dependencies[i] = substituteDependency(d, props)
	}
	return &EffectivePOM{POM: *effective, DependencyManagement: depMgmt}, nil
}

func orParent(v string, chain []*POM, get func(*POM) string) string {
	if v != "" {
		return v
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if s := get(chain[i]); s != "" {
			return s
		}
	}
	return v
}

func substitute(s string, props map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := props[name]; ok {
			return v
		}
		return m
	})
}

func substituteDependency(d Dependency, props map[string]string) Dependency {
	d.GroupID = substitute(d.GroupID, props)
	d.ArtifactID = substitute(d.ArtifactID, props)
	d.Version = substitute(d.Version, props)
	d.Scope = substitute(d.Scope, props)
	return d
}

func cloneVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

type cycleErr string

func (c cycleErr) Error() string { return "maven POM cycle detected at " + string(c) }
func errCycle(key string) error  { return cycleErr(key) }

// simplifyVersionRange collapses a Maven version-range expression
// ("[1.0,2.0)", "(,1.2]", "[1.5,)") to its lower bound, per spec.md §4.5.
// A plain version string (no brackets) passes through unchanged.
func simplifyVersionRange(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || (v[0] != '[' && v[0] != '(') {
		return v
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(v, string(v[0])), ")")
	inner = strings.TrimSuffix(inner, "]")
	lower, _, _ := strings.Cut(inner, ",")
	lower = strings.TrimSpace(lower)
	if lower == "" {
		// No lower bound given ("(,2.0)"): fall back to the upper bound,
		// the least-wrong single version to pin to.
		_, upper, _ := strings.Cut(inner, ",")
		return strings.TrimSpace(upper)
	}
	return lower
}

// scopeTransitivity implements spec.md §4.5's table: a "compile" parent
// edge preserves the child's own scope; a "runtime" parent downgrades a
// "compile" child to "runtime"; other combinations that yield no defined
// scope drop the edge (empty return, ok=false).
func scopeTransitivity(parentScope, childScope string) (string, bool) {
	if childScope == "" {
		childScope = "compile"
	}
	switch parentScope {
	case "", "compile":
		return childScope, true
	case "runtime":
		if childScope == "compile" {
			return "runtime", true
		}
		if childScope == "runtime" {
			return "runtime", true
		}
		return "", false
	case "provided":
		if childScope == "compile" || childScope == "runtime" {
			return "provided", true
		}
		return "", false
	case "test":
		if childScope == "compile" || childScope == "runtime" {
			return "test", true
		}
		return "", false
	default:
		return "", false
	}
}

// excludedFromTransitivity reports whether a dependency's scope/optional
// flag excludes it from transitive expansion, per spec.md §4.5, unless
// includeOptional overrides the optional check.
func excludedFromTransitivity(d Dependency, includeOptional bool) bool {
	if d.Optional && !includeOptional {
		return true
	}
	switch d.Scope {
	case "test", "provided", "system":
		return true
	default:
		return false
	}
}

// ClosureOptions configures Closure.
type ClosureOptions struct {
	MaxDepth        int
	IncludeOptional bool
}

// ResolvedNode is one entry in a Maven transitive closure.
type ResolvedNode struct {
	Coord     string
	Version   string
	Scope     string
	Packaging string
	Depth     int
}

// Closure computes the full transitive dependency closure of pkg@version
// using the shared BFS/Skipper kernel, implementing Maven's
// nearest-definition-wins rule (spec.md §4.5): for each dequeued
// dependency, the Skipper decides whether to emit, skip, or record a
// version conflict, with ties broken by (depth, sequence).
func (r HTTPRegistry) Closure(ctx context.Context, pkg, version string, opts ClosureOptions) (flat []ResolvedNode, conflicts []resolve.Conflict, failed []string, err error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 20
	}
	skipper := resolve.New(maxDepth)

	rootPOM, rerr := r.resolveEffective(ctx, pkg, version, map[string]bool{})
	if rerr != nil {
		return nil, nil, nil, rerr
	}
	skipper.RecordResolved(pkg, version, 0, -1)

	var roots []resolve.Candidate
	seq := 0
	for _, d := range rootPOM.Dependencies {
		if excludedFromTransitivity(d, opts.IncludeOptional) {
			continue
		}
		d = resolveManagedVersion(d, rootPOM.DependencyManagement)
		roots = append(roots, resolve.Candidate{
			Name: d.Coord(), Version: simplifyVersionRange(d.Version), Depth: 1, Sequence: seq,
			ParentPath: []string{pkg},
		})
		seq++
	}

	type node struct {
		pom *EffectivePOM
	}
	edges, bfsFailed := resolve.BFS(ctx, skipper, roots, parallel.DefaultLimit, func(ctx context.Context, c resolve.Candidate) (node, []resolve.Candidate, error) {
		epom, eerr := r.resolveEffective(ctx, c.Name, c.Version, map[string]bool{})
		if eerr != nil {
			return node{}, nil, eerr
		}
		var children []resolve.Candidate
		for _, d := range epom.Dependencies {
			if excludedFromTransitivity(d, opts.IncludeOptional) {
				continue
			}
			d = resolveManagedVersion(d, epom.DependencyManagement)
			children = append(children, resolve.Candidate{Name: d.Coord(), Version: simplifyVersionRange(d.Version)})
		}
		return node{pom: epom}, children, nil
	})
	// BFS claims each level's candidates serially, so a diamond normally
	// yields one Edge per name; if Decide's ForceResolution path re-expands
	// a name, its earlier Edge stays in the slice. Emit
	// exactly one ResolvedNode per name, chosen to match the Skipper's
	// final (authoritative) winning version, per spec.md's "at most one
	// node per (ecosystem, name)" invariant.
	seen := map[string]bool{}
	for _, e := range edges {
		if seen[e.Candidate.Name] {
			continue
		}
		winner, ok := skipper.GetResolvedVersion(e.Candidate.Name)
		if !ok || winner != e.Candidate.Version {
			continue
		}
		seen[e.Candidate.Name] = true
		packaging := "jar"
		if e.Node.pom != nil && e.Node.pom.Packaging != "" {
			packaging = e.Node.pom.Packaging
		}
		flat = append(flat, ResolvedNode{Coord: e.Candidate.Name, Version: e.Candidate.Version, Depth: e.Candidate.Depth, Packaging: packaging})
	}
	for _, c := range bfsFailed {
		failed = append(failed, c.Name)
	}
	return flat, skipper.Conflicts(), failed, nil
}

// resolveManagedVersion fills in a dependency's version from
// dependencyManagement when the dependency itself omits one, per spec.md's
// "first definition wins (nearest)" rule -- the management map here is
// already nearest-wins merged by resolveEffective.
func resolveManagedVersion(d Dependency, mgmt map[string]Dependency) Dependency {
	if d.Version == "" {
		if m, ok := mgmt[d.Coord()]; ok {
			d.Version = m.Version
			if d.Scope == "" {
				d.Scope = m.Scope
			}
		}
	}
	return d
}
