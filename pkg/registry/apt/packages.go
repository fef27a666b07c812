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
	"io"
	"strconv"
	"strings"

	"github.com/airgapcourier/depssmuggler/pkg/registry/apt/control"
	"github.com/pkg/errors"
)

// Package is one binary package entry from a Packages index.
type Package struct {
	Name         string
	Version      string
	Architecture string
	Filename     string
	SHA256       string
	Size         int64
	Depends      string
	PreDepends   string
	Recommends   string
	Provides     string
}

// Index is a parsed Packages file: every binary package stanza for one
// (component, architecture) pair, plus a name->package and a
// provides->providers reverse index for virtual package resolution.
type Index struct {
	Packages []Package
	byName   map[string][]Package
	provides map[string][]string
}

// ParsePackages parses a decompressed Packages file (one control stanza
// per binary package) and builds its lookup indexes.
func ParsePackages(r io.Reader) (*Index, error) {
	cf, err := control.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing Packages file")
	}
	idx := &Index{
		byName:   map[string][]Package{},
		provides: map[string][]string{},
	}
	for _, s := range cf.Stanzas {
		name := s.Get("Package")
		if name == "" {
			continue
		}
		var size int64
		if v := s.Get("Size"); v != "" {
			size, _ = strconv.ParseInt(v, 10, 64)
		}
		p := Package{
			Name:         name,
			Version:      s.Get("Version"),
			Architecture: s.Get("Architecture"),
			Filename:     s.Get("Filename"),
			SHA256:       s.Get("SHA256"),
			Size:         size,
			Depends:      s.Get("Depends"),
			PreDepends:   s.Get("Pre-Depends"),
			Recommends:   s.Get("Recommends"),
			Provides:     s.Get("Provides"),
		}
		idx.Packages = append(idx.Packages, p)
		idx.byName[name] = append(idx.byName[name], p)
		for _, provided := range splitDependList(p.Provides) {
			for _, alt := range provided {
				idx.provides[alt.Name] = append(idx.provides[alt.Name], name)
			}
		}
	}
	return idx, nil
}

// Lookup returns the known versions of a real package name.
func (idx *Index) Lookup(name string) []Package {
	return idx.byName[name]
}

// Providers returns the real package names that declare Provides: name,
// for resolving a virtual package reference per spec.md §4.8.
func (idx *Index) Providers(name string) []string {
	return idx.provides[name]
}

// Dependency is one alternative in a Depends/Pre-Depends clause: a
// package name with an optional version constraint (e.g. ">= 1.2.3").
type Dependency struct {
	Name    string
	Op      string
	Version string
}

// splitDependList parses a comma-separated Depends-style field into its
// clauses, each of which is itself a "|"-separated list of alternatives
// satisfying the clause (spec.md §4.8's "first satisfiable alternative
// wins" rule).
func splitDependList(field string) [][]Dependency {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var clauses [][]Dependency
	for _, clause := range strings.Split(field, ",") {
		var alts []Dependency
		for _, alt := range strings.Split(clause, "|") {
			if d, ok := parseDependency(alt); ok {
				alts = append(alts, d)
			}
		}
		if len(alts) > 0 {
			clauses = append(clauses, alts)
		}
	}
	return clauses
}

// parseDependency parses one alternative, e.g. "libc6 (>= 2.17)" or
// "libfoo2:amd64". Architecture qualifiers (":amd64") are stripped since
// Index is already scoped to a single architecture.
func parseDependency(s string) (Dependency, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dependency{}, false
	}
	name := s
	var op, version string
	if i := strings.Index(s, "("); i >= 0 {
		name = strings.TrimSpace(s[:i])
		constraint := strings.TrimSuffix(strings.TrimSpace(s[i+1:]), ")")
		fields := strings.SplitN(constraint, " ", 2)
		if len(fields) == 2 {
			op, version = fields[0], strings.TrimSpace(fields[1])
		}
	}
	if j := strings.Index(name, ":"); j >= 0 {
		name = name[:j]
	}
	return Dependency{Name: name, Op: op, Version: version}, true
}
