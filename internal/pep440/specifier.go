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

package pep440

import (
	"strings"

	"github.com/pkg/errors"
)

// Specifier is a single version constraint, e.g. ">=1.2,<2.0" split into
// one Specifier per comma-separated clause.
type Specifier struct {
	Op      string // ==, !=, <=, >=, <, >, ~=, ===
	Version string
}

// SpecifierSet is a set of clauses joined by comma (AND) or, as a whole
// alternative set, separated by pipe (OR) -- e.g. ">=1.0,<2.0|>=3.0".
type SpecifierSet struct {
	// Groups are OR'd together; a version matches the set if it matches
	// any group. Within a group, every Specifier must match (AND).
	Groups [][]Specifier
}

var opPrefixes = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// ParseSpecifierSet parses a specifier string as described in spec.md:
// comma-separated clauses AND'd together, pipe-separated alternative sets
// OR'd together.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SpecifierSet{}, nil
	}
	var set SpecifierSet
	for _, orPart := range strings.Split(s, "|") {
		var group []Specifier
		for _, clause := range strings.Split(orPart, ",") {
			clause = strings.TrimSpace(clause)
			if clause == "" {
				continue
			}
			spec, err := parseSpecifier(clause)
			if err != nil {
				return SpecifierSet{}, err
			}
			group = append(group, spec)
		}
		set.Groups = append(set.Groups, group)
	}
	return set, nil
}

func parseSpecifier(s string) (Specifier, error) {
	for _, op := range opPrefixes {
		if strings.HasPrefix(s, op) {
			return Specifier{Op: op, Version: strings.TrimSpace(s[len(op):])}, nil
		}
	}
	return Specifier{}, errors.Errorf("unrecognized version specifier: %q", s)
}

// Matches reports whether version satisfies the set (any OR'd group fully matches).
func (set SpecifierSet) Matches(version string) bool {
	if len(set.Groups) == 0 {
		return true
	}
	for _, group := range set.Groups {
		if groupMatches(group, version) {
			return true
		}
	}
	return false
}

func groupMatches(group []Specifier, version string) bool {
	for _, spec := range group {
		if !spec.Matches(version) {
			return false
		}
	}
	return true
}

// Matches reports whether version satisfies this single clause.
func (s Specifier) Matches(version string) bool {
	if strings.HasSuffix(s.Version, ".*") {
		return matchesWildcard(s.Op, strings.TrimSuffix(s.Version, ".*"), version)
	}
	switch s.Op {
	case "==", "===":
		return Cmp(version, s.Version) == 0
	case "!=":
		return Cmp(version, s.Version) != 0
	case "<=":
		return Cmp(version, s.Version) <= 0
	case ">=":
		return Cmp(version, s.Version) >= 0
	case "<":
		return Cmp(version, s.Version) < 0
	case ">":
		return Cmp(version, s.Version) > 0
	case "~=":
		return matchesCompatible(s.Version, version)
	default:
		return false
	}
}

// matchesWildcard implements "==1.2.*" / "!=1.2.*": every version whose
// release prefix matches the given prefix (ignoring pre/post/dev/local
// suffixes on the candidate, since a wildcard clause intentionally admits
// those).
func matchesWildcard(op, prefix, version string) bool {
	v, err := New(version)
	if err != nil {
		return false
	}
	prefixParts := strings.Split(prefix, ".")
	matched := len(v.Release) >= len(prefixParts)
	if matched {
		for i, p := range prefixParts {
			if itoa(v.Release[i]) != p {
				matched = false
				break
			}
		}
	}
	if op == "!=" {
		return !matched
	}
	return matched
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

// matchesCompatible implements "~=" (PEP 440 compatible release): ~=X.Y
// means >=X.Y,==X.* -- i.e. the version must be at least the given
// version and share every release segment except the last.
func matchesCompatible(base, version string) bool {
	bv, err := New(base)
	if err != nil || len(bv.Release) < 2 {
		return false
	}
	prefix := bv.Release[:len(bv.Release)-1]
	vv, err := New(version)
	if err != nil || len(vv.Release) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if vv.Release[i] != p {
			return false
		}
	}
	return Cmp(version, base) >= 0
}
