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

// Package npmrange implements the npm semver range grammar used to
// resolve a dependency's version field against a registry's published
// versions: caret (^), tilde (~), plain comparators, hyphen ranges, "x"/"*"
// wildcards, and "||"-separated alternatives. Built on the teacher's
// internal/semver package for the underlying version parse/compare.
package npmrange

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/semver"
)

// Range is a parsed npm version range: any of the alternatives (joined by
// "||") satisfies the range if the candidate version matches it.
type Range struct {
	Alternatives [][]comparator
}

type comparator struct {
	op      string // ">=", "<=", ">", "<", "="
	version string
}

var (
	wildcardRE = regexp.MustCompile(`^(\d+|[xX*])(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?(.*)$`)
	hyphenRE   = regexp.MustCompile(`^\s*(\S+)\s+-\s+(\S+)\s*$`)
	simpleCmpRE = regexp.MustCompile(`^(>=|<=|>|<|=)?\s*(.+)$`)
)

// ParseRange parses an npm-style version range string.
func ParseRange(s string) Range {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" || strings.EqualFold(s, "latest") {
		return Range{Alternatives: [][]comparator{{{op: ">=", version: "0.0.0"}}}}
	}
	var r Range
	for _, alt := range strings.Split(s, "||") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		r.Alternatives = append(r.Alternatives, parseSimpleRange(alt))
	}
	return r
}

func parseSimpleRange(s string) []comparator {
	if m := hyphenRE.FindStringSubmatch(s); m != nil {
		return []comparator{{op: ">=", version: fillWildcard(m[1], false)}, {op: "<=", version: fillWildcard(m[2], true)}}
	}
	var cmps []comparator
	for _, field := range strings.Fields(s) {
		switch {
		case strings.HasPrefix(field, "^"):
			cmps = append(cmps, caretBounds(field[1:])...)
		case strings.HasPrefix(field, "~"):
			cmps = append(cmps, tildeBounds(field[1:])...)
		default:
			if m := simpleCmpRE.FindStringSubmatch(field); m != nil {
				op := m[1]
				if op == "" {
					op = "="
				}
				ver := m[2]
				if isWildcardVersion(ver) {
					cmps = append(cmps, wildcardBounds(ver)...)
				} else {
					cmps = append(cmps, comparator{op: op, version: ver})
				}
			}
		}
	}
	return cmps
}

func isWildcardVersion(v string) bool {
	return strings.ContainsAny(v, "xX*") || strings.Count(v, ".") < 2
}

// wildcardBounds expands a partial version like "1.2" or "1.x" into the
// [inclusive-low, exclusive-high) bounds npm's "Partial Version" rule implies.
func wildcardBounds(v string) []comparator {
	m := wildcardRE.FindStringSubmatch(v)
	if m == nil {
		return []comparator{{op: "=", version: v}}
	}
	major, minor, patch := m[1], m[2], m[3]
	if isX(minor) || minor == "" {
		return []comparator{
			{op: ">=", version: major + ".0.0"},
			{op: "<", version: incMajor(major) + ".0.0"},
		}
	}
	if isX(patch) || patch == "" {
		return []comparator{
			{op: ">=", version: major + "." + minor + ".0"},
			{op: "<", version: major + "." + incMajor(minor) + ".0"},
		}
	}
	return []comparator{{op: "=", version: major + "." + minor + "." + patch}}
}

func isX(s string) bool { return s == "x" || s == "X" || s == "*" }

func incMajor(s string) string {
	n, _ := strconv.Atoi(s)
	return strconv.Itoa(n + 1)
}

// caretBounds implements npm's "^" range: allows changes that do not
// modify the left-most non-zero digit.
func caretBounds(v string) []comparator {
	v = fillWildcard(v, false)
	parts := strings.SplitN(v, ".", 3)
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(stripPrerelease(parts[1]))
	}
	low := v
	var high string
	switch {
	case major > 0:
		high = strconv.Itoa(major+1) + ".0.0"
	case minor > 0:
		high = "0." + strconv.Itoa(minor+1) + ".0"
	default:
		patch := 0
		if len(parts) > 2 {
			patch, _ = strconv.Atoi(stripPrerelease(parts[2]))
		}
		high = "0.0." + strconv.Itoa(patch+1)
	}
	return []comparator{{op: ">=", version: low}, {op: "<", version: high}}
}

// tildeBounds implements npm's "~" range: allows patch-level changes if a
// minor version is specified, or minor-level changes if not.
func tildeBounds(v string) []comparator {
	v = fillWildcard(v, false)
	parts := strings.SplitN(v, ".", 3)
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(stripPrerelease(parts[1]))
	}
	var high string
	if len(parts) > 1 {
		high = strconv.Itoa(major) + "." + strconv.Itoa(minor+1) + ".0"
	} else {
		high = strconv.Itoa(major+1) + ".0.0"
	}
	return []comparator{{op: ">=", version: v}, {op: "<", version: high}}
}

func stripPrerelease(s string) string {
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		return s[:i]
	}
	return s
}

func fillWildcard(v string, roundUp bool) string {
	m := wildcardRE.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	major, minor, patch := m[1], m[2], m[3]
	if isX(major) || major == "" {
		major = "0"
	}
	if isX(minor) || minor == "" {
		minor = "0"
	}
	if isX(patch) || patch == "" {
		patch = "0"
	}
	return major + "." + minor + "." + patch
}

// Matches reports whether version satisfies the range.
func (r Range) Matches(version string) bool {
	v, err := semver.New(stripVPrefix(version))
	if err != nil {
		return false
	}
	for _, alt := range r.Alternatives {
		if allComparatorsMatch(alt, v) {
			return true
		}
	}
	return false
}

func stripVPrefix(s string) string { return strings.TrimPrefix(strings.TrimSpace(s), "v") }

func allComparatorsMatch(cmps []comparator, v semver.Semver) bool {
	for _, c := range cmps {
		cv, err := semver.New(stripVPrefix(c.version))
		if err != nil {
			return false
		}
		cmp := semver.Cmp(versionString(v), versionString(cv))
		switch c.op {
		case ">=":
			if cmp < 0 {
				return false
			}
		case "<=":
			if cmp > 0 {
				return false
			}
		case ">":
			if cmp <= 0 {
				return false
			}
		case "<":
			if cmp >= 0 {
				return false
			}
		case "=":
			if cmp != 0 {
				return false
			}
		}
	}
	return true
}

func versionString(v semver.Semver) string {
	s := strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Matches reports whether version satisfies the range expressed as s.
func Matches(s, version string) bool {
	return ParseRange(s).Matches(version)
}
