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

// Package condaver compares Conda package versions and build strings, per
// the candidate ordering spec.md lays out for repodata resolution:
// version descending, then build number descending, then timestamp
// descending (timestamp ordering is the caller's concern -- repodata
// already carries it numerically).
package condaver

import (
	"cmp"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// qualifierRank mirrors Conda's component ordering: dev releases sort
// before alpha, which sorts before beta, before rc, before the bare
// release, before post.
var qualifierRank = map[string]int{
	"dev":   -4,
	"alpha": -3,
	"a":     -3,
	"beta":  -2,
	"b":     -2,
	"rc":    -1,
	"c":     -1,
	"":      0,
	"post":  1,
}

func rank(q string) int {
	if r, ok := qualifierRank[strings.ToLower(q)]; ok {
		return r
	}
	return 0
}

type component struct {
	numeric bool
	num     int64
	str     string
}

var splitRE = regexp.MustCompile(`[.+]`)

func parseComponents(v string) []component {
	var comps []component
	// Epoch prefix "N!" sorts ahead of everything else, handled as the
	// first synthetic numeric component.
	epoch := int64(0)
	if i := strings.IndexByte(v, '!'); i >= 0 {
		if n, err := strconv.ParseInt(v[:i], 10, 64); err == nil {
			epoch = n
			v = v[i+1:]
		}
	}
	comps = append(comps, component{numeric: true, num: epoch})
	for _, part := range splitRE.Split(v, -1) {
		comps = append(comps, tokenizePart(part)...)
	}
	return comps
}

var alnumBoundaryRE = regexp.MustCompile(`[0-9]+|[^0-9]+`)

func tokenizePart(part string) []component {
	var out []component
	for _, m := range alnumBoundaryRE.FindAllString(part, -1) {
		if n, err := strconv.ParseInt(m, 10, 64); err == nil {
			out = append(out, component{numeric: true, num: n})
		} else {
			out = append(out, component{str: strings.ToLower(m)})
		}
	}
	return out
}

// Cmp compares two Conda version strings, returning -1, 0, or 1.
func Cmp(a, b string) int {
	ac, bc := parseComponents(a), parseComponents(b)
	n := max(len(ac), len(bc))
	for i := 0; i < n; i++ {
		var x, y component
		if i < len(ac) {
			x = ac[i]
		}
		if i < len(bc) {
			y = bc[i]
		}
		if c := cmpComponent(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func cmpComponent(a, b component) int {
	switch {
	case a.numeric && b.numeric:
		return cmp.Compare(a.num, b.num)
	case a.numeric && !b.numeric:
		// A numeric component outranks a missing or qualifier one
		// (e.g. "1.0.1" > "1.0", "1.0" > "1.0a") unless the
		// qualifier is "post", which outranks the bare release.
		if rank(b.str) > rank("") {
			return -1
		}
		return 1
	case !a.numeric && b.numeric:
		if rank(a.str) > rank("") {
			return 1
		}
		return -1
	default:
		if a.str == b.str {
			return 0
		}
		if ra, rb := rank(a.str), rank(b.str); ra != rb {
			return cmp.Compare(ra, rb)
		}
		return strings.Compare(a.str, b.str)
	}
}

// BuildNumber extracts the trailing integer from a Conda build string
// (e.g. "py310h1234_2" -> 2, "0" -> 0), used as the tiebreak after
// version comparison per spec.md's candidate ordering.
func BuildNumber(build string) int {
	i := len(build)
	for i > 0 && build[i-1] >= '0' && build[i-1] <= '9' {
		i--
	}
	if i == len(build) {
		return 0
	}
	n, _ := strconv.Atoi(build[i:])
	return n
}

// BuildCmp compares two build strings by their trailing build number.
func BuildCmp(a, b string) int {
	return cmp.Compare(BuildNumber(a), BuildNumber(b))
}

// MatchSpec is a parsed Conda match specification:
// "channel::name[version-spec][=build]".
type MatchSpec struct {
	Channel string
	Name    string
	Version string // may contain wildcards/ranges/comma-AND/pipe-OR
	Build   string
}

var matchSpecRE = regexp.MustCompile(`^(?:(?P<channel>[^:]+)::)?(?P<name>[A-Za-z0-9_.\-]+)(?:\s*(?P<version>(?:[<>!~]=|==|[<>])?[^=\s,|]+(?:[,|](?:[<>!~]=|==|[<>])?[^=\s,|]+)*))?(?:=(?P<build>[^=\s]+))?$`)

// ParseMatchSpec parses a Conda MatchSpec string.
func ParseMatchSpec(s string) (MatchSpec, error) {
	m := matchSpecRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return MatchSpec{}, errors.Errorf("invalid conda match spec: %q", s)
	}
	idx := func(name string) string { return m[matchSpecRE.SubexpIndex(name)] }
	return MatchSpec{
		Channel: idx("channel"),
		Name:    idx("name"),
		Version: idx("version"),
		Build:   idx("build"),
	}, nil
}
