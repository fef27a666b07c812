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

package conda

import (
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/condaver"
)

// MatchSpec is a parsed Conda selector: "channel::name[version-spec][=build]".
// It wraps internal/condaver.MatchSpec with the version-spec evaluation
// logic that package owns structurally but not semantically.
type MatchSpec struct {
	condaver.MatchSpec
}

// ParseMatchSpec parses a MatchSpec string, defaulting Channel to
// "conda-forge" per this courier's default channel when unqualified.
func ParseMatchSpec(s string) (MatchSpec, error) {
	ms, err := condaver.ParseMatchSpec(s)
	if err != nil {
		return MatchSpec{}, err
	}
	if ms.Channel == "" {
		ms.Channel = "conda-forge"
	}
	return MatchSpec{ms}, nil
}

// Matches reports whether p satisfies the spec's name and version
// constraint. Version constraints support comma-AND ("1.20,<2"), pipe-OR
// ("1.20|1.21"), and "*" wildcards, matched against condaver's comparator.
func (m MatchSpec) Matches(p Package) bool {
	if !strings.EqualFold(m.Name, p.Name) {
		return false
	}
	if m.Build != "" && m.Build != p.Build {
		return false
	}
	if m.Version == "" {
		return true
	}
	for _, orGroup := range strings.Split(m.Version, "|") {
		if matchesAndGroup(orGroup, p.Version) {
			return true
		}
	}
	return false
}

func matchesAndGroup(group, version string) bool {
	for _, clause := range strings.Split(group, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" || clause == "*" {
			continue
		}
		if !matchesClause(clause, version) {
			return false
		}
	}
	return true
}

func matchesClause(clause, version string) bool {
	op, rhs := splitOp(clause)
	if strings.Contains(rhs, "*") {
		prefix := strings.TrimSuffix(rhs, "*")
		return strings.HasPrefix(version, prefix)
	}
	c := condaver.Cmp(version, rhs)
	switch op {
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	case "!=":
		return c != 0
	case "==", "=":
		return c == 0
	default:
		// Bare version with no operator means exact match, Conda-style.
		return condaver.Cmp(version, clause) == 0
	}
}

func splitOp(clause string) (op, rhs string) {
	for _, candidate := range []string{">=", "<=", "!=", "==", ">", "<", "="} {
		if strings.HasPrefix(clause, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(clause, candidate))
		}
	}
	return "", clause
}
