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

package pypi

import (
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

// ParseRequiresDist splits a PEP 508 requires_dist entry, e.g.
// `pywin32 (>=1.0) ; sys_platform == "win32"`, into the dependency name,
// its version specifier, and its environment marker (empty if none).
func ParseRequiresDist(s string) (name, spec, marker string, err error) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ";"); idx >= 0 {
		marker = strings.TrimSpace(s[idx+1:])
		s = strings.TrimSpace(s[:idx])
	}
	// Strip a bracketed extras list: "name[extra1,extra2] (>=1.0)".
	if idx := strings.Index(s, "["); idx >= 0 {
		end := strings.Index(s, "]")
		if end > idx {
			s = s[:idx] + s[end+1:]
		}
	}
	s = strings.TrimSpace(s)
	fields := strings.SplitN(s, " ", 2)
	name = strings.TrimSpace(fields[0])
	if name == "" {
		return "", "", "", errors.Errorf("empty dependency name in requires_dist entry: %q", s)
	}
	if len(fields) > 1 {
		spec = strings.TrimSpace(fields[1])
		spec = strings.TrimPrefix(spec, "(")
		spec = strings.TrimSuffix(spec, ")")
	}
	if spec == "" {
		spec = ">=0"
	}
	return name, spec, marker, nil
}

// EvaluateMarker evaluates a PEP 508 environment marker against target.
// Per spec.md §4.3: markers mentioning "extra" are always excluded (this
// adapter never opts into an extras group), and if target is the zero
// value and a marker is present, the dependency is skipped entirely.
// Supported comparisons cover platform_system, sys_platform, and
// platform_machine joined by "and"/"or" -- the handful of variables actual
// PyPI packages condition on for OS/arch gating.
func EvaluateMarker(marker string, target platform.Target) bool {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return true
	}
	if strings.Contains(marker, "extra") {
		return false
	}
	if target == (platform.Target{}) {
		return false
	}
	// "or" has lower precedence than "and"; evaluate at the "or" level
	// first, splitting each side on "and".
	for _, orClause := range splitTop(marker, " or ") {
		allTrue := true
		for _, andClause := range splitTop(orClause, " and ") {
			if !evalClause(strings.TrimSpace(andClause), target) {
				allTrue = false
				break
			}
		}
		if allTrue {
			return true
		}
	}
	return false
}

// splitTop trims parens from both ends of s and splits it on every
// occurrence of sep; it does not track parens or quotes -- markers in
// practice never nest parens around and/or groups in a way that would
// require a real parser for the variables this evaluator supports, so a
// straightforward split is sufficient.
func splitTop(s, sep string) []string {
	s = strings.Trim(s, "()")
	return strings.Split(s, sep)
}

func evalClause(clause string, target platform.Target) bool {
	clause = strings.Trim(clause, "()")
	var op string
	for _, candidate := range []string{"==", "!=", "in", "not in"} {
		if strings.Contains(clause, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return true // unknown/unsupported clause shape: don't block resolution on it
	}
	parts := strings.SplitN(clause, op, 2)
	if len(parts) != 2 {
		return true
	}
	variable := strings.TrimSpace(parts[0])
	value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

	var actual string
	switch variable {
	case "platform_system":
		actual = systemName(target.OS)
	case "sys_platform":
		actual = sysPlatform(target.OS)
	case "platform_machine":
		actual = target.Arch
	default:
		return true
	}
	matches := strings.EqualFold(actual, value) || equivalentArch(actual, value)
	if op == "!=" {
		return !matches
	}
	return matches
}

func systemName(os string) string {
	switch platform.NormalizeOS(os) {
	case "windows":
		return "Windows"
	case "darwin":
		return "Darwin"
	case "linux":
		return "Linux"
	default:
		return os
	}
}

func sysPlatform(os string) string {
	switch platform.NormalizeOS(os) {
	case "windows":
		return "win32"
	case "darwin":
		return "darwin"
	case "linux":
		return "linux"
	default:
		return os
	}
}

// equivalentArch treats x86_64 and amd64 as the same machine per spec.md's
// target-platform marker evaluation note.
func equivalentArch(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(s)
		if s == "x86_64" || s == "amd64" {
			return "amd64"
		}
		return s
	}
	return norm(a) == norm(b)
}
