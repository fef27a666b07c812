// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package npm

import (
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/npmrange"
	"github.com/airgapcourier/depssmuggler/internal/semver"
	"github.com/pkg/errors"
)

// ResolveVersion picks the concrete version of pkg satisfying spec out of a
// packument's published versions, per spec.md §4.6: the "latest" dist-tag
// resolves directly (DistTags carries only latest, so other tags such as
// "next" are not recognized); exact versions resolve to themselves if
// present; everything else is treated as a semver range, picking the
// highest matching version. A prerelease version only satisfies a range
// that itself names a prerelease on the same major.minor.patch -- npm never
// lets a plain range silently pick up a prerelease.
func ResolveVersion(pkg *NPMPackage, spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = "latest"
	}
	if v, ok := distTag(pkg, spec); ok {
		return v, nil
	}
	if _, ok := pkg.Versions[spec]; ok {
		return spec, nil
	}
	rng := npmrange.ParseRange(spec)
	var best string
	var bestSV semver.Semver
	for v := range pkg.Versions {
		if !rng.Matches(v) {
			continue
		}
		sv, err := semver.New(strings.TrimPrefix(v, "v"))
		if err != nil {
			continue
		}
		if sv.Prerelease != "" && !rangeAllowsPrerelease(spec, sv) {
			continue
		}
		if best == "" || semver.Cmp(v, best) > 0 {
			best, bestSV = v, sv
		}
	}
	if best == "" {
		return "", errors.Errorf("no version of %s satisfies %q", pkg.Name, spec)
	}
	_ = bestSV
	return best, nil
}

func distTag(pkg *NPMPackage, tag string) (string, bool) {
	switch tag {
	case "latest":
		if pkg.DistTags.Latest != "" {
			return pkg.DistTags.Latest, true
		}
	}
	return "", false
}

// rangeAllowsPrerelease reports whether spec explicitly names a prerelease
// matching the same major.minor.patch as candidate, the one case npm's
// range grammar allows a prerelease version to satisfy a range.
func rangeAllowsPrerelease(spec string, candidate semver.Semver) bool {
	for _, field := range strings.Fields(spec) {
		field = strings.TrimLeft(field, "^~><=")
		if !strings.Contains(field, "-") {
			continue
		}
		sv, err := semver.New(strings.TrimPrefix(field, "v"))
		if err != nil {
			continue
		}
		if sv.Major == candidate.Major && sv.Minor == candidate.Minor && sv.Patch == candidate.Patch {
			return true
		}
	}
	return false
}
