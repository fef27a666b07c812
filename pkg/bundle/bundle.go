// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package bundle assembles the output-bundle layout spec.md §6 describes:
// the downloaded packages/ tree pkg/orchestrator already wrote, plus
// generated install.sh/install.ps1 driver scripts, optionally archived
// into a single .zip or .tar.gz.
package bundle

import (
	"path/filepath"
	"strconv"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
)

// maxPathLength is the Windows MAX_PATH limit install scripts and the
// Maven `.m2` layout can exceed with deeply nested group IDs.
const maxPathLength = 260

// WarnIfPathTooLong returns a warning string if rel (a path relative to
// the bundle root) would exceed Windows' legacy MAX_PATH limit once
// joined under outputDir, or "" if it's within bounds. It does not fail
// the write -- the artifact is still produced -- callers surface the
// warning to the operator.
//
// Per spec.md §9/SPEC_FULL.md §8(b), this is deliberately NOT invoked by
// Maven's `.m2`-layout path builder (pkg/registry/maven/source.go's
// relPath), which generates the deepest paths in the bundle; it is only
// consulted here, in the top-level output-bundle writer.
func WarnIfPathTooLong(outputDir, rel string) string {
	full := filepath.Join(outputDir, rel)
	if len(full) > maxPathLength {
		return "path exceeds " + strconv.Itoa(maxPathLength) + " characters and may not be usable on Windows: " + full
	}
	return ""
}

// relPath returns the path (relative to the bundle's packages/ dir) pkg
// was written to, matching pkg/orchestrator's artifactFilename: Maven's
// Meta["relPath"] takes precedence over a flat Meta["filename"].
func relPath(pkg courier.ResolvedPackage) string {
	if rp, ok := pkg.Meta["relPath"].(string); ok && rp != "" {
		return rp
	}
	if fn, ok := pkg.Meta["filename"].(string); ok && fn != "" {
		return fn
	}
	base := pkg.Name
	if pkg.ResolvedVersion != "" {
		base += "-" + pkg.ResolvedVersion
	}
	return base
}

// groupByEcosystem buckets pkgs by ecosystem, preserving each bucket's
// relative order, for the per-ecosystem sections spec.md §6 describes.
func groupByEcosystem(pkgs []courier.ResolvedPackage) map[courier.Ecosystem][]courier.ResolvedPackage {
	grouped := make(map[courier.Ecosystem][]courier.ResolvedPackage)
	for _, p := range pkgs {
		grouped[p.Ecosystem] = append(grouped[p.Ecosystem], p)
	}
	return grouped
}
