// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the one seam every ecosystem-specific adapter
// package (pypi, npm, maven, docker, conda, and osrepo's apt/yum/apk
// facade) shares: a uniform way to search a catalog. Resolution and
// download stay ecosystem-specific (different adapters need different
// extra parameters -- a target platform, a Python version, an OCI
// architecture) so they aren't forced into one interface here.
package registry

import (
	"context"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
)

// Searcher looks up candidate packages by name within one ecosystem's
// catalog, per spec.md §4.9's common `search(query, matchType, limit)`
// contract (matchType/limit are adapter-specific refinements layered on
// top by callers). Matching differs by adapter: pypi matches a name
// prefix, the apt/yum/apk facades match a substring, and maven, npm,
// conda and docker return only an exact name or reference.
type Searcher interface {
	Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error)
}
