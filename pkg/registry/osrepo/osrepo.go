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

// Package osrepo wraps the apt/yum/apk adapters behind one
// ecosystem-agnostic Downloader facade (spec.md §4.8's shared contract),
// translating each adapter's bespoke Package/Index types into the courier
// value types the download orchestrator consumes. apt, yum, and apk each
// parse a different index format (control stanzas, repomd/primary XML,
// K:value lines) and so keep their own concrete Index type; osrepo is
// where that divergence collapses back into one shape.
package osrepo

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/pkg/errors"
)

// Downloader is the shared contract every OS-package ecosystem adapter
// implements: search the index, resolve a transitive closure, and stream
// a resolved package's artifact.
type Downloader interface {
	Search(ctx context.Context, query string) ([]courier.ResolvedPackage, error)
	ResolveDependencies(ctx context.Context, name string) (*courier.GraphResult, error)
	Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error)
}

// onceIndex memoizes a lazily-fetched package index behind a single
// network round trip, shared by all three Downloader implementations
// since each backs onto one (possibly large) index document.
type onceIndex[T any] struct {
	mu    sync.Mutex
	value *T
	err   error
	fetch func(ctx context.Context) (*T, error)
}

func (o *onceIndex[T]) get(ctx context.Context) (*T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.value != nil || o.err != nil {
		return o.value, o.err
	}
	o.value, o.err = o.fetch(ctx)
	return o.value, o.err
}

func searchByName[P any](names []string, lookup func(string) []P, query string, toResult func(P) courier.ResolvedPackage) []courier.ResolvedPackage {
	var out []courier.ResolvedPackage
	ql := strings.ToLower(query)
	for _, name := range names {
		if !strings.Contains(strings.ToLower(name), ql) {
			continue
		}
		for _, p := range lookup(name) {
			out = append(out, toResult(p))
		}
	}
	return out
}

// failedRefs converts a Closure's flat list of unresolved names into
// courier.FailedRef entries for courier.GraphResult.Failed, rather than
// failing the whole resolution: a partially-satisfied OS-package closure
// is still useful to a caller deciding what to download.
func failedRefs(eco courier.Ecosystem, names []string) []courier.FailedRef {
	var out []courier.FailedRef
	for _, name := range names {
		out = append(out, courier.FailedRef{
			Ref: courier.PackageRef{Ecosystem: eco, Name: name},
			Err: errors.Errorf("%s: no package named %q in index", eco, name),
		})
	}
	return out
}
