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
	"context"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

// ResolvedDep is one entry in a Conda transitive closure.
type ResolvedDep struct {
	Channel string
	Subdir  string
	Package Package
}

// Closure resolves root (a MatchSpec string) and its transitive Depends
// against target, consulting both target's subdir and "noarch" per
// spec.md §4.4. System packages are excluded from the closure. Duplicate
// names are resolved once (first-seen wins, matching the simpler
// non-Maven Skipper variant spec.md describes for this adapter).
func (r HTTPRegistry) Closure(ctx context.Context, channel, root string, target platform.Target) (flat []ResolvedDep, failed []string, err error) {
	ms, err := ParseMatchSpec(root)
	if err != nil {
		return nil, nil, err
	}
	if ms.Channel != "" {
		channel = ms.Channel
	}
	subdir := platform.CondaSubdir(target)
	primary, perr := r.Repodata(ctx, channel, subdir)
	if perr != nil {
		return nil, nil, errors.Wrap(perr, "fetching primary repodata")
	}
	noarch, _ := r.Repodata(ctx, channel, "noarch") // best-effort; absence is not fatal

	visited := map[string]bool{}
	var walk func(spec string, depth int)
	walk = func(spec string, depth int) {
		ms, perr := ParseMatchSpec(spec)
		if perr != nil {
			failed = append(failed, spec)
			return
		}
		key := strings.ToLower(ms.Name)
		if visited[key] || IsSystemPackage(ms.Name) {
			return
		}
		visited[key] = true
		var candidates []Package
		candidates = append(candidates, primary.Candidates(ms.Name)...)
		if noarch != nil {
			candidates = append(candidates, noarch.Candidates(ms.Name)...)
		}
		best, ok := Best(ms, candidates, target.PythonVersion)
		if !ok {
			failed = append(failed, ms.Name)
			return
		}
		flat = append(flat, ResolvedDep{Channel: channel, Subdir: best.Subdir, Package: best})
		for _, dep := range best.Depends {
			walk(dep, depth+1)
		}
	}
	walk(root, 0)
	return flat, failed, nil
}
