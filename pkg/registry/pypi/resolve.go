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
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/pep440"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

// SelectArtifact picks the best artifact for target out of a release's
// files, preferring a compatible bdist_wheel over an sdist per spec.md
// §4.3: universal wheels first, then platform/arch/python-tag matches,
// falling back to sdist if nothing wheels-shaped fits.
func SelectArtifact(target platform.Target, artifacts []Artifact) (Artifact, bool) {
	var wheels, sdists []Artifact
	for _, a := range artifacts {
		switch a.PackageType {
		case "bdist_wheel":
			wheels = append(wheels, a)
		case "sdist":
			sdists = append(sdists, a)
		}
	}
	// Universal wheels take priority over anything platform-specific.
	for _, a := range wheels {
		tags := parseWheelTags(a.Filename)
		if tags.platform == "any" {
			return a, true
		}
	}
	for _, a := range wheels {
		tags := parseWheelTags(a.Filename)
		if tags.platform != "any" &&
			platform.MatchesWheelPlatformTag(target, tags.platform) &&
			platform.MatchesPythonTag(target, tags.pyTag) {
			return a, true
		}
	}
	if len(sdists) > 0 {
		return sdists[0], true
	}
	return Artifact{}, false
}

// wheelTags is the parsed {dist}-{version}(-{build})?-{python tag}-{abi
// tag}-{platform tag}.whl filename per the wheel spec.
type wheelTags struct {
	pyTag    string
	abiTag   string
	platform string
}

func parseWheelTags(filename string) wheelTags {
	name := strings.TrimSuffix(filename, ".whl")
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return wheelTags{}
	}
	// Last three dash-separated fields are always pyTag-abiTag-platform,
	// regardless of how many dashes the distribution name/version/build
	// contain before them.
	n := len(parts)
	return wheelTags{pyTag: parts[n-3], abiTag: parts[n-2], platform: parts[n-1]}
}

// Search returns project names from the cached PyPI simple index that
// begin with prefix. The index is fetched lazily on first use and kept for
// the life of the HTTPRegistry; if the index cannot be fetched, Search
// falls back to an exact lookup against the JSON API so a search for a
// known name still succeeds.
func (r *HTTPRegistry) Search(ctx context.Context, prefix string) ([]string, error) {
	if err := r.ensureIndex(ctx); err != nil {
		// Degrade to a direct exact-name probe rather than failing the
		// whole search, since the simple index is a large, optional
		// convenience fetch.
		if _, perr := r.Project(ctx, prefix); perr == nil {
			return []string{prefix}, nil
		}
		return nil, err
	}
	var out []string
	for _, name := range r.index {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *HTTPRegistry) ensureIndex(ctx context.Context) error {
	r.indexOnce.Do(func() {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, registryURL.String()+"/simple/", nil)
		resp, err := r.Client.Do(req)
		if err != nil {
			r.indexErr = err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != 200 {
			r.indexErr = errors.Errorf("pypi simple index error: %v", resp.Status)
			return
		}
		r.index = parseSimpleIndex(resp.Body)
	})
	return r.indexErr
}

// Closure recursively resolves requires_dist entries against the target
// platform, choosing for each dependency the latest published version
// satisfying its specifier.
func (r *HTTPRegistry) Closure(ctx context.Context, name, version string, target platform.Target) (flat []ResolvedDep, failed []string, err error) {
	visited := map[string]bool{}
	var walk func(name, spec string, depth int)
	walk = func(name, spec string, depth int) {
		key := strings.ToLower(name)
		if visited[key] {
			return
		}
		proj, err := r.Project(ctx, name)
		if err != nil {
			failed = append(failed, name)
			return
		}
		v, err := bestVersion(proj, spec)
		if err != nil {
			failed = append(failed, name)
			return
		}
		visited[key] = true
		rel, err := r.Release(ctx, name, v)
		if err != nil {
			failed = append(failed, name)
			return
		}
		artifact, ok := SelectArtifact(target, rel.Artifacts)
		if !ok {
			failed = append(failed, name)
			return
		}
		flat = append(flat, ResolvedDep{Name: name, Version: v, Artifact: artifact})
		for _, req := range rel.RequiresDist {
			depName, depSpec, marker, perr := ParseRequiresDist(req)
			if perr != nil {
				continue
			}
			if !EvaluateMarker(marker, target) {
				continue
			}
			walk(depName, depSpec, depth+1)
		}
	}
	walk(name, "=="+version, 0)
	return flat, failed, nil
}

// ResolvedDep is one entry in a PyPI transitive closure.
type ResolvedDep struct {
	Name     string
	Version  string
	Artifact Artifact
}

func bestVersion(proj *Project, spec string) (string, error) {
	set, err := pep440.ParseSpecifierSet(strings.TrimPrefix(spec, "=="))
	if err != nil {
		return "", err
	}
	var candidates []string
	for v := range proj.Releases {
		if set.Matches(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return "", errors.Errorf("no version of %s satisfies %q", proj.Name, spec)
	}
	pep440.Sort(candidates)
	return candidates[len(candidates)-1], nil
}
