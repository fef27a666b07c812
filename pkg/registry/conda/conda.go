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

// Package conda provides an interface with Conda channels (anaconda.org)
// and their repodata.json metadata format.
package conda

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/condaver"
	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/urlx"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

var channelURL = urlx.MustParse("https://conda.anaconda.org/")

// Package is a single entry in a channel's repodata.json, keyed by its
// filename (e.g. "numpy-1.26.0-py310h1234_0.conda").
type Package struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Build      string   `json:"build"`
	BuildNum   int      `json:"build_number"`
	Depends    []string `json:"depends"`
	Constrains []string `json:"constrains"`
	Timestamp  int64    `json:"timestamp"`
	Subdir     string   `json:"subdir"`
	MD5        string   `json:"md5"`
	SHA256     string   `json:"sha256"`
	Size       int64    `json:"size"`

	Filename string `json:"-"`
}

// Repodata is a parsed channel/subdir repodata snapshot.
type Repodata struct {
	Info struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	Packages    map[string]Package `json:"packages"`
	PackagesCnd map[string]Package `json:"packages.conda"`

	// index is a name -> candidates lookup built once after decode, per
	// spec.md §4.4: "without this index, search degenerates to full-map
	// scan per dependency".
	index map[string][]Package
}

func (r *Repodata) buildIndex() {
	r.index = make(map[string][]Package)
	add := func(m map[string]Package) {
		for filename, p := range m {
			p.Filename = filename
			r.index[p.Name] = append(r.index[p.Name], p)
		}
	}
	add(r.Packages)
	add(r.PackagesCnd)
}

// Candidates returns every known build of name in the repodata.
func (r *Repodata) Candidates(name string) []Package {
	return r.index[name]
}

// systemPackages are excluded from transitive closures per spec.md §4.4 --
// these are assumed already present on any target and pulling them in
// explodes the closure for no benefit to an air-gapped bundle.
var systemPackages = map[string]bool{
	"python":         true,
	"libgcc-ng":      true,
	"libstdcxx-ng":   true,
	"openssl":        true,
	"ca-certificates": true,
	"__glibc":        true,
	"__unix":         true,
	"__linux":        true,
	"__osx":          true,
	"__win":          true,
	"__cuda":         true,
	"_libgcc_mutex":  true,
	"_openmp_mutex":  true,
	"bzip2":          true,
	"tk":             true,
	"tzdata":         true,
}

// IsSystemPackage reports whether name is excluded from transitive closure
// computation as an assumed-present base package.
func IsSystemPackage(name string) bool { return systemPackages[name] }

// Registry is a Conda channel registry.
type Registry interface {
	Repodata(ctx context.Context, channel, subdir string) (*Repodata, error)
	Artifact(ctx context.Context, channel, subdir, filename string) (io.ReadCloser, error)
}

// HTTPRegistry is a Registry implementation backed by conda.anaconda.org.
type HTTPRegistry struct {
	Client httpx.BasicClient
}

var _ Registry = &HTTPRegistry{}

// Repodata fetches and parses (channel, subdir)'s repodata, trying
// repodata.json.zst, then current_repodata.json, then repodata.json in
// that order, per spec.md §4.4. The returned Repodata has its name index
// already built.
func (r HTTPRegistry) Repodata(ctx context.Context, channel, subdir string) (*Repodata, error) {
	base := channelURL.ResolveReference(urlx.MustParse(path.Join(channel, subdir) + "/"))
	var lastErr error
	for _, candidate := range []struct {
		name string
		zstd bool
	}{
		{"repodata.json.zst", true},
		{"current_repodata.json", false},
		{"repodata.json", false},
	} {
		u := base.ResolveReference(urlx.MustParse(candidate.name))
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		resp, err := r.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = errors.Errorf("conda registry error: %v", resp.Status)
			continue
		}
		defer resp.Body.Close()
		var body io.Reader = resp.Body
		if candidate.zstd {
			zr, err := zstd.NewReader(resp.Body)
			if err != nil {
				return nil, errors.Wrap(err, "initializing zstd reader")
			}
			defer zr.Close()
			body = zr.IOReadCloser()
		}
		var rd Repodata
		if err := json.NewDecoder(body).Decode(&rd); err != nil {
			lastErr = err
			continue
		}
		if rd.Info.Subdir == "" {
			rd.Info.Subdir = subdir
		}
		rd.buildIndex()
		return &rd, nil
	}
	if lastErr == nil {
		lastErr = errors.Errorf("no repodata found for %s/%s", channel, subdir)
	}
	return nil, lastErr
}

// Artifact downloads a single package file from the channel's subdir.
func (r HTTPRegistry) Artifact(ctx context.Context, channel, subdir, filename string) (io.ReadCloser, error) {
	u := channelURL.ResolveReference(urlx.MustParse(path.Join(channel, subdir, filename)))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetching artifact: %v", resp.Status)
	}
	return resp.Body, nil
}

// URL returns the download URL for a package file without fetching it,
// used by the orchestrator to populate courier.ResolvedPackage.URL.
func URL(channel, subdir, filename string) string {
	return channelURL.ResolveReference(urlx.MustParse(path.Join(channel, subdir, filename))).String()
}

// Best selects the preferred candidate out of candidates for the given
// MatchSpec and an optional pinned Python version, per spec.md §4.4's
// candidate ordering: python-ABI match first (if pythonVersion is set) >
// version descending > build number descending > timestamp descending.
func Best(spec MatchSpec, candidates []Package, pythonVersion string) (Package, bool) {
	var matching []Package
	for _, p := range candidates {
		if spec.Matches(p) {
			matching = append(matching, p)
		}
	}
	if len(matching) == 0 {
		return Package{}, false
	}
	pyTag := ""
	if pythonVersion != "" {
		pyTag = "py" + strings.ReplaceAll(pythonVersion, ".", "")
	}
	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		if pyTag != "" {
			am, bm := strings.Contains(a.Build, pyTag), strings.Contains(b.Build, pyTag)
			if am != bm {
				return am
			}
		}
		if c := condaver.Cmp(a.Version, b.Version); c != 0 {
			return c > 0
		}
		if a.BuildNum != b.BuildNum {
			return a.BuildNum > b.BuildNum
		}
		return a.Timestamp > b.Timestamp
	})
	return matching[0], true
}
