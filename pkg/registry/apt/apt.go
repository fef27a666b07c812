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

// Package apt provides an interface with Debian/APT package archives:
// Packages index retrieval, Depends/Provides-aware dependency resolution,
// and .deb artifact download.
package apt

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

var registryURL = "https://deb.debian.org/debian"

// Registry is a Debian/APT package archive.
type Registry interface {
	Packages(ctx context.Context, component, arch string) (*Index, error)
	// Artifact fetches a .deb from its absolute URL, as built by PoolURL
	// or ArtifactURL.
	Artifact(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPRegistry is a Registry implementation speaking the plain HTTP
// archive layout (pool/ + dists/.../Packages.gz), as opposed to an
// apt-transport-https mirror requiring signature verification.
type HTTPRegistry struct {
	Client httpx.BasicClient
}

var _ Registry = &HTTPRegistry{}

func (r HTTPRegistry) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetching %s: %v", url, resp.Status)
	}
	return resp.Body, nil
}

// PoolURL returns the pool/ path for a named binary or source artifact,
// following Debian's prefix-directory convention: most packages go under
// a directory named by their first letter, but "lib*" packages are
// subdivided by their first four characters since "lib" alone would hold
// the bulk of the archive.
func PoolURL(component, name, artifact string) string {
	prefixDir := name[0:1]
	if strings.HasPrefix(name, "lib") && len(name) >= 4 {
		prefixDir = name[0:4]
	}
	return registryURL + fmt.Sprintf("/pool/%s/%s/%s/%s", component, prefixDir, name, artifact)
}

// PackagesURL returns the dists/ URL for a component's binary package
// index, per target's normalized Debian architecture.
func PackagesURL(component string, target platform.Target) string {
	return registryURL + fmt.Sprintf("/dists/stable/%s/binary-%s/Packages.gz", component, platform.DEBArch(target))
}

// Packages fetches and parses a component's binary package index.
func (r HTTPRegistry) Packages(ctx context.Context, component, arch string) (*Index, error) {
	u := registryURL + fmt.Sprintf("/dists/stable/%s/binary-%s/Packages.gz", component, arch)
	rc, err := r.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing Packages.gz")
	}
	defer gz.Close()
	return ParsePackages(gz)
}

// ArtifactName returns the conventional ".deb" basename for a resolved
// package, used together with PoolURL when the index's own Filename field
// is unavailable.
func ArtifactName(name, version, arch string) string {
	return fmt.Sprintf("%s_%s_%s.deb", name, version, arch)
}

// ArtifactURL returns the absolute URL for an archive-root-relative path,
// e.g. a Package's Filename field.
func ArtifactURL(relPath string) string {
	return registryURL + "/" + relPath
}

// Artifact downloads a .deb from its absolute URL.
func (r HTTPRegistry) Artifact(ctx context.Context, url string) (io.ReadCloser, error) {
	return r.get(ctx, url)
}
