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

// Package apk provides an interface with Alpine APK repositories:
// APKINDEX.tar.gz retrieval, its "K:value" stanza format, and package
// download.
package apk

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	"github.com/pkg/errors"
)

var registryURL = "https://dl-cdn.alpinelinux.org/alpine"

// Registry is an Alpine APK repository.
type Registry interface {
	Index(ctx context.Context, branch, repo, arch string) (*Index, error)
	Artifact(ctx context.Context, branch, repo, arch, filename string) (io.ReadCloser, error)
}

// HTTPRegistry is a Registry implementation speaking the plain
// dl-cdn.alpinelinux.org layout.
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

// repoURL returns a (branch, repo, arch) tuple's base directory, e.g.
// https://dl-cdn.alpinelinux.org/alpine/v3.20/main/x86_64.
func repoURL(branch, repo, arch string) string {
	return fmt.Sprintf("%s/%s/%s/%s", registryURL, branch, repo, arch)
}

// ArtifactArch maps a platform.Target to Alpine's architecture naming
// (x86_64, aarch64, x86); any other arch is returned as NormalizeArch
// gives it.
func ArtifactArch(target platform.Target) string {
	switch arch := platform.NormalizeArch(target.Arch); arch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x86"
	default:
		return arch
	}
}

// Index fetches and extracts APKINDEX from the tar.gz bundle at
// <repoURL>/APKINDEX.tar.gz, then parses its "K:value" stanzas.
func (r HTTPRegistry) Index(ctx context.Context, branch, repo, arch string) (*Index, error) {
	rc, err := r.get(ctx, repoURL(branch, repo, arch)+"/APKINDEX.tar.gz")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing APKINDEX.tar.gz")
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, errors.New("APKINDEX.tar.gz has no APKINDEX entry")
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading APKINDEX.tar.gz")
		}
		if hdr.Name == "APKINDEX" {
			return ParseIndex(tr)
		}
	}
}

// Artifact downloads a .apk by its filename, as given by a Package's
// Filename field.
func (r HTTPRegistry) Artifact(ctx context.Context, branch, repo, arch, filename string) (io.ReadCloser, error) {
	return r.get(ctx, repoURL(branch, repo, arch)+"/"+filename)
}
