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

// Package yum provides an interface with YUM/DNF repositories: repomd.xml
// metadata discovery, primary.xml package listing, and RPM artifact
// download.
package yum

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/pkg/errors"
)

var registryURL = "https://dl.fedoraproject.org/pub/fedora/linux"

// Registry is a YUM/DNF repository.
type Registry interface {
	Primary(ctx context.Context, releasever, arch string) (*Index, error)
	Artifact(ctx context.Context, location string) (io.ReadCloser, error)
}

// HTTPRegistry is a Registry implementation speaking the plain repodata/
// layout (repomd.xml pointing at a gzipped primary.xml).
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

// repomd is the subset of repomd.xml identifying the primary.xml location.
type repomd struct {
	XMLName xml.Name `xml:"repomd"`
	Data    []struct {
		Type     string `xml:"type,attr"`
		Location struct {
			Href string `xml:"href,attr"`
		} `xml:"location"`
	} `xml:"data"`
}

func (m repomd) primaryHref() (string, bool) {
	for _, d := range m.Data {
		if d.Type == "primary" {
			return d.Location.Href, true
		}
	}
	return "", false
}

// Primary fetches repomd.xml, follows its "primary" data entry, and parses
// the referenced (gzip-compressed) primary.xml package listing.
func (r HTTPRegistry) Primary(ctx context.Context, releasever, arch string) (*Index, error) {
	base := fmt.Sprintf("%s/releases/%s/Everything/%s/os", registryURL, releasever, arch)
	rc, err := r.get(ctx, base+"/repodata/repomd.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var md repomd
	if err := xml.NewDecoder(rc).Decode(&md); err != nil {
		return nil, errors.Wrap(err, "parsing repomd.xml")
	}
	href, ok := md.primaryHref()
	if !ok {
		return nil, errors.New("repomd.xml has no primary data entry")
	}
	primaryURL := base + "/" + href
	prc, err := r.get(ctx, primaryURL)
	if err != nil {
		return nil, err
	}
	defer prc.Close()
	var body io.Reader = prc
	if strings.HasSuffix(href, ".gz") {
		gz, err := gzip.NewReader(prc)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing primary.xml")
		}
		defer gz.Close()
		body = gz
	}
	return ParsePrimary(body, base)
}

// Artifact downloads an RPM by its absolute URL (a Package's Location,
// which ParsePrimary has already resolved against the repository base URL).
func (r HTTPRegistry) Artifact(ctx context.Context, url string) (io.ReadCloser, error) {
	return r.get(ctx, url)
}
