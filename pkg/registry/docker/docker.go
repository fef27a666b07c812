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

// Package docker provides an interface with OCI/Docker image registries:
// anonymous bearer-token auth, manifest(-list) fetch, and blob download.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/httpx"
	"github.com/airgapcourier/depssmuggler/internal/platform"
	digest "github.com/opencontainers/go-digest"
	ispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// Ref is a normalized image reference: registry/namespace/repo:tag.
type Ref struct {
	Registry  string
	Namespace string
	Repo      string
	Tag       string
}

// DefaultRegistry is used when a reference doesn't name one explicitly.
const DefaultRegistry = "docker.io"

// ParseRef parses "[registry/][namespace/]repo[:tag]" per spec.md §4.7:
// unqualified names fall back to the "library/" namespace and docker.io.
func ParseRef(s string) Ref {
	ref := Ref{Registry: DefaultRegistry, Tag: "latest"}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i:], "/") {
		ref.Tag = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, "/")
	switch {
	case len(parts) == 1:
		ref.Namespace = "library"
		ref.Repo = parts[0]
	case len(parts) == 2:
		if looksLikeRegistry(parts[0]) {
			ref.Registry = parts[0]
			ref.Namespace = "library"
			ref.Repo = parts[1]
		} else {
			ref.Namespace = parts[0]
			ref.Repo = parts[1]
		}
	default:
		if looksLikeRegistry(parts[0]) {
			ref.Registry = parts[0]
			ref.Namespace = strings.Join(parts[1:len(parts)-1], "/")
			ref.Repo = parts[len(parts)-1]
		} else {
			ref.Namespace = strings.Join(parts[:len(parts)-1], "/")
			ref.Repo = parts[len(parts)-1]
		}
	}
	return ref
}

func looksLikeRegistry(s string) bool {
	return strings.Contains(s, ".") || strings.Contains(s, ":") || s == "localhost"
}

// Name returns the "namespace/repo" path used in registry API calls.
func (r Ref) Name() string { return r.Namespace + "/" + r.Repo }

// knownAuth maps a known registry host to its anonymous-token endpoint and
// the "service" query parameter it expects, per spec.md §4.7.
var knownAuth = map[string]struct{ realm, service string }{
	"docker.io":      {"https://auth.docker.io/token", "registry.docker.io"},
	"ghcr.io":        {"https://ghcr.io/token", "ghcr.io"},
	"quay.io":        {"https://quay.io/v2/auth", "quay.io"},
	"public.ecr.aws": {"https://public.ecr.aws/token", "public.ecr.aws"},
}

// apiHost returns the host manifest/blob API requests are sent to, which
// for docker.io differs from the auth host and from the registry name
// users type.
func apiHost(registry string) string {
	if registry == "docker.io" {
		return "registry-1.docker.io"
	}
	return registry
}

// Registry is an OCI/Docker registry client.
type Registry interface {
	Token(ctx context.Context, ref Ref) (string, error)
	Manifest(ctx context.Context, ref Ref, token string) (*ManifestDoc, string, error)
	Blob(ctx context.Context, ref Ref, token, digest string) (io.ReadCloser, error)
}

// HTTPRegistry is a Registry implementation speaking the OCI distribution
// HTTP API directly (no Docker daemon involved).
type HTTPRegistry struct {
	Client httpx.BasicClient
}

var _ Registry = &HTTPRegistry{}

// Token requests an anonymous bearer token scoped to "repository:<name>:pull".
// For registries not in knownAuth (custom/private mirrors), it probes an
// unauthenticated manifest request and parses the realm/service out of the
// resulting WWW-Authenticate challenge, per spec.md §4.7's Quay note
// generalized to any unlisted registry.
func (r HTTPRegistry) Token(ctx context.Context, ref Ref) (string, error) {
	auth, ok := knownAuth[ref.Registry]
	if !ok {
		probed, err := r.probeChallenge(ctx, ref)
		if err != nil {
			return "", err
		}
		auth = probed
	}
	u, _ := url.Parse(auth.realm)
	q := u.Query()
	q.Set("service", auth.service)
	q.Set("scope", fmt.Sprintf("repository:%s:pull", ref.Name()))
	u.RawQuery = q.Encode()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token request failed: %v", resp.Status)
	}
	var body struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Token != "" {
		return body.Token, nil
	}
	return body.AccessToken, nil
}

func (r HTTPRegistry) probeChallenge(ctx context.Context, ref Ref) (struct{ realm, service string }, error) {
	u := fmt.Sprintf("https://%s/v2/%s/manifests/%s", apiHost(ref.Registry), ref.Name(), ref.Tag)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := r.Client.Do(req)
	if err != nil {
		return struct{ realm, service string }{}, err
	}
	defer resp.Body.Close()
	challenge := resp.Header.Get("WWW-Authenticate")
	realm, service := parseChallenge(challenge)
	if realm == "" {
		return struct{ realm, service string }{}, errors.Errorf("no WWW-Authenticate challenge from %s", ref.Registry)
	}
	return struct{ realm, service string }{realm, service}, nil
}

// parseChallenge extracts realm= and service= from a Bearer WWW-Authenticate
// header value, e.g. `Bearer realm="https://...",service="...",scope="..."`.
func parseChallenge(header string) (realm, service string) {
	for _, field := range strings.Split(header, ",") {
		field = strings.TrimSpace(field)
		if v, ok := extractQuoted(field, "realm="); ok {
			realm = v
		}
		if v, ok := extractQuoted(field, "service="); ok {
			service = v
		}
	}
	return realm, service
}

func extractQuoted(field, prefix string) (string, bool) {
	idx := strings.Index(field, prefix)
	if idx < 0 {
		return "", false
	}
	v := field[idx+len(prefix):]
	return strings.Trim(v, `"`), true
}

// manifestMediaTypes accepts both Docker v2 and OCI media types per
// spec.md §4.7.
var manifestMediaTypes = []string{
	"application/vnd.docker.distribution.manifest.v2+json",
	"application/vnd.docker.distribution.manifest.list.v2+json",
	"application/vnd.oci.image.manifest.v1+json",
	"application/vnd.oci.image.index.v1+json",
}

// ManifestDoc wraps whichever of the two shapes a registry handed back:
// a single-platform image manifest, or a manifest list/index naming one
// descriptor per platform. Docker's schema2 and OCI's v1 manifest/index
// JSON bodies share field names closely enough to decode into the same
// github.com/opencontainers/image-spec types.
type ManifestDoc struct {
	Manifest *ispec.Manifest
	Index    *ispec.Index
}

// rawManifestProbe is decoded first to tell a manifest from an index: an
// index's top-level "manifests" array is absent from a plain manifest.
type rawManifestProbe struct {
	Manifests []ispec.Descriptor `json:"manifests"`
}

// Manifest fetches the manifest (or manifest list) for ref, returning the
// parsed body and its content digest (used to verify the manifest itself
// wasn't tampered with in transit, same as any other blob).
func (r HTTPRegistry) Manifest(ctx context.Context, ref Ref, token string) (*ManifestDoc, string, error) {
	u := fmt.Sprintf("https://%s/v2/%s/manifests/%s", apiHost(ref.Registry), ref.Name(), ref.Tag)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("Accept", strings.Join(manifestMediaTypes, ", "))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Errorf("manifest fetch failed: %v", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	var probe rawManifestProbe
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, "", errors.Wrap(err, "parsing manifest")
	}
	doc := &ManifestDoc{}
	if len(probe.Manifests) > 0 {
		doc.Index = &ispec.Index{Manifests: probe.Manifests}
	} else {
		var m ispec.Manifest
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, "", errors.Wrap(err, "parsing manifest")
		}
		doc.Manifest = &m
	}
	d := digest.FromBytes(b).String()
	return doc, d, nil
}

// SelectPlatform picks the manifest-list entry matching target, per
// spec.md §4.7's arch/os mapping (x86_64<->amd64, arm64<->aarch64,
// i686->386). Entries are matched on OS and architecture only; the
// platform variant (e.g. arm/v7) is not compared, so the first entry with
// a matching architecture wins. Returns ok=false if the index has no entry
// for target -- the UnsupportedArchitecture case.
func SelectPlatform(index *ispec.Index, target platform.Target) (ispec.Descriptor, bool) {
	wantArch := platform.OCIArch(target)
	wantOS := target.OS
	if wantOS == "" {
		wantOS = "linux"
	}
	for _, m := range index.Manifests {
		if m.Platform == nil || m.Platform.OS != wantOS {
			continue
		}
		if platform.OCIArch(platform.Target{Arch: m.Platform.Architecture}) == wantArch {
			return m, true
		}
	}
	return ispec.Descriptor{}, false
}

// Blob streams a config or layer blob by digest.
func (r HTTPRegistry) Blob(ctx context.Context, ref Ref, token, dgst string) (io.ReadCloser, error) {
	u := fmt.Sprintf("https://%s/v2/%s/blobs/%s", apiHost(ref.Registry), ref.Name(), dgst)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("blob fetch failed: %v", resp.Status)
	}
	return resp.Body, nil
}
