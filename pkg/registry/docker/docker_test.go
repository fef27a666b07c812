// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/airgapcourier/depssmuggler/internal/platform"
	ispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		want Ref
	}{
		{"alpine", Ref{Registry: "docker.io", Namespace: "library", Repo: "alpine", Tag: "latest"}},
		{"alpine:3.19", Ref{Registry: "docker.io", Namespace: "library", Repo: "alpine", Tag: "3.19"}},
		{"library/ubuntu:22.04", Ref{Registry: "docker.io", Namespace: "library", Repo: "ubuntu", Tag: "22.04"}},
		{"myorg/myimage", Ref{Registry: "docker.io", Namespace: "myorg", Repo: "myimage", Tag: "latest"}},
		{"ghcr.io/owner/repo:v1", Ref{Registry: "ghcr.io", Namespace: "owner", Repo: "repo", Tag: "v1"}},
		{"registry.example.com:5000/ns/img:tag", Ref{Registry: "registry.example.com:5000", Namespace: "ns", Repo: "img", Tag: "tag"}},
	}
	for _, c := range cases {
		got := ParseRef(c.in)
		if got != c.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

type byURLClient struct {
	responses map[string]*http.Response
}

func (c *byURLClient) Do(req *http.Request) (*http.Response, error) {
	if resp, ok := c.responses[req.URL.String()]; ok {
		return resp, nil
	}
	return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

func jsonResp(body string) *http.Response {
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader([]byte(body))), Header: http.Header{}}
}

func TestTokenKnownRegistry(t *testing.T) {
	client := &byURLClient{responses: map[string]*http.Response{
		"https://auth.docker.io/token?scope=repository%3Alibrary%2Falpine%3Apull&service=registry.docker.io": jsonResp(`{"token":"abc123"}`),
	}}
	r := HTTPRegistry{Client: client}
	ref := ParseRef("alpine")
	tok, err := r.Token(context.Background(), ref)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "abc123" {
		t.Errorf("Token() = %q, want abc123", tok)
	}
}

func TestSelectPlatform(t *testing.T) {
	idx := &ispec.Index{
		Manifests: []ispec.Descriptor{
			{Digest: "sha256:aaa", Platform: &ispec.Platform{Architecture: "amd64", OS: "linux"}},
			{Digest: "sha256:bbb", Platform: &ispec.Platform{Architecture: "arm64", OS: "linux"}},
		},
	}
	entry, ok := SelectPlatform(idx, platform.Target{OS: "linux", Arch: "aarch64"})
	if !ok {
		t.Fatal("SelectPlatform() ok = false, want true")
	}
	if entry.Digest.String() != "sha256:bbb" {
		t.Errorf("SelectPlatform() digest = %q, want sha256:bbb", entry.Digest)
	}
	if _, ok := SelectPlatform(idx, platform.Target{OS: "linux", Arch: "riscv64"}); ok {
		t.Error("SelectPlatform() ok = true for unsupported arch, want false")
	}
}

func TestManifestFetch(t *testing.T) {
	body := `{"mediaType":"application/vnd.docker.distribution.manifest.v2+json","config":{"digest":"sha256:cfg","size":10},"layers":[{"digest":"sha256:layer1","size":20}]}`
	client := &byURLClient{responses: map[string]*http.Response{
		"https://registry-1.docker.io/v2/library/alpine/manifests/latest": jsonResp(body),
	}}
	r := HTTPRegistry{Client: client}
	ref := ParseRef("alpine")
	doc, digest, err := r.Manifest(context.Background(), ref, "")
	if err != nil {
		t.Fatalf("Manifest() error = %v", err)
	}
	if doc.Manifest == nil {
		t.Fatal("Manifest() returned an index, want a manifest")
	}
	if doc.Manifest.Config.Digest.String() != "sha256:cfg" {
		t.Errorf("Manifest() config digest = %q, want sha256:cfg", doc.Manifest.Config.Digest)
	}
	if len(doc.Manifest.Layers) != 1 || doc.Manifest.Layers[0].Digest.String() != "sha256:layer1" {
		t.Errorf("Manifest() layers = %+v", doc.Manifest.Layers)
	}
	if digest == "" {
		t.Error("Manifest() digest empty, want content digest")
	}
}

func TestManifestFetchIndex(t *testing.T) {
	body := `{"mediaType":"application/vnd.oci.image.index.v1+json","manifests":[{"digest":"sha256:aaa","size":5,"platform":{"architecture":"amd64","os":"linux"}}]}`
	client := &byURLClient{responses: map[string]*http.Response{
		"https://registry-1.docker.io/v2/library/alpine/manifests/latest": jsonResp(body),
	}}
	r := HTTPRegistry{Client: client}
	ref := ParseRef("alpine")
	doc, _, err := r.Manifest(context.Background(), ref, "")
	if err != nil {
		t.Fatalf("Manifest() error = %v", err)
	}
	if doc.Index == nil || len(doc.Index.Manifests) != 1 {
		t.Fatalf("Manifest() = %+v, want a one-entry index", doc)
	}
}

func TestSaveTarName(t *testing.T) {
	ref := ParseRef("myorg/myimage:1.2.3")
	if got, want := SaveTarName(ref), "myimage-1.2.3.tar"; got != want {
		t.Errorf("SaveTarName() = %q, want %q", got, want)
	}
}
