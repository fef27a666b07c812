// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package osrepo

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/airgapcourier/depssmuggler/pkg/registry/apt"
)

type fakeAptRegistry struct {
	idx *apt.Index
}

func (f fakeAptRegistry) Packages(ctx context.Context, component, arch string) (*apt.Index, error) {
	return f.idx, nil
}

func (f fakeAptRegistry) Artifact(ctx context.Context, url string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("deb-bytes:" + url)), nil
}

const testIndex = `Package: myapp
Version: 1.0-1
Architecture: amd64
Depends: libfoo
Filename: pool/main/m/myapp/myapp_1.0-1_amd64.deb
SHA256: deadbeef

Package: libfoo
Version: 2.1-1
Architecture: amd64
Filename: pool/main/libf/libfoo/libfoo_2.1-1_amd64.deb
`

func newTestAptSource(t *testing.T) *AptSource {
	t.Helper()
	idx, err := apt.ParsePackages(strings.NewReader(testIndex))
	if err != nil {
		t.Fatalf("ParsePackages() error = %v", err)
	}
	return &AptSource{Registry: fakeAptRegistry{idx: idx}, Component: "main", Arch: "amd64"}
}

func TestAptSourceSearch(t *testing.T) {
	src := newTestAptSource(t)
	results, err := src.Search(context.Background(), "app")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Name != "myapp" {
		t.Fatalf("Search(app) = %v, want [myapp]", results)
	}
}

func TestAptSourceResolveDependencies(t *testing.T) {
	src := newTestAptSource(t)
	result, err := src.ResolveDependencies(context.Background(), "myapp")
	if err != nil {
		t.Fatalf("ResolveDependencies() error = %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("ResolveDependencies() failed = %v, want none", result.Failed)
	}
	names := map[string]bool{}
	for _, p := range result.FlatList {
		names[p.Name] = true
	}
	if !names["myapp"] || !names["libfoo"] {
		t.Errorf("ResolveDependencies() flat = %v, want myapp and libfoo", result.FlatList)
	}
}

func TestAptSourceDownload(t *testing.T) {
	src := newTestAptSource(t)
	result, err := src.ResolveDependencies(context.Background(), "myapp")
	if err != nil {
		t.Fatalf("ResolveDependencies() error = %v", err)
	}
	for _, p := range result.FlatList {
		if p.Name != "libfoo" {
			continue
		}
		rc, err := src.Download(context.Background(), p)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		if !strings.Contains(string(b), "libfoo_2.1-1_amd64.deb") {
			t.Errorf("Download() body = %q, want reference to libfoo_2.1-1_amd64.deb", b)
		}
	}
}
