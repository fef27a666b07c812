// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
)

type fakeFetcher struct {
	content map[string]string // keyed by pkg.Key()
}

func (f fakeFetcher) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	body, ok := f.content[pkg.Key()]
	if !ok {
		body = "bytes-for-" + pkg.Name
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestRunDownloadsAllPackages(t *testing.T) {
	dir := t.TempDir()
	pkgs := []courier.ResolvedPackage{
		{PackageRef: courier.PackageRef{Ecosystem: courier.Pip, Name: "alpha"}, ResolvedVersion: "1.0"},
		{PackageRef: courier.PackageRef{Ecosystem: courier.Pip, Name: "beta"}, ResolvedVersion: "2.0"},
	}
	bus := NewEventBus(16)
	o := New(bus)
	fetchers := map[courier.Ecosystem]Fetcher{courier.Pip: fakeFetcher{}}

	result, err := o.Run(context.Background(), pkgs, fetchers, Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Run() success = false, items = %+v", result.Items)
	}
	for _, it := range result.Items {
		if !it.OK {
			t.Errorf("item %s not ok: %v", it.ID, it.Error)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, "packages"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("packages dir has %d entries, want 2", len(entries))
	}
}

func TestRunVerifiesChecksum(t *testing.T) {
	dir := t.TempDir()
	body := "deterministic-content"
	pkg := courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Ecosystem: courier.Pip, Name: "alpha"},
		ResolvedVersion: "1.0",
		Checksum:        courier.Checksum{Type: "sha256", Hex: sha256Hex(body)},
	}
	bus := NewEventBus(16)
	o := New(bus)
	fetchers := map[courier.Ecosystem]Fetcher{
		courier.Pip: fakeFetcher{content: map[string]string{pkg.Key(): body}},
	}

	result, err := o.Run(context.Background(), []courier.ResolvedPackage{pkg}, fetchers, Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Run() with matching checksum should succeed, items = %+v", result.Items)
	}
}

func TestRunFailsMismatchedChecksum(t *testing.T) {
	dir := t.TempDir()
	pkg := courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Ecosystem: courier.Pip, Name: "alpha"},
		ResolvedVersion: "1.0",
		Checksum:        courier.Checksum{Type: "sha256", Hex: sha256Hex("expected")},
	}
	bus := NewEventBus(16)
	o := New(bus)
	fetchers := map[courier.Ecosystem]Fetcher{
		courier.Pip: fakeFetcher{content: map[string]string{pkg.Key(): "not-what-was-expected"}},
	}

	result, err := o.Run(context.Background(), []courier.ResolvedPackage{pkg}, fetchers, Options{OutputDir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success {
		t.Fatalf("Run() with mismatched checksum should not succeed")
	}
	if result.Items[0].OK {
		t.Errorf("item with mismatched checksum should not be OK")
	}
}

func TestCancelStopsNewDownloads(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	started := 0
	pkgs := make([]courier.ResolvedPackage, 10)
	for i := range pkgs {
		pkgs[i] = courier.ResolvedPackage{
			PackageRef:      courier.PackageRef{Ecosystem: courier.Pip, Name: "pkg"},
			ResolvedVersion: string(rune('a' + i)),
		}
	}
	bus := NewEventBus(64)
	o := New(bus)
	fetcher := countingFetcher{onStart: func() {
		mu.Lock()
		started++
		n := started
		mu.Unlock()
		if n == 5 {
			o.Cancel()
		}
	}}
	fetchers := map[courier.Ecosystem]Fetcher{courier.Pip: fetcher}

	result, err := o.Run(context.Background(), pkgs, fetchers, Options{OutputDir: dir, Concurrency: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success {
		t.Errorf("Run() should not report success after Cancel")
	}
	okCount := 0
	for _, it := range result.Items {
		if it.OK {
			okCount++
		}
	}
	if okCount >= len(pkgs) {
		t.Errorf("Cancel at item 5 should have left later items unstarted, got %d ok of %d", okCount, len(pkgs))
	}
}

type countingFetcher struct {
	onStart func()
}

func (f countingFetcher) Download(ctx context.Context, pkg courier.ResolvedPackage) (io.ReadCloser, error) {
	f.onStart()
	return io.NopCloser(strings.NewReader("bytes")), nil
}

func TestArtifactFilenameUsesMeta(t *testing.T) {
	pkg := courier.ResolvedPackage{
		PackageRef: courier.PackageRef{Name: "libfoo"},
		Meta:       map[string]any{"filename": "libfoo_2.1-1_amd64.deb"},
	}
	if got := artifactFilename(pkg); got != "libfoo_2.1-1_amd64.deb" {
		t.Errorf("artifactFilename() = %q, want libfoo_2.1-1_amd64.deb", got)
	}
}

func TestArtifactFilenamePrefersRelPathOverFilename(t *testing.T) {
	pkg := courier.ResolvedPackage{
		PackageRef: courier.PackageRef{Name: "org.springframework:spring-core"},
		Meta: map[string]any{
			"relPath":  "org/springframework/spring-core/6.1.0/spring-core-6.1.0.jar",
			"filename": "spring-core-6.1.0.jar",
		},
	}
	want := "org/springframework/spring-core/6.1.0/spring-core-6.1.0.jar"
	if got := artifactFilename(pkg); got != want {
		t.Errorf("artifactFilename() = %q, want %q", got, want)
	}
}

func TestArtifactFilenameFallsBackToNameVersion(t *testing.T) {
	pkg := courier.ResolvedPackage{
		PackageRef:      courier.PackageRef{Name: "requests"},
		ResolvedVersion: "2.31.0",
	}
	if got := artifactFilename(pkg); got != "requests-2.31.0" {
		t.Errorf("artifactFilename() = %q, want requests-2.31.0", got)
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		done, total int64
		want        int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{150, 100, 100},
		{10, 0, -1},
	}
	for _, c := range cases {
		if got := progressPercent(c.done, c.total); got != c.want {
			t.Errorf("progressPercent(%d, %d) = %d, want %d", c.done, c.total, got, c.want)
		}
	}
}
