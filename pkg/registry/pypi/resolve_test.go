package pypi

import (
	"strings"
	"testing"

	"github.com/airgapcourier/depssmuggler/internal/platform"
)

func TestSelectArtifactPrefersUniversalWheel(t *testing.T) {
	target := platform.Target{OS: "linux", Arch: "amd64", PythonVersion: "3.10"}
	artifacts := []Artifact{
		{Filename: "requests-2.31.0.tar.gz", PackageType: "sdist"},
		{Filename: "requests-2.31.0-py3-none-any.whl", PackageType: "bdist_wheel"},
	}
	got, ok := SelectArtifact(target, artifacts)
	if !ok || got.Filename != "requests-2.31.0-py3-none-any.whl" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestSelectArtifactPlatformSpecificWheel(t *testing.T) {
	target := platform.Target{OS: "linux", Arch: "amd64", PythonVersion: "3.10"}
	artifacts := []Artifact{
		{Filename: "pkg-1.0-cp310-cp310-win_amd64.whl", PackageType: "bdist_wheel"},
		{Filename: "pkg-1.0-cp310-cp310-manylinux2014_x86_64.whl", PackageType: "bdist_wheel"},
		{Filename: "pkg-1.0.tar.gz", PackageType: "sdist"},
	}
	got, ok := SelectArtifact(target, artifacts)
	if !ok || got.Filename != "pkg-1.0-cp310-cp310-manylinux2014_x86_64.whl" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestSelectArtifactFallsBackToSdist(t *testing.T) {
	target := platform.Target{OS: "windows", Arch: "arm64"}
	artifacts := []Artifact{
		{Filename: "pkg-1.0-cp310-cp310-manylinux2014_x86_64.whl", PackageType: "bdist_wheel"},
		{Filename: "pkg-1.0.tar.gz", PackageType: "sdist"},
	}
	got, ok := SelectArtifact(target, artifacts)
	if !ok || got.PackageType != "sdist" {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestParseSimpleIndex(t *testing.T) {
	html := `<!DOCTYPE html><html><body>
<a href="/simple/requests/">requests</a>
<a href="/simple/numpy/">numpy</a>
</body></html>`
	names := parseSimpleIndex(strings.NewReader(html))
	if len(names) != 2 || names[0] != "requests" || names[1] != "numpy" {
		t.Fatalf("got %v", names)
	}
}
