// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package maven

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
)

type fakePOMClient struct {
	byURL map[string]string
}

func (c *fakePOMClient) Do(req *http.Request) (*http.Response, error) {
	body, ok := c.byURL[req.URL.String()]
	if !ok {
		return &http.Response{StatusCode: 404, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func pomURL(coord, version string) string {
	r := HTTPRegistry{}
	u, _ := r.ReleaseURL(context.Background(), coord, version, TypePOM)
	return u
}

func simplePOM(g, a, v string, deps string) string {
	return `<project><groupId>` + g + `</groupId><artifactId>` + a + `</artifactId><version>` + v + `</version>` + deps + `</project>`
}

func dep(g, a, v string) string {
	return `<dependency><groupId>` + g + `</groupId><artifactId>` + a + `</artifactId><version>` + v + `</version></dependency>`
}

// TestClosureDiamondConflict reproduces spec.md §8 scenario 3: root depends
// on A then B; A depends on X@1.0; B depends on X@2.0. Nearest-and-first
// wins, so X resolves to 1.0 and a conflict is recorded.
func TestClosureDiamondConflict(t *testing.T) {
	client := &fakePOMClient{byURL: map[string]string{
		pomURL("root:root", "1.0"): simplePOM("root", "root", "1.0",
			"<dependencies>"+dep("g", "a", "1.0")+dep("g", "b", "1.0")+"</dependencies>"),
		pomURL("g:a", "1.0"): simplePOM("g", "a", "1.0",
			"<dependencies>"+dep("g", "x", "1.0")+"</dependencies>"),
		pomURL("g:b", "1.0"): simplePOM("g", "b", "1.0",
			"<dependencies>"+dep("g", "x", "2.0")+"</dependencies>"),
		pomURL("g:x", "1.0"): simplePOM("g", "x", "1.0", ""),
		pomURL("g:x", "2.0"): simplePOM("g", "x", "2.0", ""),
	}}
	r := HTTPRegistry{Client: client}
	flat, conflicts, failed, err := r.Closure(context.Background(), "root:root", "1.0", ClosureOptions{})
	if err != nil {
		t.Fatalf("Closure() error = %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("Closure() failed = %v, want none", failed)
	}
	var gotXVersion string
	for _, n := range flat {
		if n.Coord == "g:x" {
			gotXVersion = n.Version
		}
	}
	if gotXVersion != "1.0" {
		t.Errorf("resolved g:x version = %q, want 1.0", gotXVersion)
	}
	found := false
	for _, c := range conflicts {
		if c.Name == "g:x" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a conflict recorded for g:x, got %+v", conflicts)
	}
}

// TestResolveEffectiveBOMImport reproduces spec.md §8 scenario 2: a root
// POM's dependencyManagement imports a BOM (scope=import, type=pom), and a
// dependency without its own version is filled in from the BOM.
func TestResolveEffectiveBOMImport(t *testing.T) {
	rootPOM := `<project><groupId>root</groupId><artifactId>root</artifactId><version>1.0</version>
		<dependencyManagement><dependencies>
			<dependency><groupId>org.example</groupId><artifactId>bom</artifactId><version>2.0</version><type>pom</type><scope>import</scope></dependency>
		</dependencies></dependencyManagement>
		<dependencies>` + dep("org.example", "starter", "") + `</dependencies>
	</project>`
	bomPOM := `<project><groupId>org.example</groupId><artifactId>bom</artifactId><version>2.0</version>
		<dependencyManagement><dependencies>
			<dependency><groupId>org.example</groupId><artifactId>starter</artifactId><version>2.0.5</version></dependency>
		</dependencies></dependencyManagement>
	</project>`
	client := &fakePOMClient{byURL: map[string]string{
		pomURL("root:root", "1.0"):        rootPOM,
		pomURL("org.example:bom", "2.0"):  bomPOM,
		pomURL("org.example:starter", "2.0.5"): simplePOM("org.example", "starter", "2.0.5", ""),
	}}
	r := HTTPRegistry{Client: client}
	effective, err := r.resolveEffective(context.Background(), "root:root", "1.0", map[string]bool{})
	if err != nil {
		t.Fatalf("resolveEffective() error = %v", err)
	}
	m, ok := effective.DependencyManagement["org.example:starter"]
	if !ok || m.Version != "2.0.5" {
		t.Fatalf("DependencyManagement[starter] = %+v, ok=%v, want version 2.0.5", m, ok)
	}
	resolved := resolveManagedVersion(effective.Dependencies[0], effective.DependencyManagement)
	if resolved.Version != "2.0.5" {
		t.Errorf("resolveManagedVersion() version = %q, want 2.0.5", resolved.Version)
	}
}

func TestPropertySubstitution(t *testing.T) {
	props := map[string]string{"revision": "1.2.3", "artifact.version": "${revision}-final"}
	for pass := 0; pass < maxPropertyPasses; pass++ {
		changed := false
		for k, v := range props {
			nv := substitute(v, props)
			if nv != v {
				props[k] = nv
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if props["artifact.version"] != "1.2.3-final" {
		t.Errorf("artifact.version = %q, want 1.2.3-final", props["artifact.version"])
	}
}
