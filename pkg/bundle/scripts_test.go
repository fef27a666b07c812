// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
)

func TestWriteInstallScriptsGroupsByEcosystem(t *testing.T) {
	dir := t.TempDir()
	pkgs := []courier.ResolvedPackage{
		{PackageRef: courier.PackageRef{Ecosystem: courier.Pip, Name: "requests"}, ResolvedVersion: "2.31.0", Meta: map[string]any{"filename": "requests-2.31.0-py3-none-any.whl"}},
		{PackageRef: courier.PackageRef{Ecosystem: courier.Docker, Name: "library/nginx"}, ResolvedVersion: "1.25", Meta: map[string]any{"filename": "nginx-1.25.tar"}},
		{PackageRef: courier.PackageRef{Ecosystem: courier.Maven, Name: "org.springframework:spring-core"}, ResolvedVersion: "6.1.0", Meta: map[string]any{"relPath": "org/springframework/spring-core/6.1.0/spring-core-6.1.0.jar"}},
	}
	if err := WriteInstallScripts(dir, pkgs); err != nil {
		t.Fatalf("WriteInstallScripts() failed: %v", err)
	}
	sh, err := os.ReadFile(filepath.Join(dir, "install.sh"))
	if err != nil {
		t.Fatalf("reading install.sh: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "install.sh"))
	if err != nil {
		t.Fatalf("stat install.sh: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("install.sh mode = %v, want 0755", info.Mode().Perm())
	}
	body := string(sh)
	for _, want := range []string{
		"pip install --no-index \"packages/requests-2.31.0-py3-none-any.whl\"",
		"docker load -i \"packages/nginx-1.25.tar\"",
		"packages/org/springframework/spring-core/6.1.0/spring-core-6.1.0.jar",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("install.sh missing %q; got:\n%s", want, body)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "install.ps1")); err != nil {
		t.Fatalf("install.ps1 not written: %v", err)
	}
}

func TestWriteInstallScriptsUnknownEcosystemSkipped(t *testing.T) {
	dir := t.TempDir()
	pkgs := []courier.ResolvedPackage{
		{PackageRef: courier.PackageRef{Ecosystem: courier.Ecosystem("unknown"), Name: "foo"}},
	}
	if err := WriteInstallScripts(dir, pkgs); err != nil {
		t.Fatalf("WriteInstallScripts() failed: %v", err)
	}
}

func TestWarnIfPathTooLong(t *testing.T) {
	if w := WarnIfPathTooLong("/bundles/out", "packages/short.jar"); w != "" {
		t.Errorf("WarnIfPathTooLong() = %q, want empty for short path", w)
	}
	longRel := "packages/" + strings.Repeat("a", 300) + ".jar"
	if w := WarnIfPathTooLong("/bundles/out", longRel); w == "" {
		t.Error("WarnIfPathTooLong() = \"\", want a warning for a long path")
	}
}
