// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/airgapcourier/depssmuggler/pkg/courier"
	"github.com/pkg/errors"
)

// installTemplate names the section header and per-package install
// command for one ecosystem, in both the bash and PowerShell driver
// scripts, per spec.md §6's "grouping packages by ecosystem".
type installTemplate struct {
	header string
	bash   func(rel string) string
	ps1    func(rel string) string
}

// ecosystemTemplates maps each ecosystem to its install step. Adding a
// new ecosystem is one map entry here.
var ecosystemTemplates = map[courier.Ecosystem]installTemplate{
	courier.Pip: {
		header: "Python (pip) packages",
		bash:   func(rel string) string { return fmt.Sprintf("pip install --no-index %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("pip install --no-index \"%s\"", rel) },
	},
	courier.Conda: {
		header: "Conda packages",
		bash:   func(rel string) string { return fmt.Sprintf("conda install --offline -y %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("conda install --offline -y \"%s\"", rel) },
	},
	courier.Maven: {
		header: "Maven artifacts (installed into ~/.m2/repository)",
		bash: func(rel string) string {
			return fmt.Sprintf("install -D %q \"$HOME/.m2/repository/%s\"", filepath.ToSlash(rel), filepath.ToSlash(rel))
		},
		ps1: func(rel string) string {
			return fmt.Sprintf("Copy-Item \"%s\" -Destination \"$HOME\\.m2\\repository\\%s\" -Force", rel, rel)
		},
	},
	courier.NPM: {
		header: "npm packages",
		bash:   func(rel string) string { return fmt.Sprintf("npm install --no-save %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("npm install --no-save \"%s\"", rel) },
	},
	courier.Docker: {
		header: "Docker images",
		bash:   func(rel string) string { return fmt.Sprintf("docker load -i %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("docker load -i \"%s\"", rel) },
	},
	courier.YUM: {
		header: "RPM packages (YUM/DNF)",
		bash:   func(rel string) string { return fmt.Sprintf("rpm -Uvh %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("# RPM install is not supported on Windows: %s", rel) },
	},
	courier.APT: {
		header: "DEB packages (APT)",
		bash:   func(rel string) string { return fmt.Sprintf("dpkg -i %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("# DEB install is not supported on Windows: %s", rel) },
	},
	courier.APK: {
		header: "APK packages (Alpine)",
		bash:   func(rel string) string { return fmt.Sprintf("apk add --allow-untrusted %q", filepath.ToSlash(rel)) },
		ps1:    func(rel string) string { return fmt.Sprintf("# APK install is not supported on Windows: %s", rel) },
	},
}

// sortedEcosystems returns grouped's keys in a stable order so repeated
// runs over the same flat list emit byte-identical scripts.
func sortedEcosystems(grouped map[courier.Ecosystem][]courier.ResolvedPackage) []courier.Ecosystem {
	out := make([]courier.Ecosystem, 0, len(grouped))
	for eco := range grouped {
		out = append(out, eco)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WriteInstallScripts emits install.sh (mode 0755) and install.ps1 into
// outputDir, each grouping pkgs by ecosystem per spec.md §6.
func WriteInstallScripts(outputDir string, pkgs []courier.ResolvedPackage) error {
	grouped := groupByEcosystem(pkgs)
	ecosystems := sortedEcosystems(grouped)

	var sh strings.Builder
	sh.WriteString("#!/bin/sh\n")
	sh.WriteString("set -e\n")
	sh.WriteString("cd \"$(dirname \"$0\")\"\n\n")

	var ps1 strings.Builder
	ps1.WriteString("$ErrorActionPreference = \"Stop\"\n")
	ps1.WriteString("Set-Location -Path $PSScriptRoot\n\n")

	for _, eco := range ecosystems {
		tmpl, ok := ecosystemTemplates[eco]
		if !ok {
			continue
		}
		sh.WriteString(fmt.Sprintf("# %s\n", tmpl.header))
		ps1.WriteString(fmt.Sprintf("# %s\n", tmpl.header))
		for _, pkg := range grouped[eco] {
			rel := filepath.Join("packages", relPath(pkg))
			if w := WarnIfPathTooLong(outputDir, rel); w != "" {
				log.Printf("bundle: %s", w)
			}
			sh.WriteString(tmpl.bash(rel) + "\n")
			ps1.WriteString(tmpl.ps1(rel) + "\n")
		}
		sh.WriteString("\n")
		ps1.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Join(outputDir, "install.sh"), []byte(sh.String()), 0o755); err != nil {
		return errors.Wrap(err, "writing install.sh")
	}
	if err := os.WriteFile(filepath.Join(outputDir, "install.ps1"), []byte(ps1.String()), 0o644); err != nil {
		return errors.Wrap(err, "writing install.ps1")
	}
	return nil
}
