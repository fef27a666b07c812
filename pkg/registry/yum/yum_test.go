// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package yum

import (
	"context"
	"strings"
	"testing"
)

const testPrimaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="3">
  <package type="rpm">
    <name>myapp</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="1.0" rel="1.fc40"/>
    <checksum type="sha256">abc</checksum>
    <size package="1024"/>
    <location href="Packages/m/myapp-1.0-1.fc40.x86_64.rpm"/>
    <format>
      <rpm:requires xmlns:rpm="http://linux.duke.edu/metadata/rpm">
        <rpm:entry name="libfoo" flags="GE" ver="2.0"/>
        <rpm:entry name="libc.so.6(GLIBC_2.4)"/>
      </rpm:requires>
    </format>
  </package>
  <package type="rpm">
    <name>libfoo</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="2.1" rel="1.fc40"/>
    <location href="Packages/l/libfoo-2.1-1.fc40.x86_64.rpm"/>
    <format>
      <rpm:provides xmlns:rpm="http://linux.duke.edu/metadata/rpm"/>
    </format>
  </package>
  <package type="rpm">
    <name>glibc</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="2.39" rel="5.fc40"/>
    <location href="Packages/g/glibc-2.39-5.fc40.x86_64.rpm"/>
    <format>
      <rpm:provides xmlns:rpm="http://linux.duke.edu/metadata/rpm">
        <rpm:entry name="libc.so.6(GLIBC_2.4)"/>
      </rpm:provides>
    </format>
  </package>
</metadata>
`

func TestParsePrimary(t *testing.T) {
	idx, err := ParsePrimary(strings.NewReader(testPrimaryXML), "https://example/os")
	if err != nil {
		t.Fatalf("ParsePrimary() error = %v", err)
	}
	if len(idx.Packages) != 3 {
		t.Fatalf("ParsePrimary() got %d packages, want 3", len(idx.Packages))
	}
	app := idx.Lookup("myapp")
	if len(app) != 1 || app[0].EVR != "1.0-1.fc40" {
		t.Fatalf("Lookup(myapp) = %+v, want EVR 1.0-1.fc40", app)
	}
	if app[0].ChecksumType != "sha256" || app[0].Checksum != "abc" {
		t.Errorf("myapp checksum = %s:%s, want sha256:abc", app[0].ChecksumType, app[0].Checksum)
	}
	if got := app[0].Location; got != "https://example/os/Packages/m/myapp-1.0-1.fc40.x86_64.rpm" {
		t.Errorf("Location = %q", got)
	}
	providers := idx.Providers("libc.so.6(GLIBC_2.4)")
	if len(providers) != 1 || providers[0] != "glibc" {
		t.Errorf("Providers(libc.so.6(GLIBC_2.4)) = %v, want [glibc]", providers)
	}
}

func TestClosureResolvesCapability(t *testing.T) {
	idx, err := ParsePrimary(strings.NewReader(testPrimaryXML), "https://example/os")
	if err != nil {
		t.Fatalf("ParsePrimary() error = %v", err)
	}
	flat, failed, err := Closure(context.Background(), idx, "myapp", ClosureOptions{})
	if err != nil {
		t.Fatalf("Closure() error = %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("Closure() failed = %v, want none", failed)
	}
	names := map[string]bool{}
	for _, n := range flat {
		names[n.Package.Name] = true
	}
	for _, want := range []string{"myapp", "libfoo", "glibc"} {
		if !names[want] {
			t.Errorf("Closure() missing %q in %v", want, names)
		}
	}
}
