// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"context"
	"strings"
	"testing"
)

const testAPKIndex = `P:myapp
V:1.0-r0
A:x86_64
D:libfoo>=2.0 so:libc.musl-x86_64.so.1
S:1024

P:libfoo
V:2.1-r0
A:x86_64
p:cmd:foo=2.1-r0

P:libfoo
V:1.9-r0
A:x86_64

P:musl
V:1.2.5-r0
A:x86_64
p:so:libc.musl-x86_64.so.1=1.2.5-r0
`

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex(strings.NewReader(testAPKIndex))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	if len(idx.Packages) != 4 {
		t.Fatalf("ParseIndex() got %d packages, want 4", len(idx.Packages))
	}
	foos := idx.Lookup("libfoo")
	if len(foos) != 2 {
		t.Fatalf("Lookup(libfoo) = %d entries, want 2", len(foos))
	}
	app := idx.Lookup("myapp")[0]
	if app.Filename != "myapp-1.0-r0.apk" || app.Size != 1024 {
		t.Errorf("myapp = %+v, want Filename myapp-1.0-r0.apk Size 1024", app)
	}
	providers := idx.Providers("so:libc.musl-x86_64.so.1")
	if len(providers) != 1 || providers[0] != "musl" {
		t.Errorf("Providers(so:libc.musl-x86_64.so.1) = %v, want [musl]", providers)
	}
}

func TestSplitConstraint(t *testing.T) {
	name, op, version := splitConstraint("libfoo>=2.0")
	if name != "libfoo" || op != ">=" || version != "2.0" {
		t.Errorf("splitConstraint(libfoo>=2.0) = %q %q %q", name, op, version)
	}
	name, op, version = splitConstraint("cmd:foo")
	if name != "cmd:foo" || op != "" || version != "" {
		t.Errorf("splitConstraint(cmd:foo) = %q %q %q", name, op, version)
	}
}

func TestClosureResolvesSonameProvides(t *testing.T) {
	idx, err := ParseIndex(strings.NewReader(testAPKIndex))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
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
	for _, want := range []string{"myapp", "libfoo", "musl"} {
		if !names[want] {
			t.Errorf("Closure() missing %q in %v", want, names)
		}
	}
}
