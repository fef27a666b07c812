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

package apk

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Package is one binary package entry from an APKINDEX.
type Package struct {
	Name     string // P
	Version  string // V
	Arch     string // A
	Filename string // Computed as "<name>-<version>.apk", APKINDEX has no own field for it.
	Checksum string // C (a "Q1" base64-prefixed sha1 in modern indexes)
	Size     int64  // S
	Depends  string // D, space-separated dependency list.
	Provides string // p, space-separated provides list.
}

// Index is a parsed APKINDEX: every package stanza for one
// (branch, repo, architecture) tuple, plus name and provides reverse
// indexes.
type Index struct {
	Packages []Package
	byName   map[string][]Package
	provides map[string][]string
}

// ParseIndex parses the decompressed APKINDEX file, a sequence of
// "K:value" lines (one per field) with stanzas separated by a blank line,
// as documented at https://wiki.alpinelinux.org/wiki/Apk_spec.
func ParseIndex(r io.Reader) (*Index, error) {
	idx := &Index{
		byName:   map[string][]Package{},
		provides: map[string][]string{},
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var cur Package
	flush := func() {
		if cur.Name == "" {
			return
		}
		if cur.Version != "" {
			cur.Filename = cur.Name + "-" + cur.Version + ".apk"
		}
		idx.Packages = append(idx.Packages, cur)
		idx.byName[cur.Name] = append(idx.byName[cur.Name], cur)
		for _, prov := range splitFields(cur.Provides) {
			name, _, _ := splitConstraint(prov)
			idx.provides[name] = append(idx.provides[name], cur.Name)
		}
		cur = Package{}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.Errorf("malformed APKINDEX line: %q", line)
		}
		switch key {
		case "P":
			cur.Name = value
		case "V":
			cur.Version = value
		case "A":
			cur.Arch = value
		case "C":
			cur.Checksum = value
		case "D":
			cur.Depends = value
		case "p":
			cur.Provides = value
		case "S":
			cur.Size, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning APKINDEX")
	}
	flush()
	return idx, nil
}

// Lookup returns the known versions of a package name.
func (idx *Index) Lookup(name string) []Package {
	return idx.byName[name]
}

// Providers returns the package names declaring "p:" provides for a
// capability (e.g. "so:libfoo.so.1" or "cmd:foo").
func (idx *Index) Providers(name string) []string {
	return idx.provides[name]
}

func splitFields(s string) []string {
	return strings.Fields(s)
}

// splitConstraint splits an apk dependency/provides token into its name
// and an optional "op value" version constraint, e.g. "somepkg>=1.0" or
// "so:libfoo.so.1=1.0".
func splitConstraint(s string) (name, op, version string) {
	for _, candidate := range []string{">=", "<=", "=", ">", "<"} {
		if i := strings.Index(s, candidate); i > 0 {
			return s[:i], candidate, s[i+len(candidate):]
		}
	}
	return s, "", ""
}
