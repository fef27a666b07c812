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

// Package pep440 implements PEP 440 version parsing, comparison, and
// specifier matching for PyPI dependency resolution.
package pep440

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a parsed PEP 440 version.
type Version struct {
	Epoch    int
	Release  []int
	Pre      string // "a", "b", "rc", or "" if no pre-release segment
	PreNum   int
	Post     bool
	PostNum  int
	Dev      bool
	DevNum   int
	Local    string
	Original string
}

var versionRE = regexp.MustCompile(`(?i)^\s*v?(?:(?P<epoch>[0-9]+)!)?(?P<release>[0-9]+(?:\.[0-9]+)*)(?:(?P<pre>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<prenum>[0-9]*))?(?:[-_.]?(?:post|rev|r)[-_.]?(?P<postnum>[0-9]*))?(?:[-_.]?dev[-_.]?(?P<devnum>[0-9]*))?(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?\s*$`)

// New parses a PEP 440 version string.
func New(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.Errorf("invalid PEP 440 version: %q", s)
	}
	idx := func(name string) string { return m[versionRE.SubexpIndex(name)] }
	v := Version{Original: s}
	if e := idx("epoch"); e != "" {
		v.Epoch, _ = strconv.Atoi(e)
	}
	for _, part := range strings.Split(idx("release"), ".") {
		n, _ := strconv.Atoi(part)
		v.Release = append(v.Release, n)
	}
	if pre := idx("pre"); pre != "" {
		v.Pre = normalizePre(pre)
		if n := idx("prenum"); n != "" {
			v.PreNum, _ = strconv.Atoi(n)
		}
	}
	// The "post" group is only present when the raw string actually
	// contained a post/rev marker; FindStringSubmatch can't distinguish
	// "no match" from "matched empty string" for our single optional
	// group, so we re-check against the original text.
	if postRE.MatchString(s) {
		v.Post = true
		if n := idx("postnum"); n != "" {
			v.PostNum, _ = strconv.Atoi(n)
		}
	}
	if devRE.MatchString(s) {
		v.Dev = true
		if n := idx("devnum"); n != "" {
			v.DevNum, _ = strconv.Atoi(n)
		}
	}
	v.Local = idx("local")
	return v, nil
}

var (
	postRE = regexp.MustCompile(`(?i)[-_.]?(post|rev|r)[-_.]?[0-9]*(?:\+|$)`)
	devRE  = regexp.MustCompile(`(?i)[-_.]?dev[-_.]?[0-9]*(?:\+|$)`)
)

func normalizePre(p string) string {
	switch strings.ToLower(p) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	case "c", "rc", "pre", "preview":
		return "rc"
	default:
		return strings.ToLower(p)
	}
}

var preOrder = map[string]int{"a": 0, "b": 1, "rc": 2}

// Cmp compares two PEP 440 versions, returning -1, 0, or 1. Invalid
// strings sort as less than any valid version, mirroring semver.Cmp's
// treatment of unparseable input so a resolver need not special-case it.
func Cmp(a, b string) int {
	av, err := New(a)
	if err != nil {
		return -1
	}
	bv, err := New(b)
	if err != nil {
		return 1
	}
	return av.Compare(bv)
}

// Compare orders v relative to o per PEP 440's precedence: epoch, then
// release segments (zero-padded to the longer length), then the
// pre/post/dev state, where a pre-release sorts before the final release
// and a dev-release sorts before its corresponding pre-release.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		return cmp.Compare(v.Epoch, o.Epoch)
	}
	if c := compareRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := cmp.Compare(v.phaseRank(), o.phaseRank()); c != 0 {
		return c
	}
	switch {
	case v.Pre != "" && o.Pre != "":
		if c := cmp.Compare(preOrder[v.Pre], preOrder[o.Pre]); c != 0 {
			return c
		}
		if c := cmp.Compare(v.PreNum, o.PreNum); c != 0 {
			return c
		}
	case v.Dev && o.Dev:
		if c := cmp.Compare(v.DevNum, o.DevNum); c != 0 {
			return c
		}
	case v.Post && o.Post:
		if c := cmp.Compare(v.PostNum, o.PostNum); c != 0 {
			return c
		}
	}
	return strings.Compare(v.Local, o.Local)
}

// phaseRank orders dev < pre < final-release < post, the PEP 440 ladder
// that makes "1.0.dev1" < "1.0a1" < "1.0" < "1.0.post1".
func (v Version) phaseRank() int {
	switch {
	case v.Dev && v.Pre == "":
		return 0
	case v.Pre != "":
		return 1
	case v.Post:
		return 3
	default:
		return 2
	}
}

func compareRelease(a, b []int) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmp.Compare(av, bv)
		}
	}
	return 0
}

// Sort sorts versions ascending by PEP 440 precedence.
func Sort(versions []string) {
	slices.SortFunc(versions, Cmp)
}
