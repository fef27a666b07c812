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

package yum

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"
)

// Entry is one rpm:requires/rpm:provides child: a capability name with an
// optional version comparison, e.g. "libc.so.6(GLIBC_2.4)" (unversioned)
// or "python3 >= 3.9" (versioned via flags/ver attributes).
type Entry struct {
	Name    string `xml:"name,attr"`
	Flag    string `xml:"flags,attr"`
	Version string `xml:"ver,attr"`
}

type rpmFormat struct {
	Requires struct {
		Entry []Entry `xml:"entry"`
	} `xml:"requires"`
	Provides struct {
		Entry []Entry `xml:"entry"`
	} `xml:"provides"`
}

type primaryPackage struct {
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Size struct {
		Package int64 `xml:"package,attr"`
	} `xml:"size"`
	Format rpmFormat `xml:"format"`
}

type primaryMetadata struct {
	XMLName  xml.Name         `xml:"metadata"`
	Packages []primaryPackage `xml:"package"`
}

// Package is one RPM entry from a repository's primary.xml.
type Package struct {
	Name         string
	EVR          string // "[epoch:]version-release", per internal/rpmver.
	Arch         string
	Location     string // Absolute URL, resolved against the repo base.
	Checksum     string
	ChecksumType string // e.g. "sha256"
	Size         int64
	Requires     []Entry
	Provides     []Entry
}

// Index is a parsed primary.xml: every package entry for one
// (release, architecture) pair, plus name and provides reverse indexes.
type Index struct {
	Packages []Package
	byName   map[string][]Package
	provides map[string][]string
}

// ParsePrimary parses a decompressed primary.xml document, resolving each
// package's Location against baseURL.
func ParsePrimary(r io.Reader, baseURL string) (*Index, error) {
	var md primaryMetadata
	if err := xml.NewDecoder(r).Decode(&md); err != nil {
		return nil, errors.Wrap(err, "parsing primary.xml")
	}
	idx := &Index{
		byName:   map[string][]Package{},
		provides: map[string][]string{},
	}
	for _, p := range md.Packages {
		evr := p.Version.Ver
		if p.Version.Epoch != "" && p.Version.Epoch != "0" {
			evr = p.Version.Epoch + ":" + evr
		}
		if p.Version.Rel != "" {
			evr += "-" + p.Version.Rel
		}
		pkg := Package{
			Name:         p.Name,
			EVR:          evr,
			Arch:         p.Arch,
			Location:     baseURL + "/" + p.Location.Href,
			Checksum:     p.Checksum.Value,
			ChecksumType: p.Checksum.Type,
			Size:         p.Size.Package,
			Requires:     p.Format.Requires.Entry,
			Provides:     p.Format.Provides.Entry,
		}
		idx.Packages = append(idx.Packages, pkg)
		idx.byName[pkg.Name] = append(idx.byName[pkg.Name], pkg)
		for _, prov := range pkg.Provides {
			idx.provides[prov.Name] = append(idx.provides[prov.Name], pkg.Name)
		}
	}
	return idx, nil
}

// Lookup returns the known versions of a package name.
func (idx *Index) Lookup(name string) []Package {
	return idx.byName[name]
}

// Providers returns the package names declaring rpm:provides for a
// capability, for resolving e.g. "libc.so.6(GLIBC_2.4)"-style requires
// that don't name a real package directly.
func (idx *Index) Providers(name string) []string {
	return idx.provides[name]
}
