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

package maven

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/airgapcourier/depssmuggler/internal/urlx"
	"github.com/pkg/errors"
)

// repo1URL is Maven Central's plain artifact repository, used for POM and
// jar retrieval (as distinct from registryURL's search.maven.org query
// API used for version listing).
var repo1URL = urlx.MustParse("https://repo1.maven.org/maven2/")

// Dependency is a single <dependency> entry from a POM, before property
// substitution.
type Dependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   bool   `xml:"optional"`
	Type       string `xml:"type"`
	Classifier string `xml:"classifier"`
}

// Coord returns the dependency's "groupId:artifactId" coordinate.
func (d Dependency) Coord() string { return d.GroupID + ":" + d.ArtifactID }

// POM is the subset of a Project Object Model this adapter needs.
type POM struct {
	XMLName    xml.Name `xml:"project"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Version    string   `xml:"version"`
	Packaging  string   `xml:"packaging"`

	Parent *struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
	} `xml:"parent"`

	Properties struct {
		Entries []xmlProperty `xml:",any"`
	} `xml:"properties"`

	DependencyManagement struct {
		Dependencies []Dependency `xml:"dependencies>dependency"`
	} `xml:"dependencyManagement"`

	Dependencies []Dependency `xml:"dependencies>dependency"`
}

// xmlProperty captures an arbitrary <properties> child element, since
// property names are themselves the element names (e.g.
// <properties><spring.version>5.3</spring.version></properties>).
type xmlProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

func (p *POM) propertyMap() map[string]string {
	m := make(map[string]string, len(p.Properties.Entries))
	for _, e := range p.Properties.Entries {
		m[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	if p.GroupID == "" && p.Parent != nil {
		m["project.groupId"] = p.Parent.GroupID
		m["pom.groupId"] = p.Parent.GroupID
	} else {
		m["project.groupId"] = p.GroupID
		m["pom.groupId"] = p.GroupID
	}
	m["project.artifactId"] = p.ArtifactID
	m["pom.artifactId"] = p.ArtifactID
	if p.Version == "" && p.Parent != nil {
		m["project.version"] = p.Parent.Version
		m["pom.version"] = p.Parent.Version
	} else {
		m["project.version"] = p.Version
		m["pom.version"] = p.Version
	}
	return m
}

// ReleaseURL returns the .m2-layout URL for a release file. typ is one of
// the Type* constants in maven.go (".pom", ".jar", "-sources.jar", ...).
func (r HTTPRegistry) ReleaseURL(ctx context.Context, pkg, version, typ string) (string, error) {
	g, a, found := strings.Cut(pkg, ":")
	if !found {
		return "", errors.New("package identifier not of form 'group:artifact'")
	}
	p := strings.Join([]string{strings.ReplaceAll(g, ".", "/"), a, version, fmt.Sprintf("%s-%s%s", a, version, typ)}, "/")
	u := repo1URL.ResolveReference(&url.URL{Path: p})
	return u.String(), nil
}

// FetchPOM downloads and parses the POM for pkg@version.
func (r HTTPRegistry) FetchPOM(ctx context.Context, pkg, version string) (*POM, error) {
	u, err := r.ReleaseURL(ctx, pkg, version, TypePOM)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching POM %s@%s: %v", pkg, version, resp.Status)
	}
	var p POM
	if err := xml.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.Wrapf(err, "parsing POM %s@%s", pkg, version)
	}
	return &p, nil
}
