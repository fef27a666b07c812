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

// Package courier holds the shared domain value types every ecosystem
// adapter, the resolution kernel, and the download orchestrator pass
// between each other, analogous to the teacher's pkg/rebuild/rebuild root
// package. None of these types know how to fetch anything; they're plain
// data.
package courier

import (
	"fmt"
)

// Ecosystem identifies which package registry a PackageRef belongs to.
type Ecosystem string

const (
	Pip    Ecosystem = "pip"
	Conda  Ecosystem = "conda"
	Maven  Ecosystem = "maven"
	NPM    Ecosystem = "npm"
	Docker Ecosystem = "docker"
	YUM    Ecosystem = "yum"
	APT    Ecosystem = "apt"
	APK    Ecosystem = "apk"
)

// PackageRef is a requested package: ecosystem, name, version-spec, and the
// platform it's being resolved for. Name grammar is ecosystem-specific
// (Maven "groupId:artifactId", npm "@scope/pkg", Docker
// "registry/namespace/repo").
type PackageRef struct {
	Ecosystem Ecosystem
	Name      string
	Version   string // free-form; the adapter validates/interprets it
	Arch      string
	Platform  string
	Extras    []string
}

// Key returns the (ecosystem, name) identity used to deduplicate a flat
// list and key the Skipper's resolved-version map. Names are lowercased so
// "Requests" and "requests" collide, matching spec.md's "canonical
// coordinate strings" cache-key normalization.
func (r PackageRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Ecosystem, normalizeName(r.Ecosystem, r.Name))
}

func normalizeName(eco Ecosystem, name string) string {
	switch eco {
	case Pip:
		// PEP 503 normalization: case-fold and collapse separators.
		return normalizePEP503(name)
	default:
		return lower(name)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func normalizePEP503(s string) string {
	out := make([]byte, 0, len(s))
	lastDash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == '-' || c == '_' || c == '.' {
			if !lastDash {
				out = append(out, '-')
				lastDash = true
			}
			continue
		}
		out = append(out, c)
		lastDash = false
	}
	return string(out)
}

// Checksum is a content digest advertised by a registry for an artifact.
type Checksum struct {
	Type string // "sha256", "sha1", "md5"
	Hex  string
}

// ResolvedPackage is a PackageRef extended with everything needed to
// download and verify it.
type ResolvedPackage struct {
	PackageRef
	ResolvedVersion string
	URL             string
	Checksum        Checksum
	Size            int64 // 0 if unknown
	Registry        string
	Meta            map[string]any
}

// DependencyNode is one node in a resolved dependency tree.
type DependencyNode struct {
	Pkg      ResolvedPackage
	Children []*DependencyNode
	Scope    string // ecosystem-specific: Maven compile/runtime/test/provided/system
	Optional bool
	Depth    int
	Sequence int
}

// Conflict records two or more versions of the same (ecosystem, name)
// contending during resolution, and which one won.
type Conflict struct {
	Name               string
	ContendingVersions []string
	Winner             string
	Reason             string
}

// FailedRef records a dependency node that could not be resolved.
type FailedRef struct {
	Ref PackageRef
	Err error
}

// GraphResult is the output of a single ecosystem's transitive-closure
// resolution.
type GraphResult struct {
	Root      *DependencyNode
	FlatList  []ResolvedPackage
	Conflicts []Conflict
	Failed    []FailedRef
}

// JobState is the lifecycle state of a DownloadJob. Terminal states
// (Completed, Failed, Cancelled) are sticky: once reached, a job never
// transitions again.
type JobState string

const (
	Pending   JobState = "pending"
	Active    JobState = "active"
	Paused    JobState = "paused"
	Completed JobState = "completed"
	Failed    JobState = "failed"
	Cancelled JobState = "cancelled"
)

// Terminal reports whether s is one of the sticky terminal states.
func (s JobState) Terminal() bool {
	switch s {
	case Completed, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// DownloadJob tracks one package's download through the orchestrator.
type DownloadJob struct {
	Ref        PackageRef
	OutputPath string
	State      JobState
	BytesDone  int64
	BytesTotal int64
	SpeedBps   float64
	Err        error
}
