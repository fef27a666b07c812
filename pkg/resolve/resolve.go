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

// Package resolve implements the ecosystem-agnostic dependency resolution
// kernel (the "Skipper"): BFS-order nearest-wins tie-breaking, cycle
// detection, depth capping, and conflict bookkeeping used by the Maven,
// APT, YUM and APK adapters (PyPI, Conda and npm walk their graphs with
// their own visited sets and do not use it). The
// kernel never fetches anything itself -- it just decides, for a candidate
// dependency a caller is about to expand, whether to emit it, skip it, or
// record a conflict.
package resolve

import (
	"sync"
)

// SkipReason explains why a candidate was not expanded.
type SkipReason string

const (
	ReasonNone             SkipReason = ""
	ReasonAlreadyResolved  SkipReason = "already_resolved"
	ReasonVersionConflict  SkipReason = "version_conflict"
	ReasonCycle            SkipReason = "cycle"
	ReasonDepthExceeded    SkipReason = "depth_exceeded"
)

// Decision is the Skipper's verdict on a candidate dependency.
type Decision struct {
	Skip            bool
	Reason          SkipReason
	ForceResolution bool
}

// Candidate is a dependency edge about to be considered for expansion.
type Candidate struct {
	Name       string // (ecosystem, name) coordinate, caller-namespaced
	Version    string
	Depth      int
	Sequence   int // insertion counter; lower wins at equal depth
	ParentPath []string // ancestor names, nearest-last, for cycle detection
}

// resolution is what the Skipper remembers once it has committed to a
// winning version for a name.
type resolution struct {
	version  string
	depth    int
	sequence int
}

// Skipper is the decision component of the resolution kernel. It is NOT
// safe for concurrent Candidate submission without external
// synchronization on enqueue order -- spec.md requires BFS queue order to
// be FIFO-stable for "nearest wins" to be deterministic, so callers
// serialize their own enqueue step and call Decide per-candidate from
// there. The resolved-version map itself is guarded by a mutex since
// multiple in-flight fetches may call GetResolvedVersion concurrently.
type Skipper struct {
	MaxDepth int

	mu        sync.Mutex
	resolved  map[string]resolution
	conflicts []Conflict

	stats Stats
}

// Conflict mirrors courier.Conflict without importing it, so this package
// has no dependency on the courier value package -- callers translate.
type Conflict struct {
	Name               string
	ContendingVersions []string
	Winner             string
	Reason             string
}

// Stats exposes resolution-kernel counters per spec.md §4.9.
type Stats struct {
	Resolved         int
	SkippedDuplicate int
	SkippedConflict  int
	CyclesBroken     int
}

// New returns a Skipper with the given per-ecosystem depth cap.
func New(maxDepth int) *Skipper {
	return &Skipper{MaxDepth: maxDepth, resolved: make(map[string]resolution)}
}

// Reset clears all kernel state. Called at the start of every resolve call
// per spec.md §5 ("resolution kernel state is cleared at the start of
// every resolve call -- a resolve call is single-threaded with respect to
// its own state").
func (s *Skipper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = make(map[string]resolution)
	s.conflicts = nil
	s.stats = Stats{}
}

// Decide evaluates a candidate against current kernel state and returns
// whether it should be skipped, per spec.md §4.9's contract.
func (s *Skipper) Decide(c Candidate) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MaxDepth > 0 && c.Depth > s.MaxDepth {
		s.stats.SkippedConflict++ // depth caps are reported alongside other skips
		return Decision{Skip: true, Reason: ReasonDepthExceeded}
	}
	for _, p := range c.ParentPath {
		if p == c.Name {
			s.stats.CyclesBroken++
			return Decision{Skip: true, Reason: ReasonCycle}
		}
	}
	existing, ok := s.resolved[c.Name]
	if !ok {
		return Decision{Skip: false}
	}
	if existing.version == c.Version {
		s.stats.SkippedDuplicate++
		return Decision{Skip: true, Reason: ReasonAlreadyResolved}
	}
	// Version conflict: nearest-and-first wins. The existing resolution
	// only loses if the candidate is strictly nearer (smaller depth) or
	// tied-depth-but-earlier (smaller sequence).
	nearer := c.Depth < existing.depth || (c.Depth == existing.depth && c.Sequence < existing.sequence)
	s.stats.SkippedConflict++
	s.recordConflictLocked(c.Name, []string{existing.version, c.Version}, existing.version)
	return Decision{Skip: true, Reason: ReasonVersionConflict, ForceResolution: nearer}
}

// recordConflictLocked appends a Conflict entry. Per spec.md §9's flagged
// "possibly-buggy" open question, Winner is recorded as whatever the
// Skipper *currently* holds as resolved at record time -- in the normal
// nearest-wins path that's the true winner, but a ForceResolution path
// that later calls RecordResolved with the nearer candidate can leave an
// earlier Conflict entry's Winner field pointing at the version that's
// about to be superseded. This ambiguity is preserved deliberately, not
// fixed (see DESIGN.md).
func (s *Skipper) recordConflictLocked(name string, versions []string, winner string) {
	s.conflicts = append(s.conflicts, Conflict{
		Name:               name,
		ContendingVersions: versions,
		Winner:             winner,
		Reason:             string(ReasonVersionConflict),
	})
}

// RecordResolved commits a name to a winning version at the given
// depth/sequence. Callers call this once for every candidate that Decide
// said not to skip, and again for a ForceResolution candidate that
// supersedes an earlier loser.
func (s *Skipper) RecordResolved(name, version string, depth, sequence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[name] = resolution{version: version, depth: depth, sequence: sequence}
	s.stats.Resolved++
}

// GetResolvedVersion returns the winning version for name, if any.
func (s *Skipper) GetResolvedVersion(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resolved[name]
	return r.version, ok
}

// Conflicts returns a snapshot of every conflict recorded so far.
func (s *Skipper) Conflicts() []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

// StatsSnapshot returns a copy of the current counters.
func (s *Skipper) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
