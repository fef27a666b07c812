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

package resolve

import (
	"context"

	"github.com/airgapcourier/depssmuggler/internal/parallel"
)

// Expander fetches the direct children of a candidate that the Skipper has
// decided to expand. It returns the resolved node value plus its direct
// dependency edges, which the BFS driver re-enqueues at depth+1.
type Expander[T any] func(ctx context.Context, c Candidate) (node T, children []Candidate, err error)

// Edge pairs an expanded node's value with the Candidate that produced it,
// so callers can assemble a DependencyNode tree afterward.
type Edge[T any] struct {
	Candidate Candidate
	Node      T
	Err       error
}

// BFS drives a breadth-first expansion of roots using the Skipper for
// nearest-wins tie-breaking and cycle/depth enforcement. Each level is
// expanded with bounded concurrency (limit); levels are processed strictly
// in sequence so enqueue order (and therefore "nearest wins") stays FIFO
// across the whole run, per spec.md §5's ordering guarantee. Expander
// errors are recorded in the returned failed slice rather than aborting
// the whole traversal, matching the "record and continue" propagation
// policy.
func BFS[T any](ctx context.Context, s *Skipper, roots []Candidate, limit int, expand Expander[T]) (nodes []Edge[T], failed []Candidate) {
	seq := 0
	for i := range roots {
		roots[i].Sequence = seq
		seq++
	}
	frontier := roots
	for len(frontier) > 0 {
		type result struct {
			c        Candidate
			skipped  bool
			node     T
			children []Candidate
			err      error
		}
		// Decide and claim serially in Sequence order, so same-level
		// candidates for one name never race; only expansion runs in parallel.
		var claimed []Candidate
		for _, c := range frontier {
			d := s.Decide(c)
			if d.Skip && !d.ForceResolution {
				continue
			}
			s.RecordResolved(c.Name, c.Version, c.Depth, c.Sequence)
			claimed = append(claimed, c)
		}
		results, _ := parallel.Map(ctx, claimed, limit, func(ctx context.Context, c Candidate) (result, error) {
			node, children, err := expand(ctx, c)
			if err != nil {
				return result{c: c, err: err}, nil
			}
			return result{c: c, node: node, children: children}, nil
		})
		var next []Candidate
		for _, r := range results {
			switch {
			case r.skipped:
				continue
			case r.err != nil:
				failed = append(failed, r.c)
			default:
				nodes = append(nodes, Edge[T]{Candidate: r.c, Node: r.node})
				for _, child := range r.children {
					child.Depth = r.c.Depth + 1
					child.Sequence = seq
					seq++
					child.ParentPath = append(append([]string{}, r.c.ParentPath...), r.c.Name)
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
	return nodes, failed
}
