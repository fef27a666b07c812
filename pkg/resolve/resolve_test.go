package resolve

import (
	"context"
	"testing"
)

func TestNearestWinsDiamond(t *testing.T) {
	// R -> A -> X@1
	// R -> B -> X@2
	// A enqueued before B; X's winning version should be 1.
	s := New(20)
	type node struct{ name, version string }
	roots := []Candidate{
		{Name: "A", Version: "1"},
		{Name: "B", Version: "1"},
	}
	children := map[string][]Candidate{
		"A": {{Name: "X", Version: "1"}},
		"B": {{Name: "X", Version: "2"}},
	}
	nodes, failed := BFS(context.Background(), s, roots, 4, func(ctx context.Context, c Candidate) (node, []Candidate, error) {
		return node{c.Name, c.Version}, children[c.Name], nil
	})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	winner, ok := s.GetResolvedVersion("X")
	if !ok || winner != "1" {
		t.Errorf("X resolved to %q, want 1", winner)
	}
	var sawXTwice int
	for _, n := range nodes {
		if n.Candidate.Name == "X" {
			sawXTwice++
		}
	}
	if sawXTwice != 1 {
		t.Errorf("expected X expanded exactly once, got %d", sawXTwice)
	}
	conflicts := s.Conflicts()
	if len(conflicts) != 1 || conflicts[0].Name != "X" {
		t.Fatalf("expected one conflict for X, got %+v", conflicts)
	}
}

func TestCycleDetection(t *testing.T) {
	s := New(20)
	type node struct{ name string }
	roots := []Candidate{{Name: "A", Version: "1"}}
	// A depends on B, B depends on A -- a cycle.
	deps := map[string][]Candidate{
		"A": {{Name: "B", Version: "1"}},
		"B": {{Name: "A", Version: "1"}},
	}
	_, failed := BFS(context.Background(), s, roots, 4, func(ctx context.Context, c Candidate) (node, []Candidate, error) {
		return node{c.Name}, deps[c.Name], nil
	})
	if len(failed) != 0 {
		t.Fatalf("cycle should be skipped silently, not failed: %v", failed)
	}
	if s.StatsSnapshot().CyclesBroken == 0 {
		t.Errorf("expected a cycle to be recorded")
	}
}

func TestDepthCap(t *testing.T) {
	s := New(2)
	type node struct{ name string }
	roots := []Candidate{{Name: "L0", Version: "1"}}
	nodes, _ := BFS(context.Background(), s, roots, 4, func(ctx context.Context, c Candidate) (node, []Candidate, error) {
		next := fmtNext(c.Name)
		return node{c.Name}, []Candidate{{Name: next, Version: "1"}}, nil
	})
	for _, n := range nodes {
		if n.Candidate.Depth > 2 {
			t.Errorf("node %q exceeded depth cap: depth=%d", n.Candidate.Name, n.Candidate.Depth)
		}
	}
}

func fmtNext(name string) string {
	return name + "+"
}

func TestRecordResolvedAndGetResolvedVersion(t *testing.T) {
	s := New(10)
	s.RecordResolved("X", "1.0", 1, 0)
	v, ok := s.GetResolvedVersion("X")
	if !ok || v != "1.0" {
		t.Fatalf("got %q, %v", v, ok)
	}
	if _, ok := s.GetResolvedVersion("Y"); ok {
		t.Errorf("expected Y unresolved")
	}
}

func TestResetClearsState(t *testing.T) {
	s := New(10)
	s.RecordResolved("X", "1.0", 0, 0)
	s.Reset()
	if _, ok := s.GetResolvedVersion("X"); ok {
		t.Errorf("expected state cleared after Reset")
	}
	if s.StatsSnapshot() != (Stats{}) {
		t.Errorf("expected stats cleared after Reset")
	}
}
