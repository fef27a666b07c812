// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package npm

import (
	"context"
	"sort"

	"github.com/airgapcourier/depssmuggler/internal/npmrange"
)

// Node is one placed package in a hoisted node_modules tree: a concrete
// name/version pinned at some node_modules layer, with its own nested
// node_modules (Children) for anything that couldn't be hoisted above it.
// The tree's root Node has an empty Name and represents the project's own
// top-level node_modules.
type Node struct {
	Name     string
	Version  string
	Children map[string]*Node
}

func newNode(name, version string) *Node {
	return &Node{Name: name, Version: version, Children: map[string]*Node{}}
}

// Installer builds a hoisted dependency tree against a backing Registry.
type Installer struct {
	Registry Registry
}

func NewInstaller(r Registry) *Installer {
	return &Installer{Registry: r}
}

// Hoist resolves deps (a project's direct dependency name->spec map) into a
// node_modules tree per spec.md §4.6: to install (name, version) under a
// parent node, walk up ancestor node_modules layers and reuse a compatible
// already-placed version if one exists (hoist); otherwise place the
// package at the shallowest ancestor layer with no conflicting entry for
// that name; otherwise nest it directly under its importer. Failures
// resolving a required dependency are recorded in failed and otherwise
// don't block the rest of the tree; failures resolving an optional
// dependency are silently dropped.
func (in *Installer) Hoist(ctx context.Context, deps map[string]string) (root *Node, failed []string, err error) {
	root = newNode("", "")
	for _, name := range sortedKeys(deps) {
		in.install(ctx, name, deps[name], []*Node{root}, &failed, false)
	}
	return root, failed, nil
}

func (in *Installer) install(ctx context.Context, name, spec string, chain []*Node, failed *[]string, optional bool) {
	// Cycle guard: don't re-descend into a name already present somewhere
	// in the chain of nodes we're nested under -- the ancestor placement
	// is that node's own resolution already in progress.
	for _, n := range chain {
		if n.Name == name {
			return
		}
	}
	// Walk up from the immediate parent to the root looking for a
	// compatible version already placed: that's the hoist-reuse case, no
	// new node needed.
	for i := len(chain) - 1; i >= 0; i-- {
		if existing, ok := chain[i].Children[name]; ok && npmrange.Matches(spec, existing.Version) {
			return
		}
	}
	// Otherwise place at the shallowest ancestor layer with no entry for
	// name at all; falling back to nesting directly under the immediate
	// parent if every layer already has a conflicting entry.
	target := chain[len(chain)-1]
	targetChain := chain
	for i := 0; i < len(chain); i++ {
		if _, ok := chain[i].Children[name]; !ok {
			target = chain[i]
			targetChain = chain[:i+1]
			break
		}
	}
	pkg, err := in.Registry.Package(ctx, name)
	if err != nil {
		if !optional {
			*failed = append(*failed, name)
		}
		return
	}
	version, err := ResolveVersion(pkg, spec)
	if err != nil {
		if !optional {
			*failed = append(*failed, name)
		}
		return
	}
	node := newNode(name, version)
	target.Children[name] = node
	nextChain := append(append([]*Node{}, targetChain...), node)
	rel := pkg.Versions[version]
	for _, dep := range sortedKeys(rel.Dependencies) {
		in.install(ctx, dep, rel.Dependencies[dep], nextChain, failed, false)
	}
	for _, dep := range sortedKeys(rel.OptionalDependencies) {
		in.install(ctx, dep, rel.OptionalDependencies[dep], nextChain, failed, true)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten walks the tree depth-first, returning every placed node's
// name/version pair along with its node_modules path (the chain of names
// from the root down to the node itself).
func Flatten(root *Node) []FlatEntry {
	var out []FlatEntry
	var walk func(n *Node, path []string)
	walk = func(n *Node, path []string) {
		for _, name := range sortedNodeKeys(n.Children) {
			child := n.Children[name]
			childPath := append(append([]string{}, path...), child.Name)
			out = append(out, FlatEntry{Name: child.Name, Version: child.Version, Path: childPath})
			walk(child, childPath)
		}
	}
	walk(root, nil)
	return out
}

// FlatEntry is one package placement in a flattened hoisted tree.
type FlatEntry struct {
	Name    string
	Version string
	Path    []string
}

func sortedNodeKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
