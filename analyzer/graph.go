package analyzer

import (
	"slices"

	"github.com/dhamidi/bundlegen/descriptors"
)

// UsesGraph holds the package dependency edges found while scanning. Keys
// are contained packages in discovery order.
type UsesGraph struct {
	keys  []*descriptors.PackageRef
	edges map[*descriptors.PackageRef]map[*descriptors.PackageRef]struct{}
}

func NewUsesGraph() *UsesGraph {
	return &UsesGraph{edges: make(map[*descriptors.PackageRef]map[*descriptors.PackageRef]struct{})}
}

// Add records from → to for every to other than from itself. from becomes a
// key even without edges.
func (g *UsesGraph) Add(from *descriptors.PackageRef, to ...*descriptors.PackageRef) {
	set, ok := g.edges[from]
	if !ok {
		set = make(map[*descriptors.PackageRef]struct{})
		g.edges[from] = set
		g.keys = append(g.keys, from)
	}
	for _, t := range to {
		if t != from {
			set[t] = struct{}{}
		}
	}
}

func (g *UsesGraph) Has(from *descriptors.PackageRef) bool {
	_, ok := g.edges[from]
	return ok
}

// Get returns the packages from uses, ordered by name.
func (g *UsesGraph) Get(from *descriptors.PackageRef) []*descriptors.PackageRef {
	set := g.edges[from]
	out := make([]*descriptors.PackageRef, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, (*descriptors.PackageRef).Compare)
	return out
}

func (g *UsesGraph) Uses(from, to *descriptors.PackageRef) bool {
	_, ok := g.edges[from][to]
	return ok
}

func (g *UsesGraph) Keys() []*descriptors.PackageRef { return slices.Clone(g.keys) }

func (g *UsesGraph) Len() int { return len(g.keys) }

// Reachable returns every package reachable from the roots, roots included
// when they are keys.
func (g *UsesGraph) Reachable(roots ...*descriptors.PackageRef) map[*descriptors.PackageRef]bool {
	seen := make(map[*descriptors.PackageRef]bool)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[p] {
			continue
		}
		seen[p] = true
		for q := range g.edges[p] {
			if !seen[q] {
				stack = append(stack, q)
			}
		}
	}
	return seen
}
