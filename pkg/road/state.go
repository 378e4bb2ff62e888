package road

import (
	"errors"
	"fmt"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/ids"
)

// State is the plain-data form of a graph used for snapshots. Segment spines
// are not part of it; Restore recomputes them.
type State struct {
	Counters ids.Counters
	Nodes    []Node    // ascending id order
	Segments []Segment // insertion order
	Trees    []Tree    // ascending id order
}

// State captures the graph.
func (g *Graph) State() State {
	segs := g.Segments()
	for i := range segs {
		segs[i].Spine = curve.SpinePoints{}
	}
	return State{
		Counters: g.Counters(),
		Nodes:    g.Nodes(),
		Segments: segs,
		Trees:    g.Trees(),
	}
}

// Restore rebuilds a graph from st and validates it.
func Restore(st State, opts ...Option) (*Graph, error) {
	g := New(opts...)
	g.reg.Restore(st.Counters)

	for _, n := range st.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate %s", n.ID)
		}
		if !g.reg.Nodes.Issued(n.ID.Uint64()) {
			return nil, fmt.Errorf("restore: %s not issued by counter %d", n.ID, st.Counters.NextNode)
		}
		g.insertNode(n.clone())
	}
	for _, s := range st.Segments {
		if _, dup := g.segments[s.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate %s", s.ID)
		}
		if !g.reg.Segments.Issued(s.ID.Uint64()) {
			return nil, fmt.Errorf("restore: %s not issued by counter %d", s.ID, st.Counters.NextSegment)
		}
		if s.Curve == nil {
			return nil, fmt.Errorf("restore: %s has no curve", s.ID)
		}
		c := s
		c.Spine = curve.ComputeSpine(s.Curve)
		g.insertSegment(&c)
	}
	for _, t := range st.Trees {
		if _, dup := g.trees[t.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate %s", t.ID)
		}
		if !g.reg.Trees.Issued(t.ID.Uint64()) {
			return nil, fmt.Errorf("restore: %s not issued by counter %d", t.ID, st.Counters.NextTree)
		}
		c := t
		g.trees[t.ID] = &c
	}

	if verrs := Validate(g); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, fmt.Errorf("restore: %w", errors.Join(errs...))
	}
	return g, nil
}
