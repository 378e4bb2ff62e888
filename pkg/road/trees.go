package road

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/ids"
)

// ErrOccupied is returned when a tree is placed on a road.
var ErrOccupied = errors.New("position is on a road")

// AddTree plants a tree at pos.
func (g *Graph) AddTree(pos v3.Vec) (ids.TreeID, error) {
	if sid, ok := g.SegmentInside(pos); ok {
		return ids.TreeID{}, fmt.Errorf("%w: %s", ErrOccupied, sid)
	}
	id, err := g.reg.Trees.Next()
	if err != nil {
		return ids.TreeID{}, err
	}
	t := &Tree{ID: id, Pos: pos}
	g.trees[id] = t
	g.emit([]Event{TreeAdded{Tree: *t}})
	return id, nil
}

// RemoveTree removes a tree. It returns false for unknown ids.
func (g *Graph) RemoveTree(id ids.TreeID) bool {
	if _, ok := g.trees[id]; !ok {
		return false
	}
	delete(g.trees, id)
	g.emit([]Event{TreeRemoved{ID: id}})
	return true
}

// clearTrees removes the trees standing on any of segs and returns the
// removal events in id order.
func (g *Graph) clearTrees(segs []*Segment) []Event {
	var gone []Tree
	for id, t := range g.trees {
		for _, s := range segs {
			if s.Contains(t.Pos) {
				gone = append(gone, *t)
				delete(g.trees, id)
				break
			}
		}
	}
	sortTrees(gone)
	events := make([]Event, len(gone))
	for i, t := range gone {
		events[i] = TreeRemoved{ID: t.ID}
	}
	return events
}
