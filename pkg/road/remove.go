package road

import "github.com/chazu/asphalt/pkg/ids"

// RemoveSegment deletes a segment and any endpoint node left without
// segments. It returns false if the segment does not exist or the removal
// policy refuses.
func (g *Graph) RemoveSegment(id ids.SegmentID) bool {
	s, ok := g.segments[id]
	if !ok {
		return false
	}
	if g.policy != nil {
		c := *s
		if !g.policy(g, &c) {
			return false
		}
	}

	g.deleteSegment(id)
	events := []Event{SegmentRemoved{ID: id}}
	for _, nid := range [...]ids.NodeID{s.From, s.To} {
		n, ok := g.nodes[nid]
		if !ok {
			continue
		}
		if n.Out != nil && *n.Out == id {
			n.Out = nil
		}
		if n.In != nil && *n.In == id {
			n.In = nil
		}
		if n.Degree() == 0 {
			g.deleteNode(nid)
			events = append(events, NodeRemoved{ID: nid})
		}
	}
	g.emit(events)
	return true
}

// ProtectSegments is a RemovalPolicy refusing removal of the listed
// segments.
func ProtectSegments(protected ...ids.SegmentID) RemovalPolicy {
	set := make(map[ids.SegmentID]bool, len(protected))
	for _, id := range protected {
		set[id] = true
	}
	return func(_ *Graph, s *Segment) bool { return !set[s.ID] }
}

// ProtectInnerSegments is a RemovalPolicy that lets roads shrink only from
// their ends: a segment with a neighbour at both end nodes stays.
func ProtectInnerSegments() RemovalPolicy {
	return func(g *Graph, s *Segment) bool {
		for _, id := range [...]ids.NodeID{s.From, s.To} {
			if inc, err := g.Incident(id); err == nil && len(inc) < 2 {
				return true
			}
		}
		return false
	}
}
