package road

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/lane"
)

// SnapConfig is one way a new road can attach to an existing node. Dir is
// the heading a new road takes when leaving the node through Side: the node
// heading for Out, its reverse for In.
type SnapConfig struct {
	Node ids.NodeID
	Side Side
	Pos  v3.Vec
	Dir  v3.Vec
	Type lane.NodeType
}

func (c SnapConfig) String() string {
	return fmt.Sprintf("%s/%s", c.Node, c.Side)
}

// snapConfigs lists the open sides of n that accept roads of type t, In
// before Out.
func snapConfigs(n *Node, t lane.NodeType) []SnapConfig {
	if n.Type.Compatible(t) != nil {
		return nil
	}
	var out []SnapConfig
	for _, side := range [...]Side{In, Out} {
		if _, taken := n.Slot(side); taken {
			continue
		}
		dir := n.Dir
		if side == In {
			dir = dir.MulScalar(-1)
		}
		out = append(out, SnapConfig{Node: n.ID, Side: side, Pos: n.Pos, Dir: dir, Type: n.Type})
	}
	return out
}

// SnapConfigs returns the ways a road of type t can attach to node id.
func (g *Graph) SnapConfigs(id ids.NodeID, t lane.NodeType) ([]SnapConfig, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNodeNotFound)
	}
	return snapConfigs(n, t), nil
}

// PossibleSnapNodes returns, in ascending id order, the nodes with an open
// side accepting type t. A nil side accepts either.
func (g *Graph) PossibleSnapNodes(side *Side, t lane.NodeType) []ids.NodeID {
	var out []ids.NodeID
	for id, n := range g.nodes {
		for _, c := range snapConfigs(n, t) {
			if side == nil || c.Side == *side {
				out = append(out, id)
				break
			}
		}
	}
	sortNodeIDs(out)
	return out
}

// SnapConfigsClosestNode finds the node nearest to ground within SnapRadius
// and lists its snap configurations for t. Ties go to the lower id. The
// list may be empty when the nearest node has no compatible open side.
func (g *Graph) SnapConfigsClosestNode(ground v3.Vec, t lane.NodeType) (ids.NodeID, []SnapConfig, bool) {
	var (
		best  ids.NodeID
		bestD = SnapRadius
		found bool
	)
	for _, id := range g.index.nodesNear(ground, SnapRadius) {
		d := g.nodes[id].Pos.Sub(ground).Length()
		if d > SnapRadius {
			continue
		}
		if !found || d < bestD || (d == bestD && id.Less(best)) {
			best, bestD, found = id, d, true
		}
	}
	if !found {
		return ids.NodeID{}, nil, false
	}
	return best, snapConfigs(g.nodes[best], t), true
}
