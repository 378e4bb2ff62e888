package road

import (
	"sort"

	v2vec "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/asphalt/pkg/ids"
)

func v2(x, y float64) v2vec.Vec { return v2vec.Vec{X: x, Y: y} }

// planarUnit returns the horizontal unit vector along v, or zero.
func planarUnit(v v3.Vec) v3.Vec {
	v.Z = 0
	l := v.Length()
	if l < 1e-9 {
		return v3.Vec{}
	}
	return v.MulScalar(1 / l)
}

func sortNodeIDs(s []ids.NodeID) {
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
}

func sortSegmentIDs(s []ids.SegmentID) {
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
}

func sortInts(s []int) { sort.Ints(s) }

func sortTrees(s []Tree) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID.Less(s[j].ID) })
}
