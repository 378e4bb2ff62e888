// Package road holds the authoritative road network: nodes, the segments
// between them, decorative trees, and the spatial index used to answer
// hit-testing and snapping queries.
//
// The graph is mutated only through AddRoad, RemoveSegment and the tree
// operations. AddRoad consumes a RoadBuilder and commits it all-or-nothing:
// every check runs before the first mutation, so a rejected builder leaves
// the graph untouched.
//
// A Graph is not safe for concurrent use. The editor package confines it to
// a single goroutine and publishes clones to readers.
package road
