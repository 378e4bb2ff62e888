// Package ids provides category-tagged identifiers and their generators.
//
// An ID is parameterized by a zero-sized category marker, so a NodeID and a
// SegmentID are distinct types and cannot be confused at compile time.
// Identifiers are issued in strictly increasing order and are never reused.
package ids

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrIdentifierExhausted is returned when a generator has issued its last
// identifier. It is a capacity limit, not a logic error.
var ErrIdentifierExhausted = errors.New("identifier space exhausted")

// Category is implemented by the zero-sized marker types below.
type Category interface {
	category() string
}

// NodeCat tags road node identifiers.
type NodeCat struct{}

// SegmentCat tags road segment identifiers.
type SegmentCat struct{}

// TreeCat tags tree identifiers.
type TreeCat struct{}

// VehicleCat tags vehicle identifiers.
type VehicleCat struct{}

func (NodeCat) category() string    { return "node" }
func (SegmentCat) category() string { return "segment" }
func (TreeCat) category() string    { return "tree" }
func (VehicleCat) category() string { return "vehicle" }

// ID is an identifier within category C.
type ID[C Category] struct {
	v uint64
}

type (
	NodeID    = ID[NodeCat]
	SegmentID = ID[SegmentCat]
	TreeID    = ID[TreeCat]
	VehicleID = ID[VehicleCat]
)

// FromUint64 wraps a raw value. Only decoders should need it; live code gets
// identifiers from a Generator.
func FromUint64[C Category](v uint64) ID[C] {
	return ID[C]{v: v}
}

// Uint64 returns the raw value.
func (id ID[C]) Uint64() uint64 { return id.v }

// Less orders identifiers by issue order.
func (id ID[C]) Less(o ID[C]) bool { return id.v < o.v }

func (id ID[C]) String() string {
	var c C
	return c.category() + "#" + strconv.FormatUint(id.v, 10)
}

// MarshalJSON encodes the identifier as a bare number.
func (id ID[C]) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(id.v, 10)), nil
}

// UnmarshalJSON decodes a bare number.
func (id *ID[C]) UnmarshalJSON(b []byte) error {
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		var c C
		return fmt.Errorf("%s id: %w", c.category(), err)
	}
	id.v = v
	return nil
}

// Generator issues identifiers for one category.
// The zero value is ready to use and starts at 0.
type Generator[C Category] struct {
	next      uint64
	limit     uint64 // highest issuable value; 0 means math.MaxUint64
	exhausted bool
}

// NewGeneratorWithLimit returns a generator whose last issuable value is
// limit. Mostly useful in tests.
func NewGeneratorWithLimit[C Category](limit uint64) *Generator[C] {
	return &Generator[C]{limit: limit}
}

func (g *Generator[C]) max() uint64 {
	if g.limit == 0 {
		return math.MaxUint64
	}
	return g.limit
}

// Next issues the next identifier.
func (g *Generator[C]) Next() (ID[C], error) {
	if g.exhausted {
		var c C
		return ID[C]{}, fmt.Errorf("%s: %w", c.category(), ErrIdentifierExhausted)
	}
	id := ID[C]{v: g.next}
	if g.next == g.max() {
		g.exhausted = true
	} else {
		g.next++
	}
	return id, nil
}

// Reserve reports whether n more identifiers can be issued. It does not
// consume anything.
func (g *Generator[C]) Reserve(n int) error {
	if n <= 0 {
		return nil
	}
	if g.exhausted || uint64(n-1) > g.max()-g.next {
		var c C
		return fmt.Errorf("%s: need %d more: %w", c.category(), n, ErrIdentifierExhausted)
	}
	return nil
}

// Peek returns the value the next call to Next would issue.
func (g *Generator[C]) Peek() uint64 { return g.next }

// Exhausted reports whether the last identifier has been issued. Peek then
// returns that identifier's value.
func (g *Generator[C]) Exhausted() bool { return g.exhausted }

// Issued reports whether v has already been handed out.
func (g *Generator[C]) Issued(v uint64) bool {
	return v < g.next || (g.exhausted && v == g.next)
}

// Restore positions the generator so that the next issued value is next,
// or, when exhausted, so that nothing more is issued. Used when decoding
// snapshots.
func (g *Generator[C]) Restore(next uint64, exhausted bool) {
	g.next = next
	g.exhausted = exhausted
}

// Counters is the serializable state of a Registry.
type Counters struct {
	NextNode    uint64 `json:"next_node"`
	NextSegment uint64 `json:"next_segment"`
	NextTree    uint64 `json:"next_tree"`
	NextVehicle uint64 `json:"next_vehicle"`

	// An exhausted category has issued its last identifier, the matching
	// Next value.
	NodesExhausted    bool `json:"nodes_exhausted,omitempty"`
	SegmentsExhausted bool `json:"segments_exhausted,omitempty"`
	TreesExhausted    bool `json:"trees_exhausted,omitempty"`
	VehiclesExhausted bool `json:"vehicles_exhausted,omitempty"`
}

// Registry holds one generator per category.
type Registry struct {
	Nodes    Generator[NodeCat]
	Segments Generator[SegmentCat]
	Trees    Generator[TreeCat]
	Vehicles Generator[VehicleCat]
}

// Counters returns the next value of every generator.
func (r *Registry) Counters() Counters {
	return Counters{
		NextNode:    r.Nodes.Peek(),
		NextSegment: r.Segments.Peek(),
		NextTree:    r.Trees.Peek(),
		NextVehicle: r.Vehicles.Peek(),

		NodesExhausted:    r.Nodes.Exhausted(),
		SegmentsExhausted: r.Segments.Exhausted(),
		TreesExhausted:    r.Trees.Exhausted(),
		VehiclesExhausted: r.Vehicles.Exhausted(),
	}
}

// Restore resets every generator from c.
func (r *Registry) Restore(c Counters) {
	r.Nodes.Restore(c.NextNode, c.NodesExhausted)
	r.Segments.Restore(c.NextSegment, c.SegmentsExhausted)
	r.Trees.Restore(c.NextTree, c.TreesExhausted)
	r.Vehicles.Restore(c.NextVehicle, c.VehiclesExhausted)
}
