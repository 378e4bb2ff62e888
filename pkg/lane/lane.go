// Package lane describes the cross-section of a road: how wide each lane is
// and how many lanes there are.
package lane

import (
	"errors"
	"fmt"
	"strings"
)

// Width enumerates lane widths. The declaration order is the cycling order.
type Width int

const (
	Narrow Width = iota
	Standard
	Wide

	numWidths = 3
)

var widthNames = [...]string{"narrow", "standard", "wide"}

// Metres returns the width of a single lane.
func (w Width) Metres() float64 {
	switch w {
	case Narrow:
		return 2.5
	case Standard:
		return 3.0
	case Wide:
		return 3.5
	default:
		return 0
	}
}

// Next returns the following width, wrapping around.
func (w Width) Next() Width { return Width((int(w) + 1) % numWidths) }

// Prev returns the preceding width, wrapping around.
func (w Width) Prev() Width { return Width((int(w) + numWidths - 1) % numWidths) }

// Valid reports whether w is one of the declared widths.
func (w Width) Valid() bool { return w >= Narrow && w <= Wide }

func (w Width) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Width(%d)", int(w))
	}
	return widthNames[w]
}

// ParseWidth accepts the names returned by String, case-insensitively.
func ParseWidth(s string) (Width, error) {
	for i, n := range widthNames {
		if strings.EqualFold(s, n) {
			return Width(i), nil
		}
	}
	return 0, fmt.Errorf("invalid lane width %q, expected narrow, standard or wide", s)
}

// MarshalText implements encoding.TextMarshaler.
func (w Width) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid lane width %d", int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Width) UnmarshalText(b []byte) error {
	v, err := ParseWidth(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Lane count bounds.
const (
	MinLanes = 1
	MaxLanes = 6
)

// Count is a number of lanes in [MinLanes, MaxLanes].
type Count int

// Clamp forces c into the valid range.
func (c Count) Clamp() Count {
	switch {
	case c < MinLanes:
		return MinLanes
	case c > MaxLanes:
		return MaxLanes
	default:
		return c
	}
}

// Valid reports whether c is in range.
func (c Count) Valid() bool { return c >= MinLanes && c <= MaxLanes }

// Next steps the count downwards, wrapping from MinLanes to MaxLanes.
// The direction is inverted relative to Width.Next; tool bindings depend on it.
func (c Count) Next() Count {
	c = c.Clamp()
	if c == MinLanes {
		return MaxLanes
	}
	return c - 1
}

// Prev steps the count upwards, wrapping from MaxLanes to MinLanes.
func (c Count) Prev() Count {
	c = c.Clamp()
	if c == MaxLanes {
		return MinLanes
	}
	return c + 1
}

// ErrTransitionUnsupported is the reason given when two node types differ
// only in lane count. Widening and narrowing transitions are not built yet.
var ErrTransitionUnsupported = errors.New("lane count transition not supported")

// NodeType is the lane configuration shared by a node and the segments that
// attach to it.
type NodeType struct {
	Width Width `json:"width" yaml:"width"`
	Count Count `json:"count" yaml:"count"`
}

// NewNodeType returns a node type with the count clamped into range.
func NewNodeType(w Width, c Count) NodeType {
	return NodeType{Width: w, Count: c.Clamp()}
}

// RoadWidth is the full width of the carriageway.
func (t NodeType) RoadWidth() float64 {
	return t.Width.Metres() * float64(t.Count)
}

// Valid reports whether both fields are in range.
func (t NodeType) Valid() bool { return t.Width.Valid() && t.Count.Valid() }

// Compatible returns nil if a segment of type o may attach to a node of
// type t.
func (t NodeType) Compatible(o NodeType) error {
	if t.Width != o.Width {
		return fmt.Errorf("lane width %s does not match %s", o.Width, t.Width)
	}
	if t.Count != o.Count {
		return fmt.Errorf("%d lanes onto %d: %w", o.Count, t.Count, ErrTransitionUnsupported)
	}
	return nil
}

func (t NodeType) String() string {
	return fmt.Sprintf("%dx%s", t.Count, t.Width)
}
