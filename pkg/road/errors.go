package road

import (
	"errors"
	"fmt"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/ids"
)

var (
	ErrInvalidCurveConstraint = curve.ErrInvalidCurveConstraint
	ErrIdentifierExhausted    = ids.ErrIdentifierExhausted

	ErrNodeNotFound     = errors.New("node not found")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrSegmentTooShort  = errors.New("segment too short")
	ErrIncompatibleSnap = errors.New("incompatible snap")
	ErrInvalidBuilder   = errors.New("invalid road builder")
)

// Stage names the part of a builder a CommitError refers to.
type Stage int

const (
	StageBuilder Stage = iota
	StageNode
	StageSegment
)

func (s Stage) String() string {
	switch s {
	case StageBuilder:
		return "builder"
	case StageNode:
		return "node"
	case StageSegment:
		return "segment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CommitError reports why AddRoad rejected a builder. Index is the position
// of the offending descriptor in the builder as supplied (before any
// reversal), or -1 when the builder as a whole is at fault.
type CommitError struct {
	Stage Stage
	Index int
	Err   error
}

func (e *CommitError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("add road: %v", e.Err)
	}
	return fmt.Sprintf("add road: %s %d: %v", e.Stage, e.Index, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
