package road

import (
	"fmt"
	"math"

	"github.com/chazu/asphalt/pkg/curve"
)

// Tier groups validation checks.
type Tier int

const (
	TierStructural Tier = iota // ids and adjacency
	TierGeometric              // spines, lengths, headings
)

func (t Tier) String() string {
	switch t {
	case TierStructural:
		return "structural"
	case TierGeometric:
		return "geometric"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Tier    Tier
	Subject string // e.g. "segment#4"; empty for graph-level findings
	Message string
}

func (e ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("[%s] %s", e.Tier, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Tier, e.Subject, e.Message)
}

// Validate checks that g is consistent. An empty result means the graph is
// valid. It never mutates the graph.
func Validate(g *Graph) []ValidationError {
	errs := validateStructure(g)
	// Geometry is only meaningful once every reference resolves.
	if len(errs) > 0 {
		return errs
	}
	return validateGeometry(g)
}

func validateStructure(g *Graph) []ValidationError {
	var errs []ValidationError
	add := func(subject, format string, args ...any) {
		errs = append(errs, ValidationError{Tier: TierStructural, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	if len(g.order) != len(g.segments) {
		add("", "insertion order lists %d segments, graph holds %d", len(g.order), len(g.segments))
	}

	for _, s := range g.Segments() {
		subj := s.ID.String()
		if !g.reg.Segments.Issued(s.ID.Uint64()) {
			add(subj, "id not yet issued")
		}
		if s.From == s.To {
			add(subj, "starts and ends at %s", s.From)
		}
		if from, ok := g.nodes[s.From]; !ok {
			add(subj, "from node %s does not exist", s.From)
		} else if out, ok := from.Slot(Out); !ok || out != s.ID {
			add(subj, "from node %s does not list it on its out side", s.From)
		}
		if to, ok := g.nodes[s.To]; !ok {
			add(subj, "to node %s does not exist", s.To)
		} else if in, ok := to.Slot(In); !ok || in != s.ID {
			add(subj, "to node %s does not list it on its in side", s.To)
		}
	}

	for _, n := range g.Nodes() {
		subj := n.ID.String()
		if !g.reg.Nodes.Issued(n.ID.Uint64()) {
			add(subj, "id not yet issued")
		}
		if n.Degree() == 0 {
			add(subj, "has no segments")
		}
		if id, ok := n.Slot(Out); ok {
			if s, ok := g.segments[id]; !ok {
				add(subj, "out side refers to missing %s", id)
			} else if s.From != n.ID {
				add(subj, "out side %s starts at %s", id, s.From)
			}
		}
		if id, ok := n.Slot(In); ok {
			if s, ok := g.segments[id]; !ok {
				add(subj, "in side refers to missing %s", id)
			} else if s.To != n.ID {
				add(subj, "in side %s ends at %s", id, s.To)
			}
		}
	}

	for _, t := range g.Trees() {
		if !g.reg.Trees.Issued(t.ID.Uint64()) {
			add(t.ID.String(), "id not yet issued")
		}
	}
	return errs
}

func validateGeometry(g *Graph) []ValidationError {
	var errs []ValidationError
	add := func(subject, format string, args ...any) {
		errs = append(errs, ValidationError{Tier: TierGeometric, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	for _, n := range g.Nodes() {
		subj := n.ID.String()
		if !n.Type.Valid() {
			add(subj, "lane type %s out of range", n.Type)
		}
		if math.Abs(n.Dir.Z) > 1e-9 || math.Abs(n.Dir.Length()-1) > 1e-6 {
			add(subj, "heading %v is not a horizontal unit vector", n.Dir)
		}
	}

	for _, s := range g.Segments() {
		subj := s.ID.String()
		from, to := g.nodes[s.From], g.nodes[s.To]
		if s.Type != from.Type || s.Type != to.Type {
			add(subj, "type %s differs from end nodes (%s, %s)", s.Type, from.Type, to.Type)
		}
		if l := s.Spine.Length(); l < RoadMinLength {
			add(subj, "length %.2f below minimum %.2f", l, RoadMinLength)
		}
		if d := s.Spine.First().Sub(from.Pos).Length(); d > NodeTolerance {
			add(subj, "spine starts %.3f from %s", d, s.From)
		}
		if d := s.Spine.Last().Sub(to.Pos).Length(); d > NodeTolerance {
			add(subj, "spine ends %.3f from %s", d, s.To)
		}
		d0, d1 := curve.EndDirections(s.Curve)
		if !curve.SameDirection(d0, from.Dir) {
			add(subj, "leaves %s along %v, node heading %v", s.From, d0, from.Dir)
		}
		if !curve.SameDirection(d1, to.Dir) {
			add(subj, "reaches %s along %v, node heading %v", s.To, d1, to.Dir)
		}
	}
	return errs
}
