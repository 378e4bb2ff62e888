package engine

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/asphalt/pkg/curve"
	"github.com/chazu/asphalt/pkg/editor"
	"github.com/chazu/asphalt/pkg/ids"
	"github.com/chazu/asphalt/pkg/lane"
	"github.com/chazu/asphalt/pkg/road"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites road script source for zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword".
//  2. kebab-case identifiers become snake_case (segment-at -> segment_at),
//     since zygomys reads a hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	b := []byte(source)
	var out strings.Builder
	out.Grow(len(b) + len(b)/4)

	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out.Write(b[i:j])
			i = j

		case c == ';':
			out.WriteString("//")
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out.WriteByte(b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out.WriteString(":=")
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out.WriteString(`"` + kwPrefix)
			out.Write(b[i+1 : j])
			out.WriteByte('"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out.WriteByte('_')
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// skipString returns the index just past the string literal opening at i.
// Double-quoted strings honour backslash escapes; backtick strings do not.
func skipString(b []byte, i int) int {
	q := b[i]
	j := i + 1
	for j < len(b) && b[j] != q {
		if q == '"' && b[j] == '\\' {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	if j > len(b) {
		j = len(b)
	}
	return j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpLanes wraps a road type.
type sexpLanes struct {
	t lane.NodeType
}

func (l *sexpLanes) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(lanes :%s %d)", l.t.Width, l.t.Count)
}
func (l *sexpLanes) Type() *zygo.RegisteredType { return nil }

// sexpSnap is an existing node a road can attach to, with the sides that
// were open when it was looked up.
type sexpSnap struct {
	node    ids.NodeID
	configs []road.SnapConfig
}

func (s *sexpSnap) SexpString(ps *zygo.PrintState) string {
	sides := make([]string, len(s.configs))
	for i, c := range s.configs {
		sides[i] = c.Side.String()
	}
	return fmt.Sprintf("(snap %s %s)", s.node, strings.Join(sides, "|"))
}
func (s *sexpSnap) Type() *zygo.RegisteredType { return nil }

// pick returns the config for the wanted side, or the first of prefer that
// is open when want is nil.
func (s *sexpSnap) pick(want *road.Side, prefer ...road.Side) (road.SnapConfig, error) {
	if want != nil {
		prefer = []road.Side{*want}
	}
	for _, side := range prefer {
		for _, c := range s.configs {
			if c.Side == side {
				return c, nil
			}
		}
	}
	return road.SnapConfig{}, fmt.Errorf("%s has no open side usable here", s.node)
}

func snapOf(c *road.SnapConfig) zygo.Sexp {
	if c == nil {
		return zygo.SexpNull
	}
	return &sexpSnap{node: c.Node, configs: []road.SnapConfig{*c}}
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toUint64 extracts a non-negative integer.
func toUint64(s zygo.Sexp) (uint64, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
	}
	if v.Val < 0 {
		return 0, fmt.Errorf("expected non-negative integer, got %d", v.Val)
	}
	return uint64(v.Val), nil
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toLanes(s zygo.Sexp) (lane.NodeType, error) {
	if l, ok := s.(*sexpLanes); ok {
		return l.t, nil
	}
	return lane.NodeType{}, fmt.Errorf("expected lanes, got %T (%s)", s, s.SexpString(nil))
}

func toCurveType(s zygo.Sexp) (curve.Type, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	return curve.ParseType(name)
}

func toSide(s zygo.Sexp) (road.Side, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, err
	}
	switch name {
	case "in":
		return road.In, nil
	case "out":
		return road.Out, nil
	}
	return 0, fmt.Errorf("invalid side %q, expected in or out", name)
}

// ---------------------------------------------------------------------------
// Session state
// ---------------------------------------------------------------------------

// session is the graph a script draws on plus the commands it issued.
type session struct {
	g     *road.Graph
	lanes lane.NodeType
	cmds  []editor.Cmd
}

// point is a road end: either a free position or an existing node.
type point struct {
	pos  v3.Vec
	snap *sexpSnap
}

func toPoint(s zygo.Sexp) (point, error) {
	switch v := s.(type) {
	case *sexpVec3:
		return point{pos: v.vec}, nil
	case *sexpSnap:
		return point{snap: v}, nil
	}
	return point{}, fmt.Errorf("expected vec3 or snap, got %T (%s)", s, s.SexpString(nil))
}

// desc turns p into a builder node. A snap leaves from Out or arrives at In
// unless only the other side is open.
func (p point) desc(t lane.NodeType, first bool) (road.NodeDesc, error) {
	if p.snap == nil {
		return road.NewNode{Pos: p.pos, Type: t}, nil
	}
	side := road.In
	if first {
		side = road.Out
	}
	c, err := p.snap.pick(nil, side, side.Opposite())
	if err != nil {
		return nil, err
	}
	return road.SnapNode{Config: c}, nil
}

// stage fits a road of type typ through pts. The builder is reversed when
// its ends attach in the opposite direction of travel.
func (s *session) stage(typ curve.Type, t lane.NodeType, pts []point) (road.RoadBuilder, error) {
	descs := make([]road.NodeDesc, len(pts))
	for i, p := range pts {
		d, err := p.desc(t, i == 0)
		if err != nil {
			return road.RoadBuilder{}, err
		}
		descs[i] = d
	}
	b, err := road.FitRoad(typ, t, descs...)
	if err != nil {
		return road.RoadBuilder{}, err
	}
	if sn, ok := descs[0].(road.SnapNode); ok && sn.Config.Side == road.In {
		b.Reverse = true
	}
	if sn, ok := descs[len(descs)-1].(road.SnapNode); ok && sn.Config.Side == road.Out {
		b.Reverse = true
	}
	return b, nil
}

// commit applies b and records it.
func (s *session) commit(b road.RoadBuilder, t lane.NodeType) (*road.SnapConfig, error) {
	cont, _, err := s.g.AddRoad(b, t)
	if err != nil {
		return nil, err
	}
	s.cmds = append(s.cmds, editor.AddCmd{Builder: b, Sel: t})
	return cont, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the road DSL builtins into a zygomys environment.
// They draw on s.g as the script runs.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *session) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (lanes :wide 3)
	// -----------------------------------------------------------------------
	env.AddFunction("lanes", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("lanes requires a width and a count, got %d arguments", len(args))
		}
		wname, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lanes: width: %w", err)
		}
		w, err := lane.ParseWidth(wname)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lanes: %w", err)
		}
		n, err := toUint64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lanes: count: %w", err)
		}
		t := lane.NewNodeType(w, lane.Count(n))
		if !t.Valid() {
			return zygo.SexpNull, fmt.Errorf("lanes: count %d outside %d..%d", n, lane.MinLanes, lane.MaxLanes)
		}
		return &sexpLanes{t: t}, nil
	})

	// -----------------------------------------------------------------------
	// (road p0 p1 ... :curve :circular :lanes (lanes :standard 2))
	//
	// Commits all legs at once and returns the continuation snap, or nil.
	// -----------------------------------------------------------------------
	env.AddFunction("road", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("road requires at least 2 points, got %d", len(pa.positional))
		}
		typ := curve.TypeStraight
		if v, ok := pa.kw["curve"]; ok {
			c, err := toCurveType(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("road: curve: %w", err)
			}
			typ = c
		}
		t := s.lanes
		if v, ok := pa.kw["lanes"]; ok {
			l, err := toLanes(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("road: lanes: %w", err)
			}
			t = l
		}
		pts := make([]point, len(pa.positional))
		for i, a := range pa.positional {
			p, err := toPoint(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("road: point %d: %w", i, err)
			}
			pts[i] = p
		}

		b, err := s.stage(typ, t, pts)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("road: %w", err)
		}
		cont, err := s.commit(b, t)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("road: %w", err)
		}
		return snapOf(cont), nil
	})

	// -----------------------------------------------------------------------
	// (chain start :straight p1 p2 :circular p3 :lanes (lanes :wide 1) p4)
	//
	// Commits one leg per point, each continuing from the previous one. A
	// curve keyword or :lanes applies to the legs after it.
	// -----------------------------------------------------------------------
	env.AddFunction("chain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("chain requires a start and at least one point")
		}
		from, err := toPoint(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("chain: start: %w", err)
		}
		typ := curve.TypeStraight
		t := s.lanes
		var cont *road.SnapConfig
		legs := 0
		for i := 1; i < len(args); i++ {
			if kw, ok := isKW(args[i]); ok {
				if kw == "lanes" {
					if i+1 >= len(args) {
						return zygo.SexpNull, fmt.Errorf("chain: :lanes needs a value")
					}
					l, err := toLanes(args[i+1])
					if err != nil {
						return zygo.SexpNull, fmt.Errorf("chain: lanes: %w", err)
					}
					t = l
					i++
					continue
				}
				c, err := curve.ParseType(kw)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("chain: %w", err)
				}
				typ = c
				continue
			}
			to, err := toPoint(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("chain: point %d: %w", i, err)
			}
			b, err := s.stage(typ, t, []point{from, to})
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("chain: leg %d: %w", legs, err)
			}
			cont, err = s.commit(b, t)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("chain: leg %d: %w", legs, err)
			}
			legs++
			if cont == nil {
				if i+1 < len(args) {
					return zygo.SexpNull, fmt.Errorf("chain: leg %d ends on a node with no open side", legs-1)
				}
				return zygo.SexpNull, nil
			}
			from = point{snap: &sexpSnap{node: cont.Node, configs: []road.SnapConfig{*cont}}}
		}
		if legs == 0 {
			return zygo.SexpNull, fmt.Errorf("chain requires at least one point")
		}
		return snapOf(cont), nil
	})

	// -----------------------------------------------------------------------
	// (snap (vec3 20 0 0) :side :out :lanes (lanes :standard 2))
	//
	// The closest node within the snap radius with an open side accepting
	// the road type.
	// -----------------------------------------------------------------------
	env.AddFunction("snap", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("snap requires a position")
		}
		pos, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("snap: %w", err)
		}
		t := s.lanes
		if v, ok := pa.kw["lanes"]; ok {
			if t, err = toLanes(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("snap: lanes: %w", err)
			}
		}
		id, configs, ok := s.g.SnapConfigsClosestNode(pos, t)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("snap: no node within %g of %v", road.SnapRadius, pos)
		}
		if len(configs) == 0 {
			return zygo.SexpNull, fmt.Errorf("snap: %s has no open side for %s roads", id, t)
		}
		sn := &sexpSnap{node: id, configs: configs}
		if v, ok := pa.kw["side"]; ok {
			side, err := toSide(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("snap: side: %w", err)
			}
			c, err := sn.pick(&side)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("snap: %w", err)
			}
			sn.configs = []road.SnapConfig{c}
		}
		return sn, nil
	})

	// -----------------------------------------------------------------------
	// (remove-segment 3)
	// -----------------------------------------------------------------------
	env.AddFunction("remove_segment", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove-segment requires a segment id")
		}
		n, err := toUint64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove-segment: %w", err)
		}
		id := ids.FromUint64[ids.SegmentCat](n)
		ok := s.g.RemoveSegment(id)
		if ok {
			s.cmds = append(s.cmds, editor.RemoveCmd{ID: id})
		}
		return &zygo.SexpBool{Val: ok}, nil
	})

	// -----------------------------------------------------------------------
	// (segment-at (vec3 10 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("segment_at", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("segment-at requires a position")
		}
		pos, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("segment-at: %w", err)
		}
		id, ok := s.g.SegmentInside(pos)
		if !ok {
			return zygo.SexpNull, nil
		}
		return &zygo.SexpInt{Val: int64(id.Uint64())}, nil
	})

	// -----------------------------------------------------------------------
	// (tree (vec3 5 30 0))
	// -----------------------------------------------------------------------
	env.AddFunction("tree", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("tree requires a position")
		}
		pos, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tree: %w", err)
		}
		id, err := s.g.AddTree(pos)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tree: %w", err)
		}
		s.cmds = append(s.cmds, editor.AddTreeCmd{Pos: pos})
		return &zygo.SexpInt{Val: int64(id.Uint64())}, nil
	})

	// -----------------------------------------------------------------------
	// (remove-tree 0)
	// -----------------------------------------------------------------------
	env.AddFunction("remove_tree", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove-tree requires a tree id")
		}
		n, err := toUint64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove-tree: %w", err)
		}
		id := ids.FromUint64[ids.TreeCat](n)
		ok := s.g.RemoveTree(id)
		if ok {
			s.cmds = append(s.cmds, editor.RemoveTreeCmd{ID: id})
		}
		return &zygo.SexpBool{Val: ok}, nil
	})
}
