// Package engine evaluates road scripts. It wraps zygomys in a sandboxed
// environment, applies the roads a script draws to a working copy of a
// base graph and records them as editor commands.
package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/asphalt/pkg/editor"
	"github.com/chazu/asphalt/pkg/lane"
	"github.com/chazu/asphalt/pkg/road"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the output of a successful evaluation.
type Result struct {
	// Graph is the base graph with the script applied.
	Graph *road.Graph
	// Commands replays the script against the base graph, in order.
	Commands []editor.Cmd
	// Warnings are validation findings on Graph.
	Warnings []road.ValidationError
}

// Engine wraps the zygomys interpreter for road scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	gens generations

	timeout time.Duration
	lanes   lane.NodeType
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the hard limit for a single evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDefaultLanes sets the road type used when a script does not name one.
func WithDefaultLanes(t lane.NodeType) Option {
	return func(e *Engine) { e.lanes = t }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout: EvalTimeout,
		lanes:   lane.NewNodeType(lane.Standard, 2),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs source against an empty graph.
func (e *Engine) Evaluate(source string) (*Result, []EvalError, error) {
	return e.EvaluateOn(nil, source)
}

// EvaluateOn runs source against a copy of base. base itself is not
// modified; a nil base is an empty graph.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) EvaluateOn(base *road.Graph, source string) (*Result, []EvalError, error) {
	gen := e.gens.next()

	work := road.New()
	if base != nil {
		work = base.Clone()
	}

	start := time.Now()
	ch := spawn(func() outcome {
		res, evalErrs, err := e.evaluate(work, source)
		return outcome{result: res, errors: evalErrs, err: err}
	})
	res, evalErrs, err := e.gens.await(gen, ch, e.timeout)
	e.log.Debug("script evaluated",
		slog.Uint64("generation", gen),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("errors", len(evalErrs)),
		slog.Any("fatal", err),
	)
	return res, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(g *road.Graph, source string) (*Result, []EvalError, error) {
	// Empty source is a valid program that changes nothing.
	if strings.TrimSpace(source) == "" {
		return &Result{Graph: g}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	s := &session{g: g, lanes: e.lanes}
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	return &Result{Graph: g, Commands: s.cmds, Warnings: road.Validate(g)}, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
