package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrEvalTimeout is returned when a script runs past the engine timeout.
	// The interpreter goroutine is abandoned; it only ever touches a private
	// clone of the base graph.
	ErrEvalTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started on the same
	// engine before this one finished.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// outcome is what an interpreter goroutine reports.
type outcome struct {
	result *Result
	errors []EvalError
	err    error
}

// generations numbers evaluations so that only the latest one reports.
type generations struct {
	mu   sync.Mutex
	last uint64
}

func (g *generations) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}

func (g *generations) latest(n uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return n == g.last
}

// spawn runs fn on its own goroutine. A panic is reported as an error. The
// channel is buffered so an abandoned goroutine can still finish.
func spawn(fn func() outcome) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		ch <- fn()
	}()
	return ch
}

// await waits up to timeout for evaluation n to report.
func (g *generations) await(n uint64, ch <-chan outcome, timeout time.Duration) (*Result, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-ch:
		if !g.latest(n) {
			return nil, nil, ErrSuperseded
		}
		return o.result, o.errors, o.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrEvalTimeout, timeout)
	}
}
