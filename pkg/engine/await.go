package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/meshforge/pkg/snapshot"
)

// DefaultTimeout bounds one evaluation unless WithTimeout says otherwise.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when an evaluation exceeds its limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started first.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// run is what one sandboxed evaluation produced.
type run struct {
	snap *snapshot.Snapshot
	errs []EvalError
	err  error
}

// begin numbers a new evaluation. Only the newest one may report a result.
func (e *Engine) begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) newest(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}

// spawn evaluates source on its own goroutine. An interpreter panic
// becomes a fatal error on the returned channel.
func (e *Engine) spawn(source string) <-chan run {
	runs := make(chan run, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				runs <- run{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		s, errs, err := e.evaluate(source)
		runs <- run{snap: s, errs: errs, err: err}
	}()
	return runs
}

// await waits for evaluation gen. The interpreter cannot be interrupted,
// so on timeout or cancellation its goroutine is abandoned; the buffered
// channel lets it finish without a reader.
func (e *Engine) await(ctx context.Context, gen uint64, runs <-chan run) run {
	ctx, cancel := context.WithTimeoutCause(ctx, e.timeout, ErrTimeout)
	defer cancel()

	select {
	case r := <-runs:
		if !e.newest(gen) {
			return run{err: ErrSuperseded}
		}
		return r
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
			return run{err: fmt.Errorf("%w after %s", ErrTimeout, e.timeout)}
		}
		return run{err: ctx.Err()}
	}
}
