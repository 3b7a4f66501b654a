// Package engine implements the asynchronous job engine: named events are
// dispatched to registered workflow definitions, whose ordered steps run with
// per-step retry budgets and checkpointed results so a retried or replayed
// job never repeats a side effect that already succeeded.
package engine

import (
	"context"
	"errors"
)

// TerminalError marks a failure that must not be retried: the job aborts
// immediately with outcome failed. Precondition violations (referenced entity
// missing, malformed payload) are terminal; transient transport errors are
// not.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return e.Err.Error()
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal wraps err as a TerminalError.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// Terminalf builds a TerminalError from a message.
func Terminalf(msg string) error {
	return &TerminalError{Err: errors.New(msg)}
}

// IsTerminal reports whether err carries a TerminalError anywhere in its chain.
func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}

// Step is one named unit of work within a workflow. Steps run in declared
// order; each has its own retry budget and its result is checkpointed under
// its name unless Fresh is set.
type Step struct {
	Name string

	// Run executes the step. The returned value is JSON-encoded into the
	// job context under the step name for later steps to read.
	Run func(ctx context.Context, jc *Context) (any, error)

	// When gates the step; a nil When always runs. Skipped steps record
	// nothing.
	When func(jc *Context) bool

	// Retries overrides the engine's default retry budget when non-nil.
	Retries *int

	// Fresh steps are never checkpointed: they re-execute on every run of
	// the job, including replays. Used for work whose output feeds branching
	// but must not be treated as a completed side effect.
	Fresh bool
}

// Definition is a workflow: the ordered steps executed for one event type,
// plus an optional final result built from the completed context.
type Definition struct {
	Steps []Step

	// Result builds the job's final result from the completed context.
	// Optional; a nil Result records null.
	Result func(jc *Context) any
}
