package oxalis

import (
	"context"
	"fmt"
)

// Dispatchable is the closed set of inputs Dispatch accepts: a concrete
// Action, a Thunk, or an Async computation. The unexported method keeps the
// set closed.
type Dispatchable interface {
	dispatchable()
}

// Thunk is a zero-argument computation yielding another dispatchable input,
// usually a concrete Action.
type Thunk func() (Dispatchable, error)

func (Thunk) dispatchable() {}

// Async is a deferred computation yielding another dispatchable input. It
// receives the dispatch context and should honor its cancellation while
// still resolving. Once an Async has produced a concrete Action the
// transition always commits; cancellation is only observed between
// resolution steps.
type Async func(ctx context.Context) (Dispatchable, error)

func (Async) dispatchable() {}

// resolve loops until the input collapses into a concrete Action.
func resolve(ctx context.Context, input Dispatchable) (Action, error) {
	for {
		switch v := input.(type) {
		case Action:
			return v, nil
		case Thunk:
			if err := ctx.Err(); err != nil {
				return Action{}, &ResolveError{Err: err}
			}
			next, err := v()
			if err != nil {
				return Action{}, &ResolveError{Err: err}
			}
			if next == nil {
				return Action{}, &ResolveError{Err: errNilResolution}
			}
			input = next
		case Async:
			if err := ctx.Err(); err != nil {
				return Action{}, &ResolveError{Err: err}
			}
			next, err := v(ctx)
			if err != nil {
				return Action{}, &ResolveError{Err: err}
			}
			if next == nil {
				return Action{}, &ResolveError{Err: errNilResolution}
			}
			input = next
		case nil:
			return Action{}, &ResolveError{Err: errNilResolution}
		default:
			return Action{}, &ResolveError{Err: fmt.Errorf("unsupported input %T", input)}
		}
	}
}
