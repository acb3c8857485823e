package oxalis

import (
	"context"
	"fmt"
	"log/slog"
)

// DispatchFunc is one link of the dispatch chain: it receives a concrete
// action and either forwards it, transforms it, or short-circuits.
type DispatchFunc func(ctx context.Context, act Action) (Action, error)

// Capabilities is the slice of the store a middleware is allowed to touch.
// Dispatch is the queued re-entrant form: it resolves the input, returns
// the concrete action, and commits it after the in-flight transition, so
// calling it from inside the chain or a listener cannot deadlock. Commit
// errors of such queued dispatches go to the store's reporter.
type Capabilities[S any] struct {
	State    func() S
	Dispatch func(ctx context.Context, input Dispatchable) (Action, error)
}

// Middleware wraps the next link of the dispatch chain. The chain is built
// once at store construction, folded right to left, so the first middleware
// passed to the store is the outermost: first to see the action, last to
// see the result. A middleware that never calls next prevents the reducer
// from running and suppresses notification for that dispatch.
type Middleware[S any] func(caps Capabilities[S], next DispatchFunc) DispatchFunc

func buildChain[S any](caps Capabilities[S], mws []Middleware[S], terminal DispatchFunc) DispatchFunc {
	fn := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](caps, fn)
	}
	return fn
}

// Logging records every action together with the state before and after the
// transition. Read-only, never short-circuits.
func Logging[S any](logger *slog.Logger) Middleware[S] {
	return func(caps Capabilities[S], next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, act Action) (Action, error) {
			logger.Debug("dispatching", "tag", act.Tag, "state", caps.State())
			res, err := next(ctx, act)
			if err != nil {
				logger.Error("dispatch failed", "tag", act.Tag, "error", err)
				return res, err
			}
			logger.Debug("dispatched", "tag", act.Tag, "state", caps.State())
			return res, nil
		}
	}
}

// CrashReporter catches errors and panics from the rest of the chain and
// hands them to report. Unless swallow is set the failure is re-raised to
// the dispatch caller; with swallow the dispatch succeeds with the action
// it received and no state change.
func CrashReporter[S any](report ReportFunc, swallow bool) Middleware[S] {
	return func(caps Capabilities[S], next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, act Action) (res Action, err error) {
			defer func() {
				if v := recover(); v != nil {
					report(fmt.Errorf("oxalis: dispatch %s panicked: %v", act.Tag, v))
					if !swallow {
						panic(v)
					}
					res, err = act, nil
				}
			}()
			res, err = next(ctx, act)
			if err != nil {
				report(err)
				if swallow {
					return act, nil
				}
			}
			return res, err
		}
	}
}
