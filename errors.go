package oxalis

import (
	"errors"
	"log/slog"
)

var ErrClosed = errors.New("oxalis: store closed")

var ErrNoSnapshot = errors.New("oxalis: no snapshot")
var ErrSnapshotVersion = errors.New("oxalis: snapshot version mismatch")

var errNilResolution = errors.New("oxalis: dispatched input resolved to nil")

// ResolveError wraps a failure that occurred while turning a dispatched
// input into a concrete action. The state is unchanged.
type ResolveError struct {
	Err error
}

func (e *ResolveError) Error() string { return "oxalis: resolve action: " + e.Err.Error() }
func (e *ResolveError) Unwrap() error { return e.Err }

// ReduceError wraps a failure raised by the reducer during the terminal
// step. The state swap did not happen.
type ReduceError struct {
	Tag string
	Err error
}

func (e *ReduceError) Error() string {
	return "oxalis: reduce " + e.Tag + ": " + e.Err.Error()
}
func (e *ReduceError) Unwrap() error { return e.Err }

// ListenerError wraps a failure raised by a listener during notification.
// It is reported through the store's reporter, never returned to the
// dispatch caller: the transition had already committed.
type ListenerError struct {
	Tag string
	Err error
}

func (e *ListenerError) Error() string {
	return "oxalis: listener for " + e.Tag + ": " + e.Err.Error()
}
func (e *ListenerError) Unwrap() error { return e.Err }

// ReportFunc receives errors that cannot be returned to any caller, such as
// listener failures and commit errors of queued re-entrant dispatches.
type ReportFunc func(err error)

func defaultReport(err error) {
	slog.Error("oxalis: post-commit failure", "error", err)
}
