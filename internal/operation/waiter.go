package operation

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is the fatal cause when a stream closes before any
// terminal event.
var ErrUnexpectedEnd = errors.New("operation: stream ended unexpectedly")

// Failure is the fatal cause when a failure-terminal event was observed.
type Failure struct {
	Reason string
}

func (f *Failure) Error() string { return f.Reason }

// Verdict is the classification of a single event.
type Verdict int

const (
	Continue Verdict = iota
	Succeed
	Fail
	Detachable
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Succeed:
		return "succeed"
	case Fail:
		return "fail"
	case Detachable:
		return "detachable"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Step is a Verdict plus its payload. Result is set for Succeed and
// Detachable, Reason for Fail.
type Step[R any] struct {
	Verdict Verdict
	Result  R
	Reason  string
}

// Next keeps consuming.
func Next[R any]() Step[R] { return Step[R]{Verdict: Continue} }

// SuccessWith ends the wait with result.
func SuccessWith[R any](result R) Step[R] { return Step[R]{Verdict: Succeed, Result: result} }

// FailWith ends the wait with a permanent failure.
func FailWith[R any](reason string) Step[R] { return Step[R]{Verdict: Fail, Reason: reason} }

// MayDetach keeps consuming unless the caller asked to finish in background.
func MayDetach[R any](partial R) Step[R] { return Step[R]{Verdict: Detachable, Result: partial} }

// Classifier maps one event to a Step.
type Classifier[E, R any] func(E) Step[R]

// Status is the kind of Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusFatal
	StatusDetached
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFatal:
		return "fatal"
	case StatusDetached:
		return "detached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the single result of Wait.
type Outcome[R any] struct {
	Status Status

	// Result holds the success result, or the partial result when Detached.
	Result R

	// Err is set when Status is StatusFatal: a *Failure, ErrUnexpectedEnd
	// or the context error.
	Err error

	// Events is the number of events consumed, including the terminal one.
	Events int
}

// OK reports whether the operation succeeded or was detached.
func (o Outcome[R]) OK() bool { return o.Status != StatusFatal }

type options[E any] struct {
	background bool
	observer   func(E)
}

// Option configures Wait.
type Option[E any] func(*options[E])

// WithBackground returns Detached at the first Detachable event.
func WithBackground[E any](background bool) Option[E] {
	return func(o *options[E]) { o.background = background }
}

// WithObserver calls fn with every consumed event, in order, before it is
// classified. The terminal event is observed too.
func WithObserver[E any](fn func(E)) Option[E] {
	return func(o *options[E]) { o.observer = fn }
}

// Wait drains events until classify yields a terminal step.
func Wait[E, R any](ctx context.Context, events <-chan E, classify Classifier[E, R], opts ...Option[E]) Outcome[R] {
	var o options[E]
	for _, opt := range opts {
		opt(&o)
	}

	var out Outcome[R]
	for {
		var (
			event E
			open  bool
		)
		select {
		case <-ctx.Done():
			out.Status = StatusFatal
			out.Err = ctx.Err()
			return out
		case event, open = <-events:
		}
		if !open {
			out.Status = StatusFatal
			out.Err = ErrUnexpectedEnd
			return out
		}

		out.Events++
		if o.observer != nil {
			o.observer(event)
		}

		step := classify(event)
		switch step.Verdict {
		case Succeed:
			out.Status = StatusSuccess
			out.Result = step.Result
			return out
		case Fail:
			out.Status = StatusFatal
			out.Err = &Failure{Reason: step.Reason}
			return out
		case Detachable:
			if o.background {
				out.Status = StatusDetached
				out.Result = step.Result
				return out
			}
		}
	}
}
