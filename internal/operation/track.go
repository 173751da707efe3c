package operation

import (
	"context"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// Meta identifies the operation being waited on.
type Meta struct {
	Kind       Kind
	Federation federation.ID
	Operation  federation.OperationID
}

// Recorder receives every event and the final outcome of tracked waits.
// Implementations must not block.
type Recorder interface {
	RecordEvent(meta Meta, event any)
	RecordOutcome(meta Meta, status Status, reason string, elapsed time.Duration)
}

// Recorders fans out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) RecordEvent(meta Meta, event any) {
	for _, r := range rs {
		r.RecordEvent(meta, event)
	}
}

func (rs Recorders) RecordOutcome(meta Meta, status Status, reason string, elapsed time.Duration) {
	for _, r := range rs {
		r.RecordOutcome(meta, status, reason, elapsed)
	}
}

// Track is Wait with every event and the outcome reported to rec.
// A nil rec is allowed.
func Track[E, R any](ctx context.Context, rec Recorder, meta Meta, events <-chan E, classify Classifier[E, R], opts ...Option[E]) Outcome[R] {
	if rec == nil {
		return Wait(ctx, events, classify, opts...)
	}

	var resolved options[E]
	for _, opt := range opts {
		opt(&resolved)
	}
	userObserver := resolved.observer

	opts = append(opts, WithObserver(func(e E) {
		rec.RecordEvent(meta, e)
		if userObserver != nil {
			userObserver(e)
		}
	}))

	start := time.Now()
	out := Wait(ctx, events, classify, opts...)

	var reason string
	if out.Err != nil {
		reason = out.Err.Error()
	}
	rec.RecordOutcome(meta, out.Status, reason, time.Since(start))
	return out
}
