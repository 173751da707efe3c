package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/operation"
)

// DefaultQueueSize is the record buffer used when Options.QueueSize is zero.
const DefaultQueueSize = 1024

// Logger defines the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record is one event or outcome of a tracked operation.
type Record struct {
	Meta operation.Meta
	At   time.Time

	// Set for events.
	State string
	Event any

	// Set for outcomes.
	Outcome bool
	Status  operation.Status
	Reason  string
	Elapsed time.Duration
}

// Sink receives records from the relay worker, one at a time.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// FederationSink is implemented by sinks that track the registered set.
type FederationSink interface {
	WriteFederations(ctx context.Context, ids []federation.ID) error
}

// Options configures a Relay.
type Options struct {
	QueueSize int
	Logger    Logger
}

type item struct {
	rec         *Record
	federations []federation.ID
}

// Relay fans records out to sinks from a single worker goroutine.
type Relay struct {
	sinks   []Sink
	queue   chan item
	logger  Logger
	dropped atomic.Uint64
	now     func() time.Time
}

// New creates a relay over sinks. Call Run to start delivering.
func New(opts Options, sinks ...Sink) *Relay {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Relay{
		sinks:  sinks,
		queue:  make(chan item, size),
		logger: logger,
		now:    time.Now,
	}
}

// RecordEvent queues one lifecycle event.
func (r *Relay) RecordEvent(meta operation.Meta, event any) {
	r.enqueue(item{rec: &Record{
		Meta:  meta,
		At:    r.now(),
		State: operation.StateOf(event),
		Event: event,
	}})
}

// RecordOutcome queues the final outcome of an operation.
func (r *Relay) RecordOutcome(meta operation.Meta, status operation.Status, reason string, elapsed time.Duration) {
	r.enqueue(item{rec: &Record{
		Meta:    meta,
		At:      r.now(),
		Outcome: true,
		Status:  status,
		Reason:  reason,
		Elapsed: elapsed,
	}})
}

// RecordFederations queues the current set of registered federations.
func (r *Relay) RecordFederations(ids []federation.ID) {
	r.enqueue(item{federations: ids})
}

// Dropped returns how many records were discarded on a full queue.
func (r *Relay) Dropped() uint64 { return r.dropped.Load() }

func (r *Relay) enqueue(it item) {
	select {
	case r.queue <- it:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("telemetry queue full, dropping records")
		}
	}
}

// Run delivers queued records until ctx is cancelled, then drains what is
// left and returns nil.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case it := <-r.queue:
			r.deliver(ctx, it)
		case <-ctx.Done():
			// Sinks get a fresh context for the drain.
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			for {
				select {
				case it := <-r.queue:
					r.deliver(drainCtx, it)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Relay) deliver(ctx context.Context, it item) {
	if it.rec == nil {
		for _, sink := range r.sinks {
			fs, ok := sink.(FederationSink)
			if !ok {
				continue
			}
			if err := fs.WriteFederations(ctx, it.federations); err != nil {
				r.logger.Debug("telemetry federations write failed", "error", err)
			}
		}
		return
	}

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, *it.rec); err != nil {
			r.logger.Debug("telemetry write failed",
				"kind", it.rec.Meta.Kind,
				"operation_id", it.rec.Meta.Operation,
				"error", err,
			)
		}
	}
}
