package sim

import (
	"context"
	"sync"
)

// eventLog records an operation's states and replays them to subscribers
// from the first state, the way federation subscriptions behave.
type eventLog[E any] struct {
	mu      sync.Mutex
	events  []E
	closed  bool
	changed chan struct{}
}

func newEventLog[E any]() *eventLog[E] {
	return &eventLog[E]{changed: make(chan struct{})}
}

// push appends e; final closes the log after it.
func (l *eventLog[E]) push(e E, final bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, e)
	l.closed = final
	close(l.changed)
	l.changed = make(chan struct{})
}

// subscribe streams every state, past and future, until the log closes or
// ctx is done.
func (l *eventLog[E]) subscribe(ctx context.Context) <-chan E {
	out := make(chan E)
	go func() {
		defer close(out)
		next := 0
		for {
			l.mu.Lock()
			pending := l.events[next:]
			closed := l.closed
			changed := l.changed
			l.mu.Unlock()

			for _, e := range pending {
				select {
				case out <- e:
					next++
				case <-ctx.Done():
					return
				}
			}
			if len(pending) > 0 {
				continue
			}
			if closed {
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
