package operation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderSpy struct {
	mu       sync.Mutex
	events   []any
	statuses []Status
	reasons  []string
}

func (r *recorderSpy) RecordEvent(_ Meta, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorderSpy) RecordOutcome(_ Meta, status Status, reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.reasons = append(r.reasons, reason)
}

func TestTrack_ReportsEventsAndOutcome(t *testing.T) {
	spy := &recorderSpy{}
	var observed int

	out := Track(context.Background(), Recorders{spy}, Meta{Kind: KindReissue},
		feed(event{kind: "created"}, event{kind: "ok", value: 2}), classifyEvent,
		WithObserver(func(event) { observed++ }))

	require.Equal(t, StatusSuccess, out.Status)
	assert.Len(t, spy.events, 2)
	assert.Equal(t, 2, observed)
	assert.Equal(t, []Status{StatusSuccess}, spy.statuses)
	assert.Equal(t, []string{""}, spy.reasons)
}

func TestTrack_FailureReason(t *testing.T) {
	spy := &recorderSpy{}

	Track(context.Background(), spy, Meta{Kind: KindLnPay}, feed(event{kind: "fail"}), classifyEvent)

	assert.Equal(t, []Status{StatusFatal}, spy.statuses)
	assert.Equal(t, []string{"boom"}, spy.reasons)
}

func TestTrack_NilRecorder(t *testing.T) {
	out := Track[event, int](context.Background(), nil, Meta{}, feed(event{kind: "ok", value: 1}), classifyEvent)
	assert.Equal(t, 1, out.Result)
}
