package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/fedimint-http/internal/handler"
)

// Method is one entry of the method table.
type Method struct {
	name      string
	call      func(ctx context.Context, params json.RawMessage) (any, error)
	subscribe func(ctx context.Context, params json.RawMessage, emit handler.Emit) error
}

// Name returns the wire name of the method.
func (m Method) Name() string { return m.name }

// IsSubscription reports whether the method streams over JSON-RPC.
func (m Method) IsSubscription() bool { return m.subscribe != nil }

// Call runs the request/response form of the method. Subscriptions built
// with Awaitable wait for the final result.
func (m Method) Call(ctx context.Context, params json.RawMessage) (any, error) {
	if m.call == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSingle, m.name)
	}
	return m.call(ctx, params)
}

// Subscribe streams the method's events to emit. Single methods emit their
// one result.
func (m Method) Subscribe(ctx context.Context, params json.RawMessage, emit handler.Emit) error {
	if m.subscribe != nil {
		return m.subscribe(ctx, params, emit)
	}
	v, err := m.Call(ctx, params)
	if err != nil {
		return err
	}
	return emit(v)
}

// Single builds a method answered by exactly one response.
func Single[Req, Resp any](name string, fn func(context.Context, Req) (Resp, error)) Method {
	return Method{
		name: name,
		call: func(ctx context.Context, params json.RawMessage) (any, error) {
			req, err := decodeParams[Req](params)
			if err != nil {
				return nil, err
			}
			return fn(ctx, req)
		},
	}
}

// Subscription builds a method that only exists in streamed form.
func Subscription[Req any](name string, fn func(context.Context, Req, handler.Emit) error) Method {
	return Method{
		name:      name,
		subscribe: streamFunc(fn),
	}
}

// Awaitable builds a subscription that also has a request/response form
// waiting for the final result.
func Awaitable[Req, Resp any](name string, wait func(context.Context, Req) (Resp, error), stream func(context.Context, Req, handler.Emit) error) Method {
	m := Single(name, wait)
	m.subscribe = streamFunc(stream)
	return m
}

func streamFunc[Req any](fn func(context.Context, Req, handler.Emit) error) func(context.Context, json.RawMessage, handler.Emit) error {
	return func(ctx context.Context, params json.RawMessage, emit handler.Emit) error {
		req, err := decodeParams[Req](params)
		if err != nil {
			return err
		}
		return fn(ctx, req, emit)
	}
}

// decodeParams decodes params into Req. Absent or null params decode to the
// zero value.
func decodeParams[Req any](params json.RawMessage) (Req, error) {
	var req Req
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return req, nil
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return req, handler.BadRequest(fmt.Errorf("Invalid request: %w", err)) //nolint:staticcheck // Message matches the public API
	}
	return req, nil
}
