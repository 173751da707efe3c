package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/lnurl"
	"github.com/nerrad567/fedimint-http/internal/operation"
	"github.com/nerrad567/fedimint-http/internal/registry"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindUpstream
	KindNotImplemented
)

// String returns the code used in error bodies.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorised"
	case KindUpstream:
		return "upstream_error"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "internal_error"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Error is an operation failure with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// BadRequest wraps err as a KindBadRequest error.
func BadRequest(err error) *Error { return &Error{Kind: KindBadRequest, Err: err} }

// Upstream wraps err as a KindUpstream error.
func Upstream(err error) *Error { return &Error{Kind: KindUpstream, Err: err} }

// Internal wraps err as a KindInternal error.
func Internal(err error) *Error { return &Error{Kind: KindInternal, Err: err} }

// Unauthorized wraps err as a KindUnauthorized error.
func Unauthorized(err error) *Error { return &Error{Kind: KindUnauthorized, Err: err} }

// ErrNotImplemented is the cause of every NotImplemented error.
var ErrNotImplemented = errors.New("not implemented")

// NotImplemented returns a KindNotImplemented error naming what is missing.
func NotImplemented(what string) *Error {
	return &Error{Kind: KindNotImplemented, Err: fmt.Errorf("%w: %s", ErrNotImplemented, what)}
}

func badRequestf(format string, args ...any) *Error {
	return BadRequest(fmt.Errorf(format, args...))
}

// Classify returns err as an *Error, deriving the kind from known causes
// when err is not one already. Unknown causes are Upstream.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	return &Error{Kind: kindOf(err), Err: err}
}

// KindOf returns the kind Classify would assign.
func KindOf(err error) Kind {
	return Classify(err).Kind
}

func kindOf(err error) Kind {
	var failure *operation.Failure
	switch {
	case errors.As(err, &failure):
		return KindUpstream
	case errors.Is(err, operation.ErrUnexpectedEnd),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindInternal
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrAmbiguousPrefix),
		errors.Is(err, registry.ErrNoDefault),
		errors.Is(err, federation.ErrInvalidID),
		errors.Is(err, federation.ErrInvalidNotes),
		errors.Is(err, federation.ErrInvalidInvoice),
		errors.Is(err, federation.ErrInvalidAddress),
		errors.Is(err, federation.ErrInvalidInvite),
		errors.Is(err, federation.ErrUnknownOperation),
		errors.Is(err, federation.ErrUnknownGateway),
		errors.Is(err, federation.ErrInsufficientBalance),
		errors.Is(err, lnurl.ErrInvalid),
		errors.Is(err, lnurl.ErrAmountOutOfRange):
		return KindBadRequest
	default:
		return KindUpstream
	}
}
