package rpc

import "errors"

// Errors returned by the rpc package.
var (
	// ErrInvalidRequest is returned for frames that are not valid requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownMethod is returned when a method is not in the table.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrNotSingle is returned by Call on a subscription without a
	// request/response form.
	ErrNotSingle = errors.New("method has no single response form")

	// ErrDuplicateMethod is returned by NewTable when two methods share a name.
	ErrDuplicateMethod = errors.New("duplicate method")
)

func isProtocolError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnknownMethod)
}
