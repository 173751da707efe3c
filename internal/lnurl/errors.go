package lnurl

import "errors"

var (
	// ErrInvalid is returned for strings that are neither an LNURL nor a
	// Lightning Address.
	ErrInvalid = errors.New("lnurl: invalid lnurl or lightning address")

	// ErrUnexpectedResponse is returned when the service answers with
	// something other than a pay request.
	ErrUnexpectedResponse = errors.New("lnurl: unexpected response")

	// ErrAmountOutOfRange is returned when the amount is outside the
	// service's sendable range.
	ErrAmountOutOfRange = errors.New("lnurl: amount outside sendable range")
)
