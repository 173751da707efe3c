package federation

import "errors"

// Errors returned by federation backends. Check with errors.Is.
var (
	ErrInvalidID           = errors.New("federation: invalid federation id")
	ErrInvalidNotes        = errors.New("federation: invalid e-cash notes")
	ErrInvalidInvoice      = errors.New("federation: invalid invoice")
	ErrInvalidAddress      = errors.New("federation: invalid on-chain address")
	ErrUnknownOperation    = errors.New("federation: unknown operation")
	ErrUnknownGateway      = errors.New("federation: unknown gateway")
	ErrInsufficientBalance = errors.New("federation: insufficient balance")
	ErrInvalidInvite       = errors.New("federation: invalid invite code")
)
