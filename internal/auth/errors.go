package auth

import "errors"

// Errors returned by the auth package.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoCredential       = errors.New("no credential configured")
	ErrTicketInvalid      = errors.New("invalid websocket ticket")
	ErrTicketReused       = errors.New("websocket ticket already used")
)
