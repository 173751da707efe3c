package registry

import "errors"

// Domain errors for the registry package.
//
//	if errors.Is(err, registry.ErrNotFound) {
//	    // unknown federation
//	}
var (
	// ErrNotFound is returned when no client matches the selector.
	ErrNotFound = errors.New("registry: no client found for federation")

	// ErrAmbiguousPrefix is returned when a prefix matches more than one client.
	ErrAmbiguousPrefix = errors.New("registry: federation prefix matches more than one client")

	// ErrNoDefault is returned when the default policy cannot choose a client.
	ErrNoDefault = errors.New("registry: no default federation")

	// ErrAlreadyRegistered is returned when inserting an id that is already bound.
	ErrAlreadyRegistered = errors.New("registry: federation already registered")

	// ErrInvalidPolicy is returned for an unknown default policy name.
	ErrInvalidPolicy = errors.New("registry: invalid default policy")
)
