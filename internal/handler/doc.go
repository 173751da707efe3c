// Package handler implements the gateway operations shared by the REST
// router and the JSON-RPC session.
//
// Every operation is a method on Service taking a context and a typed
// request and returning a typed response. Failures are *Error values whose
// Kind decides the HTTP status and the JSON-RPC error code:
//
//	BadRequest     400  malformed input, unknown federation, bad notes
//	Unauthorized   401  missing or wrong credential (raised by the api layer)
//	Upstream       502  the federation client failed or the operation failed
//	NotImplemented 501  restore, module passthrough, the Cashu face
//	Internal       500  an operation stream ended without an outcome
//
// Long-running operations are waited on with operation.Track, so every
// lifecycle event is also reported to the configured Recorder.
package handler
