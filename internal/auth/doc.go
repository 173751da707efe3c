// Package auth verifies the gateway's shared bearer credential and issues
// single-use WebSocket tickets.
//
// The credential is configured either as a plain password or as an
// Argon2id hash in PHC format; the hash form is preferred for config files.
// Browsers cannot set headers on a WebSocket upgrade, so an authenticated
// caller can exchange the bearer credential for a short-lived ticket (an
// HS256 JWT) and pass it as the ticket query parameter. Each ticket is
// accepted once.
package auth
