// Package rpc implements the JSON-RPC face of the gateway.
//
// A Table maps method names to Methods. Single methods answer each request
// with exactly one response frame; Subscription methods answer with one
// frame per lifecycle event of the operation they follow. Both kinds share
// one connection without blocking each other: every request runs in its own
// goroutine and all frames leave through a single write pump.
//
// Frame format:
//
//	request:  {"jsonrpc":"2.0","method":"ln-invoice","params":{...},"id":1}
//	response: {"jsonrpc":"2.0","result":{...},"id":1}
//	error:    {"jsonrpc":"2.0","error":{"code":400,"kind":"bad_request","message":"..."},"id":1}
//
// Handler errors carry the HTTP status of their kind as code. Frames that
// cannot be parsed, or name an unknown method, are answered with
// CodeInvalidRequest and the id recovered from the raw frame when possible.
package rpc
