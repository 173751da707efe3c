// Package api implements the HTTP surfaces of the gateway.
//
// This package provides:
//   - REST bindings under /fedimint/v2 for every single-response method
//   - JSON-RPC over WebSocket at /fedimint/v2/ws, one rpc.Session per connection
//   - Raw event streams at /fedimint/v2/stream/{method}
//   - A Cashu face under /cashu/v1 whose routes answer 501
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit, metrics)
//
// REST and JSON-RPC share one rpc.Table, so a method behaves the same on
// both transports; REST only drops the envelope.
//
// # Security
//
// Financial routes require "Authorization: Bearer <password>". Browsers that
// cannot set headers on a WebSocket upgrade fetch a single-use ticket from
// POST /auth/ws-ticket and pass it as ?ticket=.
//
// # Modes
//
// The gateway mode selects the mounted route groups: fedimint (REST only),
// cashu, ws (JSON-RPC only) or default (all of them).
package api
