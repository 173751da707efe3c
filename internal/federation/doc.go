// Package federation defines the gateway's view of a federated e-cash
// backend: identities, amounts, e-cash notes, per-module lifecycle events
// and the client interfaces every federation backend implements.
//
// Nothing in here talks to a federation. Implementations live elsewhere;
// package sim provides an in-process one for development and tests.
//
// # Streams
//
// Subscribe methods return a receive-only channel that the implementation
// closes once the operation reaches a final state or ctx is cancelled.
// Events for one operation arrive in the order the backend produced them.
package federation
