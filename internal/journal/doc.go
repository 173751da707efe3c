// Package journal persists tracked operations in the sqlite operations table.
//
// The journal is a telemetry sink: the first event of an operation inserts
// a pending row and the outcome sets its final status. Rows survive
// restarts, so operations can be attributed to their federation after the
// waiter that tracked them is gone.
package journal
