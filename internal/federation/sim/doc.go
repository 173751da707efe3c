// Package sim is an in-process federation backend.
//
// It keeps balances, notes, invoices and on-chain operations in memory and
// replays scripted lifecycle events with a configurable delay between
// steps. It exists so the gateway can be run and tested end to end without
// a real federation; it provides no security whatsoever.
//
// Conventions:
//   - A federation id is the SHA-256 of its invite code.
//   - Notes encode as "fedsim1" + base64url(JSON). Only notes issued by the
//     same Backend validate, and each note can be reissued once.
//   - Invoices encode as "lnsim1" + base64url(JSON). Paying an invoice
//     created by the same federation is an internal payment.
//   - With AutoSettle, invoices are paid and deposits confirmed by a
//     simulated counterparty shortly after creation.
package sim
