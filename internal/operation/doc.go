// Package operation reduces a stream of lifecycle events into a single
// outcome.
//
// A Classifier maps each event to one of four verdicts:
//
//	Continue    keep consuming
//	Succeed     success-terminal, carries the result
//	Fail        failure-terminal, carries a reason
//	Detachable  in progress, but the caller may stop waiting here
//
// Wait returns the first terminal outcome it sees. When background mode
// is requested it returns Detached at the first Detachable event instead.
// A stream that ends with no terminal event is Fatal with ErrUnexpectedEnd.
// Wait never retries and imposes no timeout; callers bound it with ctx.
//
// The per-kind tables (LnReceive, LnPay, InternalPay, Deposit, Withdraw,
// Reissue) encode which backend states are terminal.
package operation
