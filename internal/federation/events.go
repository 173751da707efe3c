package federation

// Lifecycle events carry a "state" tag plus the fields relevant to that
// state. Each kind has exactly one success state and one or more failure
// states; the operation package owns that classification.

// LnReceiveStateKind enumerates incoming Lightning payment states.
type LnReceiveStateKind string

const (
	LnReceiveCreated           LnReceiveStateKind = "created"
	LnReceiveWaitingForPayment LnReceiveStateKind = "waiting_for_payment"
	LnReceiveFunded            LnReceiveStateKind = "funded"
	LnReceiveAwaitingFunds     LnReceiveStateKind = "awaiting_funds"
	LnReceiveClaimed           LnReceiveStateKind = "claimed"
	LnReceiveCanceled          LnReceiveStateKind = "canceled"
)

// LnReceiveState is emitted while an invoice waits to be paid.
type LnReceiveState struct {
	State   LnReceiveStateKind `json:"state"`
	Invoice string             `json:"invoice,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// LnPayStateKind enumerates outgoing Lightning payment states.
type LnPayStateKind string

const (
	LnPayCreated          LnPayStateKind = "created"
	LnPayFunded           LnPayStateKind = "funded"
	LnPayAwaitingChange   LnPayStateKind = "awaiting_change"
	LnPayWaitingForRefund LnPayStateKind = "waiting_for_refund"
	LnPaySuccess          LnPayStateKind = "success"
	LnPayRefunded         LnPayStateKind = "refunded"
	LnPayCanceled         LnPayStateKind = "canceled"
	LnPayUnexpectedError  LnPayStateKind = "unexpected_error"
)

// LnPayState is emitted while a payment routes through a gateway.
type LnPayState struct {
	State        LnPayStateKind `json:"state"`
	Preimage     string         `json:"preimage,omitempty"`
	GatewayError string         `json:"gatewayError,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// InternalPayStateKind enumerates states of a payment settled inside the federation.
type InternalPayStateKind string

const (
	InternalPayFunding         InternalPayStateKind = "funding"
	InternalPayPreimage        InternalPayStateKind = "preimage"
	InternalPayRefundSuccess   InternalPayStateKind = "refund_success"
	InternalPayRefundError     InternalPayStateKind = "refund_error"
	InternalPayFundingFailed   InternalPayStateKind = "funding_failed"
	InternalPayUnexpectedError InternalPayStateKind = "unexpected_error"
)

// InternalPayState is emitted for payments to invoices of the same federation.
type InternalPayState struct {
	State        InternalPayStateKind `json:"state"`
	Preimage     string               `json:"preimage,omitempty"`
	OutPoints    []string             `json:"outPoints,omitempty"`
	Error        string               `json:"error,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
}

// DepositStateKind enumerates on-chain deposit states.
type DepositStateKind string

const (
	DepositWaitingForTransaction  DepositStateKind = "waiting_for_transaction"
	DepositWaitingForConfirmation DepositStateKind = "waiting_for_confirmation"
	DepositConfirmed              DepositStateKind = "confirmed"
	DepositClaimed                DepositStateKind = "claimed"
	DepositFailed                 DepositStateKind = "failed"
)

// DepositState is emitted while a deposit address waits for funds.
type DepositState struct {
	State  DepositStateKind `json:"state"`
	Txid   string           `json:"txid,omitempty"`
	Amount Amount           `json:"amountMsat,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// WithdrawStateKind enumerates on-chain withdrawal states.
type WithdrawStateKind string

const (
	WithdrawCreated   WithdrawStateKind = "created"
	WithdrawSucceeded WithdrawStateKind = "succeeded"
	WithdrawFailed    WithdrawStateKind = "failed"
)

// WithdrawState is emitted while a peg-out transaction is built and broadcast.
type WithdrawState struct {
	State WithdrawStateKind `json:"state"`
	Txid  string            `json:"txid,omitempty"`
	Error string            `json:"error,omitempty"`
}

// ReissueStateKind enumerates states of reissuing external notes.
type ReissueStateKind string

const (
	ReissueCreated ReissueStateKind = "created"
	ReissueIssuing ReissueStateKind = "issuing"
	ReissueDone    ReissueStateKind = "done"
	ReissueFailed  ReissueStateKind = "failed"
)

// ReissueState is emitted while received notes are exchanged for fresh ones.
type ReissueState struct {
	State ReissueStateKind `json:"state"`
	Error string           `json:"error,omitempty"`
}
