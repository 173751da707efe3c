package federation

import (
	"context"
	"encoding/json"
	"time"
)

// Backend opens federation clients and converts e-cash between its string
// and structured forms.
type Backend interface {
	// Join registers with a new federation using an invite code.
	Join(ctx context.Context, inviteCode string) (Client, error)

	// Open reattaches to a federation joined earlier.
	Open(ctx context.Context, id ID, inviteCode string) (Client, error)

	DecodeNotes(s string) (Notes, error)
	EncodeNotes(notes Notes) (string, error)
}

// Client is a live handle bound to one federation. Implementations must be
// safe for concurrent use; the gateway shares one handle across requests.
type Client interface {
	ID() ID
	Network() string
	Meta() map[string]string
	ConfigJSON(ctx context.Context) (json.RawMessage, error)
	DiscoverAPIVersion(ctx context.Context) (json.RawMessage, error)

	Balance(ctx context.Context) (Amount, error)
	NoteSummary(ctx context.Context) (NoteSummary, error)
	Backup(ctx context.Context, metadata map[string]string) error
	ListOperations(ctx context.Context, limit int) ([]OperationLogEntry, error)

	Mint() MintModule
	Lightning() LightningModule
	Wallet() WalletModule
}

// MintModule moves e-cash notes in and out of the client.
type MintModule interface {
	Reissue(ctx context.Context, notes Notes) (OperationID, error)
	SubscribeReissue(ctx context.Context, op OperationID) (<-chan ReissueState, error)

	// Spend selects notes worth amount. With allowOverpay the selection may
	// exceed amount when exact change is unavailable; the returned Notes
	// report what was actually taken. Unclaimed notes return to the wallet
	// after timeout.
	Spend(ctx context.Context, amount Amount, allowOverpay bool, timeout time.Duration) (OperationID, Notes, error)

	// Validate checks notes' signatures and returns their total value.
	Validate(ctx context.Context, notes Notes) (Amount, error)
}

// LightningModule sends and receives Lightning payments through gateways.
type LightningModule interface {
	ListGateways(ctx context.Context) ([]Gateway, error)
	ActiveGateway(ctx context.Context) (Gateway, error)
	SetActiveGateway(ctx context.Context, gatewayID string) (Gateway, error)

	CreateInvoice(ctx context.Context, amount Amount, description string, expiry time.Duration) (OperationID, string, error)
	SubscribeReceive(ctx context.Context, op OperationID) (<-chan LnReceiveState, error)

	DecodeInvoice(bolt11 string) (Invoice, error)
	Pay(ctx context.Context, invoice Invoice) (OutgoingPayment, error)
	PaymentType(ctx context.Context, op OperationID) (PayType, string, error)
	SubscribePay(ctx context.Context, op OperationID) (<-chan LnPayState, error)
	SubscribeInternalPay(ctx context.Context, op OperationID) (<-chan InternalPayState, error)
}

// WalletModule handles on-chain deposits and withdrawals.
type WalletModule interface {
	DepositAddress(ctx context.Context, validUntil time.Time) (OperationID, string, error)
	SubscribeDeposit(ctx context.Context, op OperationID) (<-chan DepositState, error)

	WithdrawFees(ctx context.Context, address string, sats uint64) (WithdrawFees, error)
	Withdraw(ctx context.Context, address string, sats uint64, fees WithdrawFees) (OperationID, error)
	SubscribeWithdraw(ctx context.Context, op OperationID) (<-chan WithdrawState, error)
}
