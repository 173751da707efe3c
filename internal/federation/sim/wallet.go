package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// simWithdrawFees is the fee quote for every withdrawal.
var simWithdrawFees = federation.WithdrawFees{FeeRateSatsPerKVB: 2000, TotalWeight: 871}

type walletModule struct{ c *Client }

// DepositAddress implements federation.WalletModule.
func (w walletModule) DepositAddress(ctx context.Context, validUntil time.Time) (federation.OperationID, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	address := "bcrt1q" + randomHex(20)

	w.c.mu.Lock()
	op := w.c.newOpLocked("wallet", map[string]any{"variant": "deposit", "address": address, "expires_at": validUntil.UTC()})
	op.deposit = newEventLog[federation.DepositState]()
	w.c.mu.Unlock()

	go w.runDeposit(op, validUntil)
	return op.id, address, nil
}

func (w walletModule) runDeposit(op *opRecord, validUntil time.Time) {
	b := w.c.b
	op.deposit.push(federation.DepositState{State: federation.DepositWaitingForTransaction}, false)

	if !b.opts.AutoSettle {
		if !b.sleep(time.Until(validUntil)) {
			return
		}
		w.c.finish(op, "failed")
		op.deposit.push(federation.DepositState{State: federation.DepositFailed, Error: "deposit address expired"}, true)
		return
	}

	txid := randomHex(32)
	steps := []federation.DepositState{
		{State: federation.DepositWaitingForConfirmation, Txid: txid},
		{State: federation.DepositConfirmed, Txid: txid},
	}
	for _, s := range steps {
		if !b.sleep(b.opts.StepDelay) {
			return
		}
		op.deposit.push(s, false)
	}
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	w.c.credit(b.opts.DepositAmount)
	w.c.finish(op, "claimed")
	op.deposit.push(federation.DepositState{State: federation.DepositClaimed, Txid: txid, Amount: b.opts.DepositAmount}, true)
}

// SubscribeDeposit implements federation.WalletModule.
func (w walletModule) SubscribeDeposit(ctx context.Context, id federation.OperationID) (<-chan federation.DepositState, error) {
	op, err := w.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.deposit == nil {
		return nil, fmt.Errorf("%w: %s is not a deposit", federation.ErrUnknownOperation, id)
	}
	return op.deposit.subscribe(ctx), nil
}

// WithdrawFees implements federation.WalletModule.
func (w walletModule) WithdrawFees(ctx context.Context, address string, _ uint64) (federation.WithdrawFees, error) {
	if err := ctx.Err(); err != nil {
		return federation.WithdrawFees{}, err
	}
	if err := validateAddress(address); err != nil {
		return federation.WithdrawFees{}, err
	}
	return simWithdrawFees, nil
}

// Withdraw implements federation.WalletModule.
func (w walletModule) Withdraw(ctx context.Context, address string, sats uint64, fees federation.WithdrawFees) (federation.OperationID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateAddress(address); err != nil {
		return "", err
	}
	if sats == 0 {
		return "", fmt.Errorf("%w: amount must be positive", federation.ErrInsufficientBalance)
	}

	w.c.mu.Lock()
	if err := w.c.debitLocked(federation.FromSats(sats + fees.Sats())); err != nil {
		w.c.mu.Unlock()
		return "", err
	}
	op := w.c.newOpLocked("wallet", map[string]any{"variant": "withdraw", "address": address, "amount_sat": sats, "fee_sat": fees.Sats()})
	op.withdraw = newEventLog[federation.WithdrawState]()
	w.c.mu.Unlock()

	go w.runWithdraw(op)
	return op.id, nil
}

func (w walletModule) runWithdraw(op *opRecord) {
	b := w.c.b
	op.withdraw.push(federation.WithdrawState{State: federation.WithdrawCreated}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	txid := randomHex(32)
	w.c.finish(op, map[string]string{"txid": txid})
	op.withdraw.push(federation.WithdrawState{State: federation.WithdrawSucceeded, Txid: txid}, true)
}

// SubscribeWithdraw implements federation.WalletModule.
func (w walletModule) SubscribeWithdraw(ctx context.Context, id federation.OperationID) (<-chan federation.WithdrawState, error) {
	op, err := w.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.withdraw == nil {
		return nil, fmt.Errorf("%w: %s is not a withdrawal", federation.ErrUnknownOperation, id)
	}
	return op.withdraw.subscribe(ctx), nil
}

func validateAddress(address string) error {
	for _, hrp := range []string{"bc1", "tb1", "bcrt1"} {
		if strings.HasPrefix(strings.ToLower(address), hrp) && len(address) >= 14 {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", federation.ErrInvalidAddress, address)
}
