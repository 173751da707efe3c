package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

const testAddress = "bcrt1qxyzxyzxyzxyzxyz"

func TestAmountOrAll_JSON(t *testing.T) {
	tests := []struct {
		in      string
		want    AmountOrAll
		wantErr bool
	}{
		{in: `1500`, want: AmountOrAll{Sats: 1500}},
		{in: `"1500"`, want: AmountOrAll{Sats: 1500}},
		{in: `"all"`, want: AmountOrAll{All: true}},
		{in: `"ALL"`, want: AmountOrAll{All: true}},
		{in: `"lots"`, wantErr: true},
		{in: `-5`, wantErr: true},
		{in: `{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got AmountOrAll
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	out, err := json.Marshal(AmountOrAll{All: true})
	require.NoError(t, err)
	assert.JSONEq(t, `"all"`, string(out))
	out, err = json.Marshal(AmountOrAll{Sats: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `7`, string(out))
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	resp, err := env.svc.Withdraw(ctx, WithdrawRequest{Address: testAddress, AmountSat: AmountOrAll{Sats: 200}})
	require.NoError(t, err)
	assert.Len(t, resp.Txid, 64)
	assert.Equal(t, uint64(436), resp.FeesSat)

	c := mustClient(t, env, 0)
	balance, err := c.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(1_000_000-636_000), balance)

	// 364 sats left cannot cover a 436 sat fee.
	_, err = env.svc.Withdraw(ctx, WithdrawRequest{Address: testAddress, AmountSat: AmountOrAll{All: true}})
	assertKind(t, err, KindBadRequest)
	assert.Contains(t, err.Error(), "Insufficient balance to pay fees")
}

func TestWithdrawAll(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	resp, err := env.svc.Withdraw(ctx, WithdrawRequest{Address: testAddress, AmountSat: AmountOrAll{All: true}})
	require.NoError(t, err)
	assert.Equal(t, uint64(436), resp.FeesSat)

	balance, err := mustClient(t, env, 0).Balance(ctx)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestWithdrawValidation(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	tests := []struct {
		name string
		req  WithdrawRequest
	}{
		{"missing address", WithdrawRequest{AmountSat: AmountOrAll{Sats: 10}}},
		{"zero amount", WithdrawRequest{Address: testAddress}},
		{"legacy address", WithdrawRequest{Address: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", AmountSat: AmountOrAll{Sats: 10}}},
		{"too much", WithdrawRequest{Address: testAddress, AmountSat: AmountOrAll{Sats: 5000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Withdraw(ctx, tt.req)
			assertKind(t, err, KindBadRequest)
		})
	}
}

func TestStreamWithdraw(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	var states []federation.WithdrawStateKind
	err := env.svc.StreamWithdraw(ctx, WithdrawRequest{Address: testAddress, AmountSat: AmountOrAll{Sats: 100}}, func(v any) error {
		states = append(states, v.(federation.WithdrawState).State)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []federation.WithdrawStateKind{federation.WithdrawCreated, federation.WithdrawSucceeded}, states)
}

func TestDepositAddressAndAwait(t *testing.T) {
	env := newTestEnv(t, true, "fed11alpha")
	ctx := testCtx(t)

	addr, err := env.svc.DepositAddress(ctx, DepositAddressRequest{Timeout: 3600})
	require.NoError(t, err)
	assert.Contains(t, addr.Address, "bcrt1q")

	resp, err := env.svc.AwaitDeposit(ctx, AwaitRequest{OperationID: addr.OperationID})
	require.NoError(t, err)
	assert.Equal(t, federation.DepositClaimed, resp.Status.State)
	assert.Equal(t, federation.Amount(50_000), resp.Status.Amount)

	balance, err := mustClient(t, env, 0).Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(1_050_000), balance)
}

func TestStreamDeposit(t *testing.T) {
	env := newTestEnv(t, true, "fed11alpha")
	ctx := testCtx(t)

	addr, err := env.svc.DepositAddress(ctx, DepositAddressRequest{Timeout: 3600})
	require.NoError(t, err)

	var states []federation.DepositStateKind
	err = env.svc.StreamDeposit(ctx, AwaitRequest{OperationID: addr.OperationID}, func(v any) error {
		states = append(states, v.(federation.DepositState).State)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []federation.DepositStateKind{
		federation.DepositWaitingForTransaction,
		federation.DepositWaitingForConfirmation,
		federation.DepositConfirmed,
		federation.DepositClaimed,
	}, states)
}

func TestDepositExpired(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	addr, err := env.svc.DepositAddress(ctx, DepositAddressRequest{Timeout: 0})
	require.NoError(t, err)

	_, err = env.svc.AwaitDeposit(ctx, AwaitRequest{OperationID: addr.OperationID})
	assertKind(t, err, KindUpstream)
	assert.Contains(t, err.Error(), "Deposit failed: deposit address expired")
}
