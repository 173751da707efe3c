package handler

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fedimint-http/internal/federation"
	"github.com/nerrad567/fedimint-http/internal/lnurl"
)

type fakeResolver struct {
	bolt11  string
	err     error
	target  *url.URL
	amount  uint64
	comment string
}

func (f *fakeResolver) Invoice(_ context.Context, target *url.URL, amountMsat uint64, comment string) (string, error) {
	f.target, f.amount, f.comment = target, amountMsat, comment
	return f.bolt11, f.err
}

func TestInvoiceInternalPayAndAwait(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 25_000, Description: "pizza"})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.OperationID)

	paid, err := env.svc.Pay(ctx, PayRequest{PaymentInfo: inv.Invoice})
	require.NoError(t, err)
	assert.Equal(t, federation.PayTypeInternal, paid.PaymentType)
	assert.NotEmpty(t, paid.ContractID)

	info, err := env.svc.AwaitInvoice(ctx, AwaitRequest{OperationID: inv.OperationID})
	require.NoError(t, err)
	// Paying yourself leaves the balance unchanged.
	assert.Equal(t, federation.Amount(1_000_000), info.TotalAmount)

	awaited, err := env.svc.AwaitPay(ctx, AwaitRequest{OperationID: paid.OperationID})
	require.NoError(t, err)
	assert.Equal(t, paid.ContractID, awaited.ContractID)
	assert.Equal(t, federation.PayTypeInternal, awaited.PaymentType)
}

func TestPayAcrossFederationsInBackground(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 100_000, FederationID: env.ids[1].String()})
	require.NoError(t, err)

	paid, err := env.svc.Pay(ctx, PayRequest{PaymentInfo: inv.Invoice, FinishInBackground: true})
	require.NoError(t, err)
	assert.Equal(t, federation.PayTypeLightning, paid.PaymentType)
	assert.Equal(t, federation.Amount(1010), paid.Fee)

	_, err = env.svc.AwaitPay(ctx, AwaitRequest{OperationID: paid.OperationID})
	require.NoError(t, err)

	info, err := env.svc.AwaitInvoice(ctx, AwaitRequest{OperationID: inv.OperationID, FederationID: env.ids[1].String()})
	require.NoError(t, err)
	assert.Equal(t, federation.Amount(1_100_000), info.TotalAmount)
}

func TestPayAmountRules(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	withAmount, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 5000})
	require.NoError(t, err)
	amountless, err := env.svc.Invoice(ctx, InvoiceRequest{})
	require.NoError(t, err)
	extra := federation.Amount(5000)

	tests := []struct {
		name    string
		req     PayRequest
		wantMsg string
	}{
		{"missing info", PayRequest{}, "paymentInfo is required"},
		{"amount twice", PayRequest{PaymentInfo: withAmount.Invoice, AmountMsat: &extra}, "Amount specified in both invoice and command line"},
		{"amountless", PayRequest{PaymentInfo: amountless.Invoice}, "We don't support invoices without an amount"},
		{"garbage", PayRequest{PaymentInfo: "hello"}, "Invalid invoice or lnurl"},
		{"bad lnurl", PayRequest{PaymentInfo: "lnurl1invalid"}, "Invalid lnurl"},
		{"lnurl without amount", PayRequest{PaymentInfo: "alice@example.com"}, "When using a lnurl, an amount must be specified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Pay(ctx, tt.req)
			assertKind(t, err, KindBadRequest)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestPayLightningAddress(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 42_000, FederationID: env.ids[1].String()})
	require.NoError(t, err)

	resolver := &fakeResolver{bolt11: inv.Invoice}
	env.svc.lnurl = resolver
	amount := federation.Amount(42_000)

	paid, err := env.svc.Pay(ctx, PayRequest{PaymentInfo: "bob@example.com", AmountMsat: &amount, LnurlComment: "hi"})
	require.NoError(t, err)
	assert.Equal(t, federation.PayTypeLightning, paid.PaymentType)
	assert.Equal(t, "https://example.com/.well-known/lnurlp/bob", resolver.target.String())
	assert.Equal(t, uint64(42_000), resolver.amount)
	assert.Equal(t, "hi", resolver.comment)

	other := federation.Amount(1)
	_, err = env.svc.Pay(ctx, PayRequest{PaymentInfo: "bob@example.com", AmountMsat: &other})
	assertKind(t, err, KindUpstream)
	assert.Contains(t, err.Error(), "wrong amount")

	resolver.err = errors.Join(lnurl.ErrUnexpectedResponse, errors.New("user not found"))
	_, err = env.svc.Pay(ctx, PayRequest{PaymentInfo: "bob@example.com", AmountMsat: &amount})
	assertKind(t, err, KindUpstream)
}

func TestStreamInvoiceForwardsEveryEvent(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 1000})
	require.NoError(t, err)
	_, err = env.svc.Pay(ctx, PayRequest{PaymentInfo: inv.Invoice})
	require.NoError(t, err)

	var states []federation.LnReceiveStateKind
	err = env.svc.StreamInvoice(ctx, AwaitRequest{OperationID: inv.OperationID}, func(v any) error {
		states = append(states, v.(federation.LnReceiveState).State)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, states, 5)
	assert.Equal(t, federation.LnReceiveClaimed, states[len(states)-1])
}

func TestStreamStopsWhenEmitFails(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 1000})
	require.NoError(t, err)

	errGone := errors.New("connection gone")
	calls := 0
	err = env.svc.StreamInvoice(ctx, AwaitRequest{OperationID: inv.OperationID}, func(any) error {
		calls++
		return errGone
	})
	assert.ErrorIs(t, err, errGone)
	assert.Equal(t, 1, calls)
}

func TestStreamPay(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha", "fed11beta")
	ctx := testCtx(t)

	inv, err := env.svc.Invoice(ctx, InvoiceRequest{AmountMsat: 1000, FederationID: env.ids[1].String()})
	require.NoError(t, err)
	paid, err := env.svc.Pay(ctx, PayRequest{PaymentInfo: inv.Invoice, FinishInBackground: true})
	require.NoError(t, err)

	var last federation.LnPayState
	err = env.svc.StreamPay(ctx, AwaitRequest{OperationID: paid.OperationID}, func(v any) error {
		last = v.(federation.LnPayState)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, federation.LnPaySuccess, last.State)

	err = env.svc.StreamPay(ctx, AwaitRequest{OperationID: "missing"}, func(any) error { return nil })
	assertKind(t, err, KindBadRequest)
}

func TestGateways(t *testing.T) {
	env := newTestEnv(t, false, "fed11alpha")
	ctx := testCtx(t)

	gateways, err := env.svc.ListGateways(ctx, FederationRequest{})
	require.NoError(t, err)
	require.Len(t, gateways, 2)
	assert.True(t, gateways[0].Active)
	assert.False(t, gateways[1].Active)

	switched, err := env.svc.SwitchGateway(ctx, SwitchGatewayRequest{GatewayID: gateways[1].ID})
	require.NoError(t, err)
	assert.True(t, switched.Active)
	assert.Equal(t, gateways[1].ID, switched.ID)

	gateways, err = env.svc.ListGateways(ctx, FederationRequest{})
	require.NoError(t, err)
	assert.False(t, gateways[0].Active)
	assert.True(t, gateways[1].Active)

	_, err = env.svc.SwitchGateway(ctx, SwitchGatewayRequest{GatewayID: "02ff"})
	assertKind(t, err, KindBadRequest)
	_, err = env.svc.SwitchGateway(ctx, SwitchGatewayRequest{})
	assertKind(t, err, KindBadRequest)
}
