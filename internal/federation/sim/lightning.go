package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// invoice is the shared record behind an lnsim1 string.
type invoice struct {
	hash        string
	bolt11      string
	amount      federation.Amount
	description string
	expiresAt   time.Time
	federation  federation.ID

	claimed bool          // guarded by Backend.mu
	paid    chan struct{} // closed once the payer settled
}

// invoicePayload is the JSON encoded in an lnsim1 invoice.
type invoicePayload struct {
	Hash        string            `json:"h"`
	Amount      federation.Amount `json:"a"`
	Description string            `json:"d"`
	ExpiresAt   int64             `json:"x"`
	Federation  federation.Prefix `json:"f"`
}

type lightningModule struct{ c *Client }

// ListGateways implements federation.LightningModule.
func (l lightningModule) ListGateways(ctx context.Context) ([]federation.Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	out := make([]federation.Gateway, len(l.c.gateways))
	copy(out, l.c.gateways)
	return out, nil
}

// ActiveGateway implements federation.LightningModule.
func (l lightningModule) ActiveGateway(ctx context.Context) (federation.Gateway, error) {
	if err := ctx.Err(); err != nil {
		return federation.Gateway{}, err
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	return l.gatewayLocked(l.c.active)
}

// SetActiveGateway implements federation.LightningModule.
func (l lightningModule) SetActiveGateway(ctx context.Context, gatewayID string) (federation.Gateway, error) {
	if err := ctx.Err(); err != nil {
		return federation.Gateway{}, err
	}
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	gw, err := l.gatewayLocked(gatewayID)
	if err != nil {
		return federation.Gateway{}, err
	}
	l.c.active = gw.ID
	return gw, nil
}

func (l lightningModule) gatewayLocked(id string) (federation.Gateway, error) {
	for _, gw := range l.c.gateways {
		if gw.ID == id {
			return gw, nil
		}
	}
	return federation.Gateway{}, fmt.Errorf("%w: %s", federation.ErrUnknownGateway, id)
}

// CreateInvoice implements federation.LightningModule.
func (l lightningModule) CreateInvoice(ctx context.Context, amount federation.Amount, description string, expiry time.Duration) (federation.OperationID, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if expiry <= 0 {
		expiry = time.Hour
	}

	inv := &invoice{
		hash:        randomHex(32),
		amount:      amount,
		description: description,
		expiresAt:   time.Now().Add(expiry).UTC(),
		federation:  l.c.id,
		paid:        make(chan struct{}),
	}
	bolt11, err := encodeTagged(invoicePrefix, invoicePayload{
		Hash:        inv.hash,
		Amount:      amount,
		Description: description,
		ExpiresAt:   inv.expiresAt.Unix(),
		Federation:  l.c.id.Prefix(),
	})
	if err != nil {
		return "", "", err
	}
	inv.bolt11 = bolt11

	b := l.c.b
	b.mu.Lock()
	b.invoices[inv.hash] = inv
	b.mu.Unlock()

	l.c.mu.Lock()
	op := l.c.newOpLocked("ln", map[string]any{"variant": "receive", "invoice": bolt11, "amount": amount})
	op.receive = newEventLog[federation.LnReceiveState]()
	l.c.mu.Unlock()

	go l.runReceive(op, inv)
	return op.id, bolt11, nil
}

func (l lightningModule) runReceive(op *opRecord, inv *invoice) {
	b := l.c.b
	op.receive.push(federation.LnReceiveState{State: federation.LnReceiveCreated}, false)
	op.receive.push(federation.LnReceiveState{State: federation.LnReceiveWaitingForPayment, Invoice: inv.bolt11}, false)

	var settle <-chan time.Time
	if b.opts.AutoSettle {
		t := time.NewTimer(b.opts.StepDelay)
		defer t.Stop()
		settle = t.C
	}
	expire := time.NewTimer(time.Until(inv.expiresAt))
	defer expire.Stop()

	select {
	case <-inv.paid:
	case <-settle:
		if b.claimInvoice(inv) {
			close(inv.paid)
		}
	case <-expire.C:
		if b.claimInvoice(inv) {
			l.c.finish(op, "canceled")
			op.receive.push(federation.LnReceiveState{State: federation.LnReceiveCanceled, Reason: "invoice expired"}, true)
			return
		}
	case <-b.ctx.Done():
		return
	}

	// A payer may have claimed the invoice without settling it yet.
	select {
	case <-inv.paid:
	case <-b.ctx.Done():
		return
	}

	op.receive.push(federation.LnReceiveState{State: federation.LnReceiveFunded}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	op.receive.push(federation.LnReceiveState{State: federation.LnReceiveAwaitingFunds}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	l.c.credit(inv.amount)
	l.c.finish(op, "claimed")
	op.receive.push(federation.LnReceiveState{State: federation.LnReceiveClaimed}, true)
}

// claimInvoice reserves inv for one payer. False when already taken.
func (b *Backend) claimInvoice(inv *invoice) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inv.claimed {
		return false
	}
	inv.claimed = true
	return true
}

// SubscribeReceive implements federation.LightningModule.
func (l lightningModule) SubscribeReceive(ctx context.Context, id federation.OperationID) (<-chan federation.LnReceiveState, error) {
	op, err := l.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.receive == nil {
		return nil, fmt.Errorf("%w: %s is not an incoming payment", federation.ErrUnknownOperation, id)
	}
	return op.receive.subscribe(ctx), nil
}

// DecodeInvoice implements federation.LightningModule.
func (l lightningModule) DecodeInvoice(bolt11 string) (federation.Invoice, error) {
	var p invoicePayload
	if err := decodeTagged(bolt11, invoicePrefix, &p); err != nil {
		return federation.Invoice{}, fmt.Errorf("%w: %v", federation.ErrInvalidInvoice, err)
	}
	if p.Hash == "" {
		return federation.Invoice{}, fmt.Errorf("%w: missing payment hash", federation.ErrInvalidInvoice)
	}
	inv := federation.Invoice{
		Bolt11:      bolt11,
		PaymentHash: p.Hash,
		Description: p.Description,
		Expiry:      time.Until(time.Unix(p.ExpiresAt, 0)),
	}
	if p.Amount > 0 {
		amount := p.Amount
		inv.Amount = &amount
	}
	return inv, nil
}

// Pay implements federation.LightningModule.
func (l lightningModule) Pay(ctx context.Context, in federation.Invoice) (federation.OutgoingPayment, error) {
	if err := ctx.Err(); err != nil {
		return federation.OutgoingPayment{}, err
	}
	if in.Amount == nil {
		return federation.OutgoingPayment{}, fmt.Errorf("%w: invoice has no amount", federation.ErrInvalidInvoice)
	}
	amount := *in.Amount

	c, b := l.c, l.c.b
	b.mu.Lock()
	target := b.invoices[in.PaymentHash]
	b.mu.Unlock()
	if target != nil && time.Now().After(target.expiresAt) {
		return federation.OutgoingPayment{}, fmt.Errorf("%w: invoice expired", federation.ErrInvalidInvoice)
	}
	internal := target != nil && target.federation == c.id

	c.mu.Lock()
	var fee federation.Amount
	if !internal {
		gw, err := l.gatewayLocked(c.active)
		if err != nil {
			c.mu.Unlock()
			return federation.OutgoingPayment{}, err
		}
		fee = gw.Fees.BaseMsat + amount*federation.Amount(gw.Fees.ProportionalMillis)/1_000_000
	}
	if err := c.debitLocked(amount + fee); err != nil {
		c.mu.Unlock()
		return federation.OutgoingPayment{}, err
	}
	if target != nil && !b.claimInvoice(target) {
		// Undo the debit: the invoice is already settled.
		b.mu.Lock()
		c.notes = append(c.notes, b.mintLocked(amount+fee)...)
		b.mu.Unlock()
		c.mu.Unlock()
		return federation.OutgoingPayment{}, fmt.Errorf("%w: invoice already paid", federation.ErrInvalidInvoice)
	}

	payType := federation.PayTypeLightning
	if internal {
		payType = federation.PayTypeInternal
	}
	op := c.newOpLocked("ln", map[string]any{"variant": "pay", "invoice": in.Bolt11, "amount": amount, "fee": fee})
	op.payType = payType
	op.contractID = randomHex(32)
	if internal {
		op.internal = newEventLog[federation.InternalPayState]()
	} else {
		op.pay = newEventLog[federation.LnPayState]()
	}
	c.mu.Unlock()

	if internal {
		go l.runInternalPay(op, target)
	} else {
		go l.runLightningPay(op, target)
	}

	return federation.OutgoingPayment{
		OperationID: op.id,
		PayType:     payType,
		ContractID:  op.contractID,
		Fee:         fee,
	}, nil
}

func (l lightningModule) runInternalPay(op *opRecord, target *invoice) {
	b := l.c.b
	op.internal.push(federation.InternalPayState{State: federation.InternalPayFunding}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	close(target.paid)
	l.c.finish(op, "success")
	op.internal.push(federation.InternalPayState{State: federation.InternalPayPreimage, Preimage: randomHex(32)}, true)
}

func (l lightningModule) runLightningPay(op *opRecord, target *invoice) {
	b := l.c.b
	op.pay.push(federation.LnPayState{State: federation.LnPayCreated}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	op.pay.push(federation.LnPayState{State: federation.LnPayFunded}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	if target != nil {
		close(target.paid)
	}
	l.c.finish(op, "success")
	op.pay.push(federation.LnPayState{State: federation.LnPaySuccess, Preimage: randomHex(32)}, true)
}

// PaymentType implements federation.LightningModule.
func (l lightningModule) PaymentType(_ context.Context, id federation.OperationID) (federation.PayType, string, error) {
	op, err := l.c.op(id)
	if err != nil {
		return "", "", err
	}
	if op.payType == "" {
		return "", "", fmt.Errorf("%w: %s is not an outgoing payment", federation.ErrUnknownOperation, id)
	}
	return op.payType, op.contractID, nil
}

// SubscribePay implements federation.LightningModule.
func (l lightningModule) SubscribePay(ctx context.Context, id federation.OperationID) (<-chan federation.LnPayState, error) {
	op, err := l.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.pay == nil {
		return nil, fmt.Errorf("%w: %s is not a lightning payment", federation.ErrUnknownOperation, id)
	}
	return op.pay.subscribe(ctx), nil
}

// SubscribeInternalPay implements federation.LightningModule.
func (l lightningModule) SubscribeInternalPay(ctx context.Context, id federation.OperationID) (<-chan federation.InternalPayState, error) {
	op, err := l.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.internal == nil {
		return nil, fmt.Errorf("%w: %s is not an internal payment", federation.ErrUnknownOperation, id)
	}
	return op.internal.subscribe(ctx), nil
}
