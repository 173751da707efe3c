package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

type mintModule struct{ c *Client }

// Reissue implements federation.MintModule.
func (m mintModule) Reissue(ctx context.Context, notes federation.Notes) (federation.OperationID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.check(notes); err != nil {
		return "", err
	}

	m.c.mu.Lock()
	op := m.c.newOpLocked("mint", map[string]any{"variant": "reissuance", "amount": notes.Total()})
	op.reissue = newEventLog[federation.ReissueState]()
	m.c.mu.Unlock()

	go m.runReissue(op, notes)
	return op.id, nil
}

func (m mintModule) runReissue(op *opRecord, notes federation.Notes) {
	b := m.c.b
	op.reissue.push(federation.ReissueState{State: federation.ReissueCreated}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}
	op.reissue.push(federation.ReissueState{State: federation.ReissueIssuing}, false)
	if !b.sleep(b.opts.StepDelay) {
		return
	}

	m.c.mu.Lock()
	b.mu.Lock()
	doubleSpend := false
	for _, n := range notes.Items {
		if b.spent[n.Secret] {
			doubleSpend = true
			break
		}
	}
	if !doubleSpend {
		for _, n := range notes.Items {
			b.spent[n.Secret] = true
		}
		m.c.notes = append(m.c.notes, b.mintLocked(notes.Total())...)
	}
	b.mu.Unlock()
	m.c.mu.Unlock()

	if doubleSpend {
		m.c.finish(op, "failed")
		op.reissue.push(federation.ReissueState{State: federation.ReissueFailed, Error: "notes already spent"}, true)
		return
	}
	m.c.finish(op, "done")
	op.reissue.push(federation.ReissueState{State: federation.ReissueDone}, true)
}

// SubscribeReissue implements federation.MintModule.
func (m mintModule) SubscribeReissue(ctx context.Context, id federation.OperationID) (<-chan federation.ReissueState, error) {
	op, err := m.c.op(id)
	if err != nil {
		return nil, err
	}
	if op.reissue == nil {
		return nil, fmt.Errorf("%w: %s is not a reissuance", federation.ErrUnknownOperation, id)
	}
	return op.reissue.subscribe(ctx), nil
}

// Spend implements federation.MintModule. The simulated mint always has
// exact change, so allowOverpay never changes the selection.
func (m mintModule) Spend(ctx context.Context, amount federation.Amount, _ bool, timeout time.Duration) (federation.OperationID, federation.Notes, error) {
	if err := ctx.Err(); err != nil {
		return "", federation.Notes{}, err
	}
	if amount == 0 {
		return "", federation.Notes{}, fmt.Errorf("%w: amount must be positive", federation.ErrInvalidNotes)
	}

	c := m.c
	c.mu.Lock()
	if err := c.debitLocked(amount); err != nil {
		c.mu.Unlock()
		return "", federation.Notes{}, err
	}
	c.b.mu.Lock()
	items := c.b.mintLocked(amount)
	c.b.mu.Unlock()
	op := c.newOpLocked("mint", map[string]any{"variant": "spend_oob", "amount": amount, "timeout": timeout.Seconds()})
	c.mu.Unlock()

	notes := federation.Notes{Federation: c.id.Prefix(), Items: items}
	go m.reclaimAfter(op, notes, timeout)
	return op.id, notes, nil
}

// reclaimAfter returns unclaimed spent notes to the wallet once timeout passes.
func (m mintModule) reclaimAfter(op *opRecord, notes federation.Notes, timeout time.Duration) {
	b := m.c.b
	if timeout <= 0 || !b.sleep(timeout) {
		return
	}

	m.c.mu.Lock()
	b.mu.Lock()
	claimed := false
	for _, n := range notes.Items {
		if b.spent[n.Secret] {
			claimed = true
			break
		}
	}
	if !claimed {
		for _, n := range notes.Items {
			b.spent[n.Secret] = true
		}
		m.c.notes = append(m.c.notes, b.mintLocked(notes.Total())...)
	}
	b.mu.Unlock()
	m.c.mu.Unlock()

	if claimed {
		m.c.finish(op, "success")
	} else {
		m.c.finish(op, "user_canceled_success")
	}
}

// Validate implements federation.MintModule.
func (m mintModule) Validate(ctx context.Context, notes federation.Notes) (federation.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := m.check(notes); err != nil {
		return 0, err
	}
	return notes.Total(), nil
}

func (m mintModule) check(notes federation.Notes) error {
	if notes.Federation != m.c.id.Prefix() {
		return fmt.Errorf("%w: notes belong to federation %s", federation.ErrInvalidNotes, notes.Federation)
	}
	m.c.b.mu.Lock()
	defer m.c.b.mu.Unlock()
	if !m.c.b.validLocked(notes.Items) {
		return fmt.Errorf("%w: invalid note signature", federation.ErrInvalidNotes)
	}
	return nil
}
