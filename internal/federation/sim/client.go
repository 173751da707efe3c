package sim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

// Client is a simulated federation client. Lock order is Client.mu before
// Backend.mu.
type Client struct {
	b      *Backend
	id     federation.ID
	invite string

	mu       sync.Mutex
	notes    []federation.Note
	ops      map[federation.OperationID]*opRecord
	gateways []federation.Gateway
	active   string
	backups  []map[string]string
}

var _ federation.Client = (*Client)(nil)

// opRecord is one entry of the client's operation log plus its event stream.
type opRecord struct {
	id      federation.OperationID
	module  string
	created time.Time
	meta    json.RawMessage
	outcome json.RawMessage

	payType    federation.PayType
	contractID string

	receive  *eventLog[federation.LnReceiveState]
	pay      *eventLog[federation.LnPayState]
	internal *eventLog[federation.InternalPayState]
	deposit  *eventLog[federation.DepositState]
	withdraw *eventLog[federation.WithdrawState]
	reissue  *eventLog[federation.ReissueState]
}

func newClient(b *Backend, id federation.ID, invite string) *Client {
	c := &Client{
		b:      b,
		id:     id,
		invite: invite,
		ops:    make(map[federation.OperationID]*opRecord),
	}
	c.gateways = simGateways(id)
	c.active = c.gateways[0].ID
	return c
}

func simGateways(id federation.ID) []federation.Gateway {
	fees := []federation.GatewayFees{
		{BaseMsat: 1000, ProportionalMillis: 100},
		{BaseMsat: 0, ProportionalMillis: 500},
	}
	gateways := make([]federation.Gateway, 0, len(fees))
	for i, f := range fees {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s/gateway/%d", id, i)))
		key := "02" + hex.EncodeToString(sum[:])
		gateways = append(gateways, federation.Gateway{
			ID:         key,
			NodePubKey: key,
			API:        fmt.Sprintf("https://gateway-%d.%s.sim.invalid", i, id.Prefix()),
			Fees:       f,
			Vetted:     i == 0,
		})
	}
	return gateways
}

// ID implements federation.Client.
func (c *Client) ID() federation.ID { return c.id }

// Network implements federation.Client.
func (c *Client) Network() string { return defaultNetwork }

// Meta implements federation.Client.
func (c *Client) Meta() map[string]string {
	return map[string]string{
		"federation_name": "Sim Federation " + c.id.Prefix().String(),
	}
}

// ConfigJSON implements federation.Client.
func (c *Client) ConfigJSON(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"global": map[string]any{
			"federation_id": c.id,
			"api_endpoints": map[string]any{
				"0": map[string]string{"name": "sim-guardian-0", "url": "wss://guardian-0.sim.invalid"},
			},
			"meta": c.Meta(),
		},
		"modules": map[string]any{
			"0": map[string]string{"kind": "ln"},
			"1": map[string]string{"kind": "mint"},
			"2": map[string]string{"kind": "wallet", "network": defaultNetwork},
		},
	})
}

// DiscoverAPIVersion implements federation.Client.
func (c *Client) DiscoverAPIVersion(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"core":{"major":0,"minor":3},"modules":{"0":{"major":0,"minor":1},"1":{"major":0,"minor":1},"2":{"major":0,"minor":1}}}`), nil
}

// Balance implements federation.Client.
func (c *Client) Balance(ctx context.Context) (federation.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceLocked(), nil
}

func (c *Client) balanceLocked() federation.Amount {
	var total federation.Amount
	for _, n := range c.notes {
		total += n.Amount
	}
	return total
}

// NoteSummary implements federation.Client.
func (c *Client) NoteSummary(ctx context.Context) (federation.NoteSummary, error) {
	if err := ctx.Err(); err != nil {
		return federation.NoteSummary{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := federation.NoteSummary{Denominations: make(map[federation.Amount]int)}
	for _, n := range c.notes {
		summary.TotalAmount += n.Amount
		summary.TotalNotes++
		summary.Denominations[n.Amount]++
	}
	return summary, nil
}

// Backup implements federation.Client.
func (c *Client) Backup(ctx context.Context, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := make(map[string]string, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	c.mu.Lock()
	c.backups = append(c.backups, copied)
	c.mu.Unlock()
	return nil
}

// Backups returns the metadata of every backup taken, oldest first.
func (c *Client) Backups() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]string, len(c.backups))
	copy(out, c.backups)
	return out
}

// ListOperations implements federation.Client. Newest operations come first.
func (c *Client) ListOperations(ctx context.Context, limit int) ([]federation.OperationLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]federation.OperationLogEntry, 0, len(c.ops))
	for _, op := range c.ops {
		entries = append(entries, federation.OperationLogEntry{
			ID:           op.id,
			CreationTime: op.created,
			Kind:         op.module,
			Meta:         op.meta,
			Outcome:      op.outcome,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreationTime.Equal(entries[j].CreationTime) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreationTime.After(entries[j].CreationTime)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Mint implements federation.Client.
func (c *Client) Mint() federation.MintModule { return mintModule{c} }

// Lightning implements federation.Client.
func (c *Client) Lightning() federation.LightningModule { return lightningModule{c} }

// Wallet implements federation.Client.
func (c *Client) Wallet() federation.WalletModule { return walletModule{c} }

// newOpLocked registers an operation in the log.
func (c *Client) newOpLocked(module string, meta any) *opRecord {
	raw, err := json.Marshal(meta)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	op := &opRecord{
		id:      federation.OperationID(randomHex(32)),
		module:  module,
		created: time.Now().UTC(),
		meta:    raw,
	}
	c.ops[op.id] = op
	return op
}

// finish records the operation outcome.
func (c *Client) finish(op *opRecord, outcome any) {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return
	}
	c.mu.Lock()
	op.outcome = raw
	c.mu.Unlock()
}

func (c *Client) op(id federation.OperationID) (*opRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", federation.ErrUnknownOperation, id)
	}
	return op, nil
}

// debitLocked removes amount from the wallet, minting change for the rest.
// The removed notes are burned.
func (c *Client) debitLocked(amount federation.Amount) error {
	balance := c.balanceLocked()
	if balance < amount {
		return fmt.Errorf("%w: have %d msat, need %d msat", federation.ErrInsufficientBalance, balance, amount)
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	for _, n := range c.notes {
		c.b.spent[n.Secret] = true
	}
	c.notes = c.b.mintLocked(balance - amount)
	return nil
}

// credit mints amount into the wallet.
func (c *Client) credit(amount federation.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.notes = append(c.notes, c.b.mintLocked(amount)...)
}
