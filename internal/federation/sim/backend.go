package sim

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fedimint-http/internal/federation"
)

const (
	notesPrefix   = "fedsim1"
	invoicePrefix = "lnsim1"

	defaultNetwork = "regtest"
)

// Options configures the simulated federations.
type Options struct {
	// StepDelay separates consecutive lifecycle events.
	StepDelay time.Duration

	// InitialBalance is minted into every newly joined federation client.
	InitialBalance federation.Amount

	// DepositAmount is credited by simulated on-chain deposits.
	DepositAmount federation.Amount

	// AutoSettle makes a simulated counterparty pay invoices and fund
	// deposit addresses.
	AutoSettle bool
}

// Backend implements federation.Backend in memory.
type Backend struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	clients  map[federation.ID]*Client
	issued   map[string]federation.Amount // note secret -> denomination
	spent    map[string]bool
	invoices map[string]*invoice // payment hash -> invoice
}

var _ federation.Backend = (*Backend)(nil)

// New creates an empty simulated backend.
func New(opts Options) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[federation.ID]*Client),
		issued:   make(map[string]federation.Amount),
		spent:    make(map[string]bool),
		invoices: make(map[string]*invoice),
	}
}

// Close stops every running simulation.
func (b *Backend) Close() error {
	b.cancel()
	return nil
}

// IDForInvite returns the federation id an invite code joins.
func IDForInvite(inviteCode string) federation.ID {
	sum := sha256.Sum256([]byte(inviteCode))
	return federation.ID(hex.EncodeToString(sum[:]))
}

// Join implements federation.Backend.
func (b *Backend) Join(ctx context.Context, inviteCode string) (federation.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" || strings.ContainsAny(inviteCode, " \t\n") {
		return nil, fmt.Errorf("%w: %q", federation.ErrInvalidInvite, inviteCode)
	}
	return b.client(IDForInvite(inviteCode), inviteCode, true), nil
}

// Open implements federation.Backend.
func (b *Backend) Open(ctx context.Context, id federation.ID, inviteCode string) (federation.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IDForInvite(inviteCode) != id {
		return nil, fmt.Errorf("%w: invite does not belong to %s", federation.ErrInvalidInvite, id)
	}
	return b.client(id, inviteCode, false), nil
}

func (b *Backend) client(id federation.ID, invite string, fund bool) *Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.clients[id]; ok {
		return c
	}
	c := newClient(b, id, invite)
	if fund && b.opts.InitialBalance > 0 {
		c.notes = b.mintLocked(b.opts.InitialBalance)
	}
	b.clients[id] = c
	return c
}

// DecodeNotes implements federation.Backend.
func (b *Backend) DecodeNotes(s string) (federation.Notes, error) {
	var notes federation.Notes
	if err := decodeTagged(s, notesPrefix, &notes); err != nil {
		return federation.Notes{}, fmt.Errorf("%w: %v", federation.ErrInvalidNotes, err)
	}
	if notes.Federation == "" || len(notes.Items) == 0 {
		return federation.Notes{}, fmt.Errorf("%w: empty note bundle", federation.ErrInvalidNotes)
	}
	return notes, nil
}

// EncodeNotes implements federation.Backend.
func (b *Backend) EncodeNotes(notes federation.Notes) (string, error) {
	if len(notes.Items) == 0 {
		return "", fmt.Errorf("%w: empty note bundle", federation.ErrInvalidNotes)
	}
	return encodeTagged(notesPrefix, notes)
}

// mintLocked issues fresh notes worth amount in power-of-two denominations.
func (b *Backend) mintLocked(amount federation.Amount) []federation.Note {
	var notes []federation.Note
	for bit := federation.Amount(1); amount > 0; bit <<= 1 {
		if amount&bit == 0 {
			continue
		}
		amount &^= bit
		secret := randomHex(16)
		b.issued[secret] = bit
		notes = append(notes, federation.Note{Amount: bit, Secret: secret})
	}
	return notes
}

// validLocked reports whether every note was issued with its stated value.
func (b *Backend) validLocked(notes []federation.Note) bool {
	for _, n := range notes {
		if amount, ok := b.issued[n.Secret]; !ok || amount != n.Amount {
			return false
		}
	}
	return true
}

// sleep waits one step; false when the backend shut down.
func (b *Backend) sleep(d time.Duration) bool {
	if d <= 0 {
		return b.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-b.ctx.Done():
		return false
	}
}

func encodeTagged(prefix string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeTagged(s, prefix string, v any) error {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), prefix)
	if !ok {
		return fmt.Errorf("missing %s prefix", prefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("sim: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
