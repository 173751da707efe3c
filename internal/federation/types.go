package federation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PrefixLength is the number of hex characters in a canonical federation prefix.
const PrefixLength = 8

// MsatPerSat converts between millisatoshis and satoshis.
const MsatPerSat = 1000

// ID is the stable identity of a federation: 32 bytes, lower-case hex.
type ID string

// ParseID validates and normalises a federation id.
func ParseID(s string) (ID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(s), nil
}

// Prefix returns the canonical short prefix carried by notes of this federation.
func (id ID) Prefix() Prefix {
	if len(id) < PrefixLength {
		return Prefix(id)
	}
	return Prefix(id[:PrefixLength])
}

// HasPrefix reports whether p is a leading substring of id.
func (id ID) HasPrefix(p Prefix) bool {
	return p != "" && strings.HasPrefix(string(id), string(p))
}

func (id ID) String() string { return string(id) }

// Prefix is a short, not necessarily unique, lookup key for a federation.
type Prefix string

func (p Prefix) String() string { return string(p) }

// OperationID identifies one tracked asynchronous operation inside a client.
type OperationID string

func (o OperationID) String() string { return string(o) }

// Amount is a quantity of millisatoshis.
type Amount uint64

// Sats returns a whole-satoshi amount rounded down.
func (a Amount) Sats() uint64 { return uint64(a) / MsatPerSat }

// FromSats converts satoshis to an Amount.
func FromSats(sats uint64) Amount { return Amount(sats * MsatPerSat) }

// Note is a single e-cash note of one denomination.
type Note struct {
	Amount Amount `json:"amount"`
	Secret string `json:"secret"`
}

// Notes is a bundle of e-cash notes issued by a single federation. The
// string form is produced by Backend.EncodeNotes.
type Notes struct {
	Federation Prefix `json:"federation"`
	Items      []Note `json:"notes"`
}

// Total sums the value of all notes in the bundle.
func (n Notes) Total() Amount {
	var total Amount
	for _, item := range n.Items {
		total += item.Amount
	}
	return total
}

// NoteSummary describes a client's spendable e-cash by denomination.
type NoteSummary struct {
	TotalAmount   Amount         `json:"totalAmountMsat"`
	TotalNotes    int            `json:"totalNumNotes"`
	Denominations map[Amount]int `json:"denominationsMsat"`
}

// Gateway is a Lightning gateway registered with a federation.
type Gateway struct {
	ID         string      `json:"gatewayId"`
	NodePubKey string      `json:"nodePubKey"`
	API        string      `json:"api"`
	Fees       GatewayFees `json:"fees"`
	Vetted     bool        `json:"vetted"`
}

// GatewayFees are the routing fees a gateway charges.
type GatewayFees struct {
	BaseMsat           Amount `json:"baseMsat"`
	ProportionalMillis uint32 `json:"proportionalMillionths"`
}

// Invoice is a decoded BOLT11 invoice.
type Invoice struct {
	Bolt11      string        `json:"invoice"`
	Amount      *Amount       `json:"amountMsat,omitempty"`
	PaymentHash string        `json:"paymentHash"`
	Description string        `json:"description"`
	Expiry      time.Duration `json:"-"`
}

// PayType tells whether an outgoing payment stayed inside the federation.
type PayType string

const (
	PayTypeLightning PayType = "lightning"
	PayTypeInternal  PayType = "internal"
)

// OutgoingPayment is returned when a Lightning payment has been submitted.
type OutgoingPayment struct {
	OperationID OperationID `json:"operationId"`
	PayType     PayType     `json:"paymentType"`
	ContractID  string      `json:"contractId"`
	Fee         Amount      `json:"fee"`
}

// WithdrawFees is the on-chain fee quote for a withdrawal.
type WithdrawFees struct {
	FeeRateSatsPerKVB uint64 `json:"feeRateSatsPerKvb"`
	TotalWeight       uint64 `json:"totalWeight"`
}

// Sats returns the absolute fee in satoshis.
func (f WithdrawFees) Sats() uint64 {
	// Weight units are a quarter of a virtual byte.
	vbytes := (f.TotalWeight + 3) / 4
	return (f.FeeRateSatsPerKVB*vbytes + 999) / 1000
}

// OperationLogEntry is one row of a client's operation log.
type OperationLogEntry struct {
	ID           OperationID     `json:"id"`
	CreationTime time.Time       `json:"creationTime"`
	Kind         string          `json:"operationKind"`
	Meta         json.RawMessage `json:"operationMeta"`
	Outcome      json.RawMessage `json:"outcome,omitempty"`
}
