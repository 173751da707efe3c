package auth

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ticketIssuer   = "fedimint-http"
	ticketAudience = "ws"

	defaultTicketTTL = time.Minute
)

// Tickets issues and redeems single-use WebSocket tickets.
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time // jti -> expiry
}

// NewTickets creates a ticket issuer. An empty secret is replaced by a
// random one, which invalidates tickets across restarts.
func NewTickets(secret string, ttl time.Duration) (*Tickets, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32) //nolint:mnd // 256-bit signing key
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating ticket secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = defaultTicketTTL
	}
	return &Tickets{
		secret: key,
		ttl:    ttl,
		now:    time.Now,
		used:   make(map[string]time.Time),
	}, nil
}

// Issue returns a new signed ticket and its expiry.
func (t *Tickets) Issue() (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    ticketIssuer,
		Audience:  jwt.ClaimStrings{ticketAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing ticket: %w", err)
	}
	return signed, expires, nil
}

// Redeem validates a ticket and marks it used.
func (t *Tickets) Redeem(ticket string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(ticket, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ticketIssuer),
		jwt.WithAudience(ticketAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTicketInvalid, err)
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: missing id", ErrTicketInvalid)
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, exp := range t.used {
		if now.After(exp) {
			delete(t.used, id)
		}
	}
	if _, seen := t.used[claims.ID]; seen {
		return ErrTicketReused
	}
	t.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}
