package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
)

// Credential checks presented bearer secrets against the configured one.
// It is safe for concurrent use.
type Credential struct {
	plain []byte
	hash  *phcHash

	// accepted is the digest of the last secret that matched hash.
	mu       sync.Mutex
	accepted [sha256.Size]byte
	cached   bool
}

// NewCredential builds a Credential from a plain password or a PHC hash.
// The hash wins when both are set.
func NewCredential(password, passwordHash string) (*Credential, error) {
	switch {
	case passwordHash != "":
		h, err := parsePHC(passwordHash)
		if err != nil {
			return nil, fmt.Errorf("security.password_hash: %w", err)
		}
		return &Credential{hash: &h}, nil
	case password != "":
		return &Credential{plain: []byte(password)}, nil
	default:
		return nil, ErrNoCredential
	}
}

// Verify reports whether secret is the configured credential.
func (c *Credential) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	if c.hash == nil {
		return subtle.ConstantTimeCompare(c.plain, []byte(secret)) == 1
	}

	digest := sha256.Sum256([]byte(secret))
	c.mu.Lock()
	hit := c.cached && subtle.ConstantTimeCompare(c.accepted[:], digest[:]) == 1
	c.mu.Unlock()
	if hit {
		return true
	}
	if !c.hash.matches(secret) {
		return false
	}
	c.mu.Lock()
	c.accepted, c.cached = digest, true
	c.mu.Unlock()
	return true
}
