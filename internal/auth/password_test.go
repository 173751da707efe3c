package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("unexpected PHC prefix in %q", hash)
	}

	ok, err := VerifyPassword("correct-horse-battery-staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("VerifyPassword() should accept the hashed password")
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if ok {
		t.Error("VerifyPassword() should reject a different password")
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, err := HashPassword("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPassword("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") should fail")
	}
}

func TestVerifyPassword_InvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x,t=3,p=1$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
		{"empty key", "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifyPassword("x", tt.hash); err == nil {
				t.Errorf("VerifyPassword() should fail for %q", tt.hash)
			}
		})
	}
}

func TestCredential_Plain(t *testing.T) {
	c, err := NewCredential("hunter2", "")
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	if !c.Verify("hunter2") {
		t.Error("Verify() should accept the configured password")
	}
	for _, bad := range []string{"", "hunter", "hunter22"} {
		if c.Verify(bad) {
			t.Errorf("Verify(%q) should fail", bad)
		}
	}
}

func TestCredential_Hash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	// The hash takes precedence over the plain password.
	c, err := NewCredential("ignored", hash)
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	if c.Verify("ignored") {
		t.Error("plain password should not be accepted when a hash is set")
	}
	for i := 0; i < 2; i++ {
		if !c.Verify("s3cret") {
			t.Fatalf("Verify() attempt %d should succeed", i)
		}
	}
	if c.Verify("S3cret") {
		t.Error("Verify() should be case sensitive")
	}
}

func TestNewCredential_Errors(t *testing.T) {
	if _, err := NewCredential("", ""); err != ErrNoCredential {
		t.Errorf("NewCredential() error = %v, want ErrNoCredential", err)
	}
	if _, err := NewCredential("", "not-a-hash"); err == nil {
		t.Error("NewCredential() should reject a malformed hash")
	}
}
