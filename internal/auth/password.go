package auth

import (
	"fmt"

	"github.com/matthewhartstonge/argon2"
)

// PasswordHasher hashes passwords into self-describing argon2id strings.
type PasswordHasher struct {
	config argon2.Config
}

func NewPasswordHasher(config argon2.Config) *PasswordHasher {
	return &PasswordHasher{config: config}
}

func DefaultPasswordHasher() *PasswordHasher {
	return NewPasswordHasher(argon2.DefaultConfig())
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(encoded), nil
}

// Verify reports whether password matches encoded. A malformed hash never matches.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	if encoded == "" {
		return false
	}
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encoded))
	return err == nil && ok
}
