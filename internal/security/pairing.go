package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPairingCodeLength keeps pairing codes from being trivially guessable.
const MinPairingCodeLength = 6

// HashPairingCode returns the bcrypt hash stored in auth.pairing_code_hash.
func HashPairingCode(code string) (string, error) {
	if len(code) < MinPairingCodeLength {
		return "", fmt.Errorf("pairing code must be at least %d characters", MinPairingCodeLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pairing code: %w", err)
	}
	return string(hash), nil
}

// CheckPairingCode reports whether code matches hash.
func CheckPairingCode(hash, code string) bool {
	if hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
