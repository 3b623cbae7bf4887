package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/AlexZinkM/payme-wallet/internal/common"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2-HMAC-SHA256 parameters.
	//
	// A 4-digit PIN has 10,000 possible values, so the iteration count is the only
	// thing standing between a leaked vault and an offline brute force. It is a
	// security parameter: raise it, never lower it. Existing vaults carry no
	// iteration field, so a change here requires re-encrypting every stored vault.
	KDFIterations = 100_000
	KeyLen        = 32
	SaltLen       = 32
	NonceLen      = 12
	TagLen        = 16
)

// DeriveKey derives a 32-byte AES key from pin and a 32-byte salt.
// The same (pin, salt) pair always yields the same key. Caller must clear() the result.
func DeriveKey(pin, salt []byte) ([]byte, error) {
	if len(pin) == 0 {
		return nil, fmt.Errorf("%w: empty PIN", common.ErrInvalidInput)
	}
	if len(salt) != SaltLen {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", common.ErrInvalidInput, SaltLen, len(salt))
	}

	return pbkdf2.Key(pin, salt, KDFIterations, KeyLen, sha256.New), nil
}
