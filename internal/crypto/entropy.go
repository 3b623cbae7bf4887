// Package crypto holds the primitives behind the wallet vault: the entropy source,
// PBKDF2 key derivation, AES-256-GCM sealing and the salted PIN credential.
//
// Every function is stateless. Derived keys and other secrets returned to the caller
// must be wiped with clear() once they are no longer needed.
package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/AlexZinkM/payme-wallet/internal/common"
)

// DefaultEntropy is the OS CSPRNG. Tests may pass their own reader to the functions below.
var DefaultEntropy io.Reader = rand.Reader

// RandomBytes reads n bytes from entropy (DefaultEntropy when nil).
// A short or failed read is reported as common.ErrFatal.
func RandomBytes(entropy io.Reader, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: byte count must be positive", common.ErrInvalidInput)
	}
	if entropy == nil {
		entropy = DefaultEntropy
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(entropy, b); err != nil {
		return nil, fmt.Errorf("%w: failed to read random bytes: %v", common.ErrFatal, err)
	}
	return b, nil
}
