package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/AlexZinkM/payme-wallet/internal/common"

	"golang.org/x/crypto/pbkdf2"
)

// CredentialLen is the size of a PIN credential: salt(32) || digest(32).
const CredentialLen = SaltLen + KeyLen

// HashPIN returns a self-describing credential salt || PBKDF2(pin, salt).
// The salt is fresh per call and unrelated to any vault salt.
func HashPIN(entropy io.Reader, pin []byte) ([]byte, error) {
	if len(pin) == 0 {
		return nil, fmt.Errorf("%w: empty PIN", common.ErrInvalidInput)
	}

	salt, err := RandomBytes(entropy, SaltLen)
	if err != nil {
		return nil, fmt.Errorf("failed to generate pin salt: %w", err)
	}

	digest := pbkdf2.Key(pin, salt, KDFIterations, KeyLen, sha256.New)
	defer clear(digest)

	credential := make([]byte, 0, CredentialLen)
	credential = append(credential, salt...)
	credential = append(credential, digest...)
	return credential, nil
}

// VerifyPIN recomputes the digest with the embedded salt and compares in constant time.
// A mismatch is (false, nil); only a malformed credential is an error.
func VerifyPIN(pin, credential []byte) (bool, error) {
	if len(credential) != CredentialLen {
		return false, fmt.Errorf("%w: pin credential must be %d bytes, got %d", common.ErrInvalidInput, CredentialLen, len(credential))
	}
	if len(pin) == 0 {
		return false, nil
	}

	salt, stored := credential[:SaltLen], credential[SaltLen:]

	digest := pbkdf2.Key(pin, salt, KDFIterations, KeyLen, sha256.New)
	defer clear(digest)

	return subtle.ConstantTimeCompare(digest, stored) == 1, nil
}
