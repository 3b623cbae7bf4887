package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/AlexZinkM/payme-wallet/internal/common"
)

// ErrAuthenticationFailed covers both a wrong key and tampered ciphertext or IV.
// The two cases are deliberately indistinguishable.
var ErrAuthenticationFailed = errors.New("crypto: message authentication failed")

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrInvalidInput, KeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// Encrypt seals plaintext with AES-256-GCM under key using a fresh random 12-byte IV.
// The returned ciphertext is len(plaintext)+TagLen bytes.
func Encrypt(entropy io.Reader, plaintext, key []byte) (ciphertext, iv []byte, err error) {
	if len(plaintext) == 0 {
		return nil, nil, fmt.Errorf("%w: empty plaintext", common.ErrInvalidInput)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	// Never reuse an IV under the same key.
	iv, err = RandomBytes(entropy, NonceLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	return aesGCM.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext produced by Encrypt. Caller must clear() the plaintext.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(iv) != NonceLen {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", common.ErrInvalidInput, NonceLen, len(iv))
	}
	if len(ciphertext) <= TagLen {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrInvalidInput)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
