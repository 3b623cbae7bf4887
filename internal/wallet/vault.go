// Package wallet turns a user PIN into a usable signing key and back, without ever
// persisting plaintext key material.
//
// The encrypted vault (ciphertext, iv, salt) and the PIN credential are derived from
// the same PIN under independent salts. Opening a vault first checks the credential,
// then derives the vault key from the vault salt and decrypts.
package wallet

import (
	"fmt"
	"io"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/crypto"

	log "github.com/sirupsen/logrus"
)

// EncryptedVault is the persisted form of a private key.
type EncryptedVault struct {
	Ciphertext []byte
	IV         []byte
	Salt       []byte
}

// PinCredential is salt || digest of the PIN. It never serves as a decryption key.
type PinCredential struct {
	Hash []byte
}

// Vault creates, opens and re-keys encrypted vaults. It holds no secrets and is safe
// for concurrent use.
type Vault struct {
	entropy io.Reader
}

// NewVault returns a Vault reading randomness from entropy (crypto/rand when nil).
func NewVault(entropy io.Reader) *Vault {
	if entropy == nil {
		entropy = crypto.DefaultEntropy
	}
	return &Vault{entropy: entropy}
}

// GenerateKeypair creates a new wallet identity from the vault's entropy source.
func (v *Vault) GenerateKeypair() (*Identity, error) {
	return GenerateKeypair(v.entropy)
}

// CreateVault encrypts privateKey under pin with a fresh salt and iv and computes an
// independent PIN credential. privateKey is not modified; the caller still owns it.
func (v *Vault) CreateVault(privateKey, pin []byte) (*EncryptedVault, *PinCredential, error) {
	if err := common.ValidatePin(pin); err != nil {
		return nil, nil, err
	}

	identity, err := IdentityFromPrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	defer identity.Destroy()

	salt, err := crypto.RandomBytes(v.entropy, crypto.SaltLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := crypto.DeriveKey(pin, salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	ciphertext, iv, err := crypto.Encrypt(v.entropy, identity.PrivateKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	hash, err := crypto.HashPIN(v.entropy, pin)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	return &EncryptedVault{Ciphertext: ciphertext, IV: iv, Salt: salt}, &PinCredential{Hash: hash}, nil
}

// OpenVault verifies pin and decrypts the vault. Every failure after argument checks,
// wrong PIN or damaged data, returns the bare common.ErrIncorrectPinOrCorruptData.
// The caller must Destroy the returned identity; prefer WithOpenVault.
func (v *Vault) OpenVault(vault *EncryptedVault, credential *PinCredential, pin []byte) (*Identity, error) {
	if vault == nil || credential == nil {
		return nil, fmt.Errorf("%w: vault and credential are required", common.ErrInvalidInput)
	}

	ok, err := crypto.VerifyPIN(pin, credential.Hash)
	if err != nil {
		log.WithError(err).Debug("vault open failed: malformed pin credential")
		return nil, common.ErrIncorrectPinOrCorruptData
	}
	if !ok {
		log.Debug("vault open failed: pin mismatch")
		return nil, common.ErrIncorrectPinOrCorruptData
	}

	key, err := crypto.DeriveKey(pin, vault.Salt)
	if err != nil {
		log.WithError(err).Debug("vault open failed: malformed salt")
		return nil, common.ErrIncorrectPinOrCorruptData
	}
	defer clear(key)

	plaintext, err := crypto.Decrypt(vault.Ciphertext, key, vault.IV)
	if err != nil {
		log.WithError(err).Debug("vault open failed: decryption")
		return nil, common.ErrIncorrectPinOrCorruptData
	}
	defer clear(plaintext)

	identity, err := IdentityFromPrivateKey(plaintext)
	if err != nil {
		log.WithError(err).Debug("vault open failed: decrypted key is not a valid keypair")
		return nil, common.ErrIncorrectPinOrCorruptData
	}
	return identity, nil
}

// WithOpenVault opens the vault, runs fn with the identity and wipes the key afterwards,
// whether fn succeeds, fails or panics.
func (v *Vault) WithOpenVault(vault *EncryptedVault, credential *PinCredential, pin []byte, fn func(*Identity) error) error {
	identity, err := v.OpenVault(vault, credential, pin)
	if err != nil {
		return err
	}
	defer identity.Destroy()

	return fn(identity)
}

// ChangePin re-encrypts the vault under newPin with entirely new salt, iv and credential.
// The inputs are never modified, so a failure leaves the old vault usable.
func (v *Vault) ChangePin(vault *EncryptedVault, credential *PinCredential, oldPin, newPin []byte) (*EncryptedVault, *PinCredential, error) {
	if err := common.ValidatePin(newPin); err != nil {
		return nil, nil, err
	}

	var (
		nextVault      *EncryptedVault
		nextCredential *PinCredential
	)
	err := v.WithOpenVault(vault, credential, oldPin, func(identity *Identity) error {
		var err error
		nextVault, nextCredential, err = v.CreateVault(identity.PrivateKey, newPin)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return nextVault, nextCredential, nil
}

// VerifyPin checks pin against a stored credential without touching the vault.
func (v *Vault) VerifyPin(credential *PinCredential, pin []byte) (bool, error) {
	if credential == nil {
		return false, fmt.Errorf("%w: credential is required", common.ErrInvalidInput)
	}
	return crypto.VerifyPIN(pin, credential.Hash)
}
