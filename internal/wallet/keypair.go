package wallet

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/crypto"

	"github.com/gagliardetto/solana-go"
)

// PrivateKeyLen is the Solana private key size: ed25519 seed || public key.
const PrivateKeyLen = ed25519.PrivateKeySize

// Identity is a decrypted wallet keypair.
// It only lives for the duration of one operation; call Destroy on every exit path.
type Identity struct {
	PublicKey  solana.PublicKey
	PrivateKey solana.PrivateKey
}

// Address returns the base58 wallet address.
func (id *Identity) Address() string {
	return id.PublicKey.String()
}

// Destroy wipes the private key bytes.
func (id *Identity) Destroy() {
	if id == nil {
		return
	}
	clear(id.PrivateKey)
	id.PrivateKey = nil
}

// GenerateKeypair creates a new Ed25519 keypair from a fresh 32-byte seed.
// An entropy failure is common.ErrFatal.
func GenerateKeypair(entropy io.Reader) (*Identity, error) {
	seed, err := crypto.RandomBytes(entropy, ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	defer clear(seed)

	privateKey := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	return &Identity{
		PublicKey:  privateKey.PublicKey(),
		PrivateKey: privateKey,
	}, nil
}

// IdentityFromPrivateKey copies a 64-byte private key and checks that its public half
// matches the seed. The caller keeps ownership of privateKey.
func IdentityFromPrivateKey(privateKey []byte) (*Identity, error) {
	if len(privateKey) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", common.ErrInvalidInput, PrivateKeyLen, len(privateKey))
	}

	derived := ed25519.NewKeyFromSeed(privateKey[:ed25519.SeedSize])
	defer clear(derived)

	if !bytes.Equal(derived[ed25519.SeedSize:], privateKey[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: private key does not match its public key", common.ErrInvalidInput)
	}

	key := make(solana.PrivateKey, PrivateKeyLen)
	copy(key, privateKey)
	return &Identity{
		PublicKey:  key.PublicKey(),
		PrivateKey: key,
	}, nil
}
