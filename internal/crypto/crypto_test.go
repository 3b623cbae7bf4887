package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/AlexZinkM/payme-wallet/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func testSalt(b byte) []byte { return bytes.Repeat([]byte{b}, SaltLen) }

// --- Entropy ---

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(nil, 32)
	require.NoError(t, err)
	b, err := RandomBytes(nil, 32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestRandomBytes_Errors(t *testing.T) {
	_, err := RandomBytes(nil, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = RandomBytes(failingReader{}, 12)
	assert.ErrorIs(t, err, common.ErrFatal)

	_, err = RandomBytes(bytes.NewReader([]byte{1, 2, 3}), 12)
	assert.ErrorIs(t, err, common.ErrFatal, "short read must not be accepted")
}

// --- KDF ---

func TestDeriveKey_Deterministic(t *testing.T) {
	k1, err := DeriveKey([]byte("1234"), testSalt(7))
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("1234"), testSalt(7))
	require.NoError(t, err)

	assert.Len(t, k1, KeyLen)
	assert.Equal(t, k1, k2)
}

func TestDeriveKey_DependsOnPinAndSalt(t *testing.T) {
	base, err := DeriveKey([]byte("1234"), testSalt(1))
	require.NoError(t, err)

	otherPin, err := DeriveKey([]byte("1235"), testSalt(1))
	require.NoError(t, err)
	otherSalt, err := DeriveKey([]byte("1234"), testSalt(2))
	require.NoError(t, err)

	assert.NotEqual(t, base, otherPin)
	assert.NotEqual(t, base, otherSalt)
}

func TestDeriveKey_InvalidInput(t *testing.T) {
	_, err := DeriveKey(nil, testSalt(1))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = DeriveKey([]byte("1234"), make([]byte, 16))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestKDFIterationsFloor(t *testing.T) {
	assert.GreaterOrEqual(t, KDFIterations, 100_000)
}

// --- Cipher ---

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, KeyLen)
	plaintext := []byte("64 bytes of very secret ed25519 private key material go here....")

	ciphertext, iv, err := Encrypt(nil, plaintext, key)
	require.NoError(t, err)
	assert.Len(t, iv, NonceLen)
	assert.Len(t, ciphertext, len(plaintext)+TagLen)

	got, err := Decrypt(ciphertext, key, iv)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_FreshIV(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, KeyLen)
	plaintext := []byte("same plaintext")

	c1, iv1, err := Encrypt(nil, plaintext, key)
	require.NoError(t, err)
	c2, iv2, err := Encrypt(nil, plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_TamperAndWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, KeyLen)
	ciphertext, iv, err := Encrypt(nil, []byte("secret"), key)
	require.NoError(t, err)

	wrongKey := bytes.Repeat([]byte{0x0a}, KeyLen)
	_, err = Decrypt(ciphertext, wrongKey, iv)
	assert.Equal(t, ErrAuthenticationFailed, err)

	for i := range ciphertext {
		tampered := bytes.Clone(ciphertext)
		tampered[i] ^= 0x80
		_, err = Decrypt(tampered, key, iv)
		assert.Equal(t, ErrAuthenticationFailed, err, "ciphertext byte %d", i)
	}

	for i := range iv {
		tampered := bytes.Clone(iv)
		tampered[i] ^= 0x01
		_, err = Decrypt(ciphertext, key, tampered)
		assert.Equal(t, ErrAuthenticationFailed, err, "iv byte %d", i)
	}
}

func TestCipher_InvalidInput(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, KeyLen)

	_, _, err := Encrypt(nil, nil, key)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = Encrypt(nil, []byte("x"), key[:16])
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = Decrypt(make([]byte, 32), key, make([]byte, 8))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = Decrypt(make([]byte, TagLen), key, make([]byte, NonceLen))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestEncrypt_EntropyFailure(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, KeyLen)
	_, _, err := Encrypt(failingReader{}, []byte("secret"), key)
	assert.ErrorIs(t, err, common.ErrFatal)
}

// --- PIN credential ---

func TestHashVerifyPIN(t *testing.T) {
	credential, err := HashPIN(nil, []byte("1234"))
	require.NoError(t, err)
	assert.Len(t, credential, CredentialLen)

	ok, err := VerifyPIN([]byte("1234"), credential)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, other := range []string{"4321", "1235", "0000", "12345", ""} {
		ok, err := VerifyPIN([]byte(other), credential)
		require.NoError(t, err)
		assert.False(t, ok, "pin %q must not verify", other)
	}
}

func TestHashPIN_Salted(t *testing.T) {
	c1, err := HashPIN(nil, []byte("1234"))
	require.NoError(t, err)
	c2, err := HashPIN(nil, []byte("1234"))
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2)
	assert.NotEqual(t, c1[:SaltLen], c2[:SaltLen])
}

func TestHashPIN_Layout(t *testing.T) {
	credential, err := HashPIN(nil, []byte("1234"))
	require.NoError(t, err)

	// salt || PBKDF2(pin, salt)
	key, err := DeriveKey([]byte("1234"), credential[:SaltLen])
	require.NoError(t, err)
	assert.Equal(t, credential[SaltLen:], key)
}

func TestVerifyPIN_MalformedCredential(t *testing.T) {
	_, err := VerifyPIN([]byte("1234"), make([]byte, 40))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = HashPIN(nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = HashPIN(failingReader{}, []byte("1234"))
	assert.ErrorIs(t, err, common.ErrFatal)
}
