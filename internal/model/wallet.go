package model

import "time"

// WalletRecord is the per-user persisted wallet.
// Binary fields are base64 (standard encoding). No field holds a plaintext key or PIN.
type WalletRecord struct {
	UserID              string    `json:"user_id"`
	Username            string    `json:"username,omitempty"`
	WalletAddress       string    `json:"wallet_address" badgerhold:"index"`
	EncryptedPrivateKey string    `json:"encrypted_private_key"`
	EncryptionIV        string    `json:"encryption_iv"`
	EncryptionSalt      string    `json:"encryption_salt"`
	PinHash             string    `json:"pin_hash"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
