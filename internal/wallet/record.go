package wallet

import (
	"encoding/base64"
	"fmt"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"

	log "github.com/sirupsen/logrus"
)

// ToRecord stores vault and credential on rec as base64 strings.
func ToRecord(rec *model.WalletRecord, vault *EncryptedVault, credential *PinCredential) {
	rec.EncryptedPrivateKey = base64.StdEncoding.EncodeToString(vault.Ciphertext)
	rec.EncryptionIV = base64.StdEncoding.EncodeToString(vault.IV)
	rec.EncryptionSalt = base64.StdEncoding.EncodeToString(vault.Salt)
	rec.PinHash = base64.StdEncoding.EncodeToString(credential.Hash)
}

// FromRecord decodes the vault and credential stored on rec.
// Undecodable fields are reported as the bare common.ErrIncorrectPinOrCorruptData,
// the same value a wrong PIN produces. Only the debug log names the field.
func FromRecord(rec *model.WalletRecord) (*EncryptedVault, *PinCredential, error) {
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: wallet record is required", common.ErrInvalidInput)
	}

	ciphertext, err := decodeField("encrypted_private_key", rec.EncryptedPrivateKey)
	if err != nil {
		return nil, nil, err
	}
	iv, err := decodeField("encryption_iv", rec.EncryptionIV)
	if err != nil {
		return nil, nil, err
	}
	salt, err := decodeField("encryption_salt", rec.EncryptionSalt)
	if err != nil {
		return nil, nil, err
	}
	hash, err := decodeField("pin_hash", rec.PinHash)
	if err != nil {
		return nil, nil, err
	}

	return &EncryptedVault{Ciphertext: ciphertext, IV: iv, Salt: salt}, &PinCredential{Hash: hash}, nil
}

func decodeField(name, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(b) == 0 {
		log.WithField("field", name).Debug("wallet record field is not valid base64")
		return nil, common.ErrIncorrectPinOrCorruptData
	}
	return b, nil
}
