package solana

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"

	log "github.com/sirupsen/logrus"
)

// VerifyPin checks pin against the stored credential of userID without opening the vault.
func (s *Service) VerifyPin(ctx context.Context, userID string, pin []byte) (bool, error) {
	rec, err := s.getWallet(ctx, userID)
	if err != nil {
		return false, err
	}
	_, credential, err := wallet.FromRecord(rec)
	if err != nil {
		return false, err
	}

	ok, err := s.vault.VerifyPin(credential, pin)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("stored pin credential is malformed")
		return false, common.ErrIncorrectPinOrCorruptData
	}
	return ok, nil
}

// ChangePin re-encrypts userID's vault under newPin. The stored record is replaced only
// if it still carries the credential that oldPin was checked against.
func (s *Service) ChangePin(ctx context.Context, userID string, oldPin, newPin []byte) error {
	rec, err := s.getWallet(ctx, userID)
	if err != nil {
		return err
	}
	encrypted, credential, err := wallet.FromRecord(rec)
	if err != nil {
		return err
	}

	nextVault, nextCredential, err := s.vault.ChangePin(encrypted, credential, oldPin, newPin)
	if err != nil {
		return err
	}

	next := *rec
	next.UpdatedAt = s.now().UTC()
	wallet.ToRecord(&next, nextVault, nextCredential)

	if err := s.store.ReplaceWallet(ctx, userID, rec.PinHash, next); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	log.WithField("user_id", userID).Info("transaction PIN changed")
	return nil
}

// DeleteWallet removes userID's wallet after checking pin. Ledger entries are kept.
func (s *Service) DeleteWallet(ctx context.Context, userID string, pin []byte) error {
	ok, err := s.VerifyPin(ctx, userID, pin)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrIncorrectPinOrCorruptData
	}

	if err := s.store.DeleteWallet(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete wallet: %w", err)
	}

	log.WithField("user_id", userID).Info("wallet deleted")
	return nil
}
