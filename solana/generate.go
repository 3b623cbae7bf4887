package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"

	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// Onboard creates a wallet for userID protected by pin and stores its vault.
// Returns the public address and a base64 PNG QR code of it.
// pin must be []byte for security (caller should zero it after use)
func (s *Service) Onboard(ctx context.Context, userID, username string, pin []byte) (*model.GenerateResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrInvalidInput)
	}
	if err := common.ValidatePin(pin); err != nil {
		return nil, err
	}

	// Fail fast before spending KDF time on a user that already has a wallet
	if _, err := s.store.GetWallet(ctx, userID); err == nil {
		return nil, backend.ErrWalletExists
	} else if !errors.Is(err, backend.ErrWalletNotFound) {
		return nil, fmt.Errorf("failed to check existing wallet: %w", err)
	}

	identity, err := s.vault.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	defer identity.Destroy()

	encrypted, credential, err := s.vault.CreateVault(identity.PrivateKey, pin)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt wallet: %w", err)
	}

	now := s.now().UTC()
	rec := model.WalletRecord{
		UserID:        userID,
		Username:      username,
		WalletAddress: identity.Address(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	wallet.ToRecord(&rec, encrypted, credential)

	if err := s.store.CreateWallet(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	qrCode, err := generateQRCode(rec.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	log.WithFields(log.Fields{"user_id": userID, "address": rec.WalletAddress}).Info("wallet created")

	return &model.GenerateResponse{
		Success: true,
		Message: "wallet created",
		Address: rec.WalletAddress,
		QR:      qrCode,
	}, nil
}

// QRCode returns the receive QR code of userID's address as PNG bytes.
func (s *Service) QRCode(ctx context.Context, userID string) ([]byte, error) {
	rec, err := s.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(rec.WalletAddress, qrcode.Medium, qrSize)
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	png, err := qrcode.Encode(address, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
