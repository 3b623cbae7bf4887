package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/internal/transfer"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	currencyUSDC = "USDC"

	// handlePrefix marks a recipient given as another user's id instead of an address.
	handlePrefix = "@"
)

// SendRequest is one USDC transfer from UserID's wallet.
// PIN must be []byte for security (caller should zero it after use)
type SendRequest struct {
	UserID           string
	Recipient        string
	AmountMinorUnits int64
	Memo             string
	PIN              []byte
}

// SendResult is the outcome of Send.
type SendResult struct {
	Signature        string
	State            transfer.State
	RecipientAddress string
}

// Send opens the sender's vault for the duration of one transfer and submits it.
//
// At most one transfer per wallet is in flight; a concurrent call fails with
// ErrTransferInProgress. A failure to record the ledger entry after a successful
// submission is logged and does not fail the send.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.AmountMinorUnits <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", common.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, fmt.Errorf("%w: empty recipient", common.ErrInvalidRecipient)
	}
	memo := common.SanitizeMemo(req.Memo)

	rec, err := s.getWallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !s.limiter(req.UserID).Allow() {
		return nil, ErrRateLimited
	}

	unlock, ok := s.lockWallet(req.UserID)
	if !ok {
		return nil, ErrTransferInProgress
	}
	defer unlock()

	recipientAddress, recipientUserID, err := s.resolveRecipient(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}

	encrypted, credential, err := wallet.FromRecord(rec)
	if err != nil {
		return nil, err
	}

	var result *transfer.Result
	err = s.vault.WithOpenVault(encrypted, credential, req.PIN, func(identity *wallet.Identity) error {
		var err error
		result, err = s.executor.Transfer(ctx, identity, recipientAddress, req.AmountMinorUnits)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordTransfer(ctx, rec, recipientAddress, recipientUserID, req.AmountMinorUnits, memo, result)

	return &SendResult{
		Signature:        result.Signature.String(),
		State:            result.State,
		RecipientAddress: recipientAddress,
	}, nil
}

// resolveRecipient turns "@userID" into that user's address. Plain addresses are returned
// as-is together with the owning user id when the address belongs to a known wallet.
func (s *Service) resolveRecipient(ctx context.Context, recipient string) (address, userID string, err error) {
	recipient = strings.TrimSpace(recipient)

	if handle, ok := strings.CutPrefix(recipient, handlePrefix); ok {
		rec, err := s.store.GetWallet(ctx, handle)
		if err != nil {
			if errors.Is(err, backend.ErrWalletNotFound) {
				return "", "", fmt.Errorf("%w: unknown user %q", common.ErrInvalidRecipient, handle)
			}
			return "", "", fmt.Errorf("failed to resolve recipient: %w", err)
		}
		return rec.WalletAddress, rec.UserID, nil
	}

	rec, err := s.store.FindWalletByAddress(ctx, recipient)
	if err != nil {
		if !errors.Is(err, backend.ErrWalletNotFound) {
			log.WithError(err).Warn("failed to look up recipient wallet")
		}
		return recipient, "", nil
	}
	return recipient, rec.UserID, nil
}

// recordTransfer mirrors a submitted transfer into the ledger of both parties.
// The chain is the source of truth, so failures are only logged.
func (s *Service) recordTransfer(ctx context.Context, sender *model.WalletRecord, recipientAddress, recipientUserID string, amount int64, memo string, result *transfer.Result) {
	status := model.TransactionStatusSubmitted
	if result.State == transfer.StateConfirmed {
		status = model.TransactionStatusConfirmed
	}

	logger := log.WithFields(log.Fields{"user_id": sender.UserID, "signature": result.Signature.String()})

	amountMinorUnits, err := safecast.ToUint64(amount)
	if err != nil {
		logger.WithError(err).Error("transfer amount cannot be recorded in the ledger")
		return
	}

	entry := model.LedgerEntry{
		UserID:             sender.UserID,
		Type:               model.TransactionTypeSend,
		Signature:          result.Signature.String(),
		From:               sender.WalletAddress,
		To:                 recipientAddress,
		CounterpartyUserID: recipientUserID,
		AmountMinorUnits:   amountMinorUnits,
		Currency:           currencyUSDC,
		Memo:               memo,
		Status:             status,
		CreatedAt:          s.now().UTC(),
	}

	entry.ID = uuid.NewString()
	if err := s.store.AddTransaction(ctx, entry); err != nil {
		logger.WithError(err).Error("transaction succeeded on chain but failed to record it")
	}

	if recipientUserID == "" {
		return
	}
	entry.ID = uuid.NewString()
	entry.UserID = recipientUserID
	entry.Type = model.TransactionTypeReceive
	entry.CounterpartyUserID = sender.UserID
	if err := s.store.AddTransaction(ctx, entry); err != nil {
		logger.WithError(err).Error("transaction succeeded on chain but failed to record it for the recipient")
	}
}
