package solana

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"
)

// Transactions gets the ledger of userID, newest first, with optional type filtering.
// Entries of a deleted wallet stay readable.
func (s *Service) Transactions(ctx context.Context, userID string, req *model.TransactionsRequest) (*model.TransactionsResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrInvalidInput)
	}
	if req == nil {
		req = &model.TransactionsRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	limit := req.Limit
	if limit == 0 {
		limit = backend.DefaultListLimit
	}

	var address string
	if rec, err := s.getWallet(ctx, userID); err == nil {
		address = rec.WalletAddress
	}

	var txType model.TransactionType
	if req.Type != nil {
		txType = *req.Type
	}

	entries, err := s.store.ListTransactions(ctx, userID, txType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	// Convert to model format
	result := make([]model.Transaction, 0, len(entries))
	for _, e := range entries {
		result = append(result, toTransaction(e))
	}

	return &model.TransactionsResponse{
		Address:      address,
		Transactions: result,
	}, nil
}

func toTransaction(e model.LedgerEntry) model.Transaction {
	return model.Transaction{
		ID:               e.ID,
		Type:             e.Type,
		Signature:        e.Signature,
		From:             e.From,
		To:               e.To,
		Counterparty:     e.CounterpartyUserID,
		AmountMinorUnits: e.AmountMinorUnits,
		Amount:           common.MicroToUSDC(e.AmountMinorUnits),
		Currency:         e.Currency,
		Memo:             e.Memo,
		Status:           e.Status,
		Timestamp:        e.CreatedAt,
	}
}
