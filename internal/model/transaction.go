package model

import (
	"fmt"
	"time"
)

// TransactionType is the direction of a ledger entry from its owner's point of view.
type TransactionType string

const (
	TransactionTypeSend    TransactionType = "SEND"
	TransactionTypeReceive TransactionType = "RECEIVE"
)

// TransactionStatus mirrors the transfer outcome at the time the entry was written.
type TransactionStatus string

const (
	TransactionStatusSubmitted TransactionStatus = "submitted"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
)

// LedgerEntry is a mirror of an on-chain transfer kept by the backend.
// The chain is the source of truth; the ledger may lag behind it.
type LedgerEntry struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id" badgerhold:"index"`
	Type               TransactionType   `json:"type"`
	Signature          string            `json:"signature"`
	From               string            `json:"from"`
	To                 string            `json:"to"`
	CounterpartyUserID string            `json:"counterparty_user_id,omitempty"`
	AmountMinorUnits   uint64            `json:"amount_minor_units"`
	Currency           string            `json:"currency"`
	Memo               string            `json:"memo,omitempty"`
	Status             TransactionStatus `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Transaction is the API representation of a ledger entry
type Transaction struct {
	ID               string            `json:"id"`
	Type             TransactionType   `json:"type"`
	Signature        string            `json:"signature"`
	From             string            `json:"from"`
	To               string            `json:"to"`
	Counterparty     string            `json:"counterparty,omitempty"`
	AmountMinorUnits uint64            `json:"amountMinorUnits"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency"`
	Memo             string            `json:"memo,omitempty"`
	Status           TransactionStatus `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
}

// TransactionsResponse represents response for GET /wallets/{id}/transactions
type TransactionsResponse struct {
	Address      string        `json:"address"`
	Transactions []Transaction `json:"transactions"`
}

// TransactionsRequest represents query parameters for GET /wallets/{id}/transactions
type TransactionsRequest struct {
	Limit int              `form:"limit"`
	Type  *TransactionType `form:"type"`
}

// Validate validates TransactionsRequest parameters.
func (r *TransactionsRequest) Validate() error {
	if r.Limit < 0 || r.Limit > 500 {
		return fmt.Errorf("limit must be between 0 and 500")
	}
	if r.Type != nil && *r.Type != TransactionTypeSend && *r.Type != TransactionTypeReceive {
		return fmt.Errorf("type must be SEND or RECEIVE")
	}
	return nil
}
