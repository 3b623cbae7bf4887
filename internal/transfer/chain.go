package transfer

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// TokenAccount is the associated token account of an owner for the executor's mint.
type TokenAccount struct {
	Address solana.PublicKey
	Exists  bool
}

// ChainClient is everything the executor needs from the chain.
// Implementations classify their failures with the common error kinds
// (ErrInsufficientFunds, ErrSubmissionRejected, ErrNetwork); anything else is
// treated as a network error.
type ChainClient interface {
	GetTokenAccount(ctx context.Context, owner solana.PublicKey) (*TokenAccount, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SubmitSignedTransaction(ctx context.Context, raw []byte) (solana.Signature, error)
	GetTokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	// ConfirmTransaction blocks until sig reaches the client's commitment, the chain
	// reports it failed (ErrSubmissionRejected) or ctx is done.
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}
