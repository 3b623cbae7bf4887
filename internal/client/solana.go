package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/transfer"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	log "github.com/sirupsen/logrus"
)

const (
	USDCMintMainnet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" // USDC mint address on Solana mainnet (does not work on devnet/testnet)

	defaultPollInterval = 500 * time.Millisecond

	methodNotFoundCode = -32601
)

// SolanaClient talks to a Solana RPC node for one token mint.
// It implements transfer.ChainClient and classifies node failures into the common error kinds.
type SolanaClient struct {
	rpcClient    *rpc.Client
	rpcURL       string
	mint         solana.PublicKey
	commitment   rpc.CommitmentType
	pollInterval time.Duration
}

var _ transfer.ChainClient = (*SolanaClient)(nil)

// NewSolanaClient creates a client for the node at rpcURL and the given token mint.
// An empty commitment means "confirmed".
func NewSolanaClient(rpcURL, mint, commitment string) (*SolanaClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("%w: empty RPC URL", common.ErrInvalidInput)
	}

	mintPubKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	c := rpc.CommitmentType(commitment)
	switch c {
	case "":
		c = rpc.CommitmentConfirmed
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return nil, fmt.Errorf("%w: unknown commitment %q", common.ErrInvalidInput, commitment)
	}

	return &SolanaClient{
		rpcClient:    rpc.New(rpcURL),
		rpcURL:       rpcURL,
		mint:         mintPubKey,
		commitment:   c,
		pollInterval: defaultPollInterval,
	}, nil
}

// Mint returns the token mint this client works with.
func (c *SolanaClient) Mint() solana.PublicKey {
	return c.mint
}

// GetTokenAccount resolves the associated token account of owner and checks that it exists.
func (c *SolanaClient) GetTokenAccount(ctx context.Context, owner solana.PublicKey) (*transfer.TokenAccount, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find associated token account address: %v", common.ErrInvalidRecipient, err)
	}

	info, err := c.rpcClient.GetAccountInfoWithOpts(ctx, ata, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if err != nil {
		if isAccountNotFoundError(err) {
			return &transfer.TokenAccount{Address: ata, Exists: false}, nil
		}
		return nil, classifyReadError("failed to get token account", err)
	}

	return &transfer.TokenAccount{Address: ata, Exists: info != nil && info.Value != nil}, nil
}

// GetLatestBlockhash returns a fresh blockhash for signing.
func (c *SolanaClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, classifyReadError("failed to get latest blockhash", err)
	}
	if recent == nil || recent.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: empty blockhash response", common.ErrNetwork)
	}
	return recent.Value.Blockhash, nil
}

// SubmitSignedTransaction sends a serialized signed transaction with preflight enabled.
func (c *SolanaClient) SubmitSignedTransaction(ctx context.Context, raw []byte) (solana.Signature, error) {
	sig, err := c.rpcClient.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       false, // Transaction validation before node
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, classifySubmitError(err)
	}
	return sig, nil
}

// GetTokenBalance returns owner's token balance in minor units. A missing token account is 0.
func (c *SolanaClient) GetTokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to find associated token account address: %v", common.ErrInvalidInput, err)
	}

	balance, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, c.commitment)
	if err != nil {
		if isAccountNotFoundError(err) {
			return 0, nil
		}
		return 0, classifyReadError("failed to get token account balance", err)
	}

	if balance == nil || balance.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to parse token balance amount: %v", common.ErrNetwork, err)
	}
	return amount, nil
}

// GetSOLBalance returns owner's SOL balance in lamports.
func (c *SolanaClient) GetSOLBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	balance, err := c.rpcClient.GetBalance(ctx, owner, c.commitment)
	if err != nil {
		return 0, classifyReadError("failed to get SOL balance", err)
	}
	return balance.Value, nil
}

// ConfirmTransaction polls the signature status until it reaches the client's commitment.
// A transaction that landed with an error is common.ErrSubmissionRejected.
func (c *SolanaClient) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpcClient.GetSignatureStatuses(ctx, false, sig)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).WithField("signature", sig.String()).Debug("signature status poll failed")
		}
		if err == nil && statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", common.ErrSubmissionRejected, status.Err)
			}
			if c.reached(status.ConfirmationStatus) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for confirmation: %v", common.ErrNetwork, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *SolanaClient) reached(status rpc.ConfirmationStatusType) bool {
	switch c.commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// isAccountNotFoundError checks if error indicates that an account doesn't exist.
// Other "not found" replies such as JSON-RPC "Method not found" are node failures.
func isAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code == methodNotFoundCode {
		return false
	}
	return strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
}

// insufficientFundsMarkers are node messages for a sender that cannot cover the transfer or fee.
var insufficientFundsMarkers = []string{
	"insufficient funds",
	"insufficient lamports",
	"custom program error: 0x1",
	"no record of a prior credit",
}

func classifySubmitError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("failed to send transaction: %w: %v", common.ErrNetwork, err)
	}

	msg := strings.ToLower(rpcErr.Message)
	if data := fmt.Sprint(rpcErr.Data); data != "<nil>" {
		msg += " " + strings.ToLower(data)
	}
	for _, marker := range insufficientFundsMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s", common.ErrInsufficientFunds, rpcErr.Message)
		}
	}
	return fmt.Errorf("%w: %s", common.ErrSubmissionRejected, rpcErr.Message)
}

func classifyReadError(msg string, err error) error {
	return fmt.Errorf("%s: %w: %v", msg, common.ErrNetwork, err)
}
