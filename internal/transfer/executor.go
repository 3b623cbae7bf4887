// Package transfer builds, signs and submits USDC transfers for an open wallet identity.
//
// An Executor makes exactly one attempt per call and never retries: a stale but validly
// signed transaction could land twice. Retry policy belongs to the caller.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"

	"github.com/ccoveille/go-safecast"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
)

// Config controls an Executor.
type Config struct {
	Mint     solana.PublicKey
	Decimals uint8

	// Timeout bounds everything up to and including submission.
	Timeout time.Duration

	// AwaitConfirmation waits up to ConfirmTimeout for the confirmed commitment after
	// submission. Without it a transfer ends in StateSubmitted.
	AwaitConfirmation bool
	ConfirmTimeout    time.Duration
}

// Result is the single outcome of a transfer attempt.
type Result struct {
	Signature           solana.Signature
	State               State
	CreatedTokenAccount bool
}

// Executor turns an open identity, a recipient and an amount into one submitted transaction.
// It holds no per-transfer state and is safe for concurrent use.
type Executor struct {
	chain ChainClient
	cfg   Config
}

// NewExecutor returns an Executor for cfg.Mint. Zero timeouts fall back to the defaults.
func NewExecutor(chain ChainClient, cfg Config) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Executor{chain: chain, cfg: cfg}
}

// Transfer sends amountMinorUnits of the configured mint from sender to recipient.
//
// Argument errors (non-positive amount, bad or self recipient) are returned before the
// chain client is contacted. Once submitted, a transaction is never reported as an
// error unless the chain rejected it: a confirmation timeout yields StateSubmitted.
func (e *Executor) Transfer(ctx context.Context, sender *wallet.Identity, recipient string, amountMinorUnits int64) (*Result, error) {
	if amountMinorUnits <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number of minor units, got %d", common.ErrInvalidInput, amountMinorUnits)
	}
	amount, err := safecast.ToUint64(amountMinorUnits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if sender == nil || len(sender.PrivateKey) != wallet.PrivateKeyLen {
		return nil, fmt.Errorf("%w: sender identity is not open", common.ErrInvalidInput)
	}

	recipientKey, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRecipient, err)
	}
	if recipientKey.Equals(sender.PublicKey) {
		return nil, fmt.Errorf("%w: cannot send to your own wallet", common.ErrInvalidRecipient)
	}

	a := &attempt{
		log: log.WithFields(log.Fields{
			"from":   sender.Address(),
			"to":     recipientKey.String(),
			"amount": amount,
		}),
	}

	result, err := e.run(ctx, a, sender, recipientKey, amount)
	if err != nil {
		a.moveTo(StateFailed)
		a.log.WithError(err).Warn("transfer failed")
		return result, err
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, a *attempt, sender *wallet.Identity, recipient solana.PublicKey, amount uint64) (*Result, error) {
	submitCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	a.moveTo(StateBuilding)

	source, err := e.chain.GetTokenAccount(submitCtx, sender.PublicKey)
	if err != nil {
		return nil, classify("failed to resolve sender token account", err)
	}
	if !source.Exists {
		return nil, fmt.Errorf("%w: sender has no token account for this mint", common.ErrInsufficientFunds)
	}

	balance, err := e.chain.GetTokenBalance(submitCtx, sender.PublicKey)
	if err != nil {
		return nil, classify("failed to get sender balance", err)
	}
	if balance < amount {
		return nil, fmt.Errorf("%w: balance %d is below amount %d", common.ErrInsufficientFunds, balance, amount)
	}

	destination, err := e.chain.GetTokenAccount(submitCtx, recipient)
	if err != nil {
		return nil, classify("failed to resolve recipient token account", err)
	}

	instructions := make([]solana.Instruction, 0, 2)
	if !destination.Exists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			sender.PublicKey, // payer
			recipient,        // owner
			e.cfg.Mint,
		).Build())
	}
	instructions = append(instructions, token.NewTransferCheckedInstruction(
		amount,
		e.cfg.Decimals,
		source.Address,
		e.cfg.Mint,
		destination.Address,
		sender.PublicKey,
		[]solana.PublicKey{},
	).Build())

	blockhash, err := e.chain.GetLatestBlockhash(submitCtx)
	if err != nil {
		return nil, classify("failed to get latest blockhash", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(sender.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build transaction: %v", common.ErrInvalidInput, err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(sender.PublicKey) {
			return &sender.PrivateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign transaction: %v", common.ErrFatal, err)
	}
	a.moveTo(StateSigned)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to serialize transaction: %v", common.ErrFatal, err)
	}

	sig, err := e.chain.SubmitSignedTransaction(submitCtx, raw)
	if err != nil {
		return nil, classify("failed to submit transaction", err)
	}
	a.moveTo(StateSubmitted)
	a.log = a.log.WithField("signature", sig.String())

	result := &Result{
		Signature:           sig,
		State:               StateSubmitted,
		CreatedTokenAccount: !destination.Exists,
	}

	if !e.cfg.AwaitConfirmation {
		a.log.Info("transfer submitted")
		return result, nil
	}

	confirmCtx, cancelConfirm := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancelConfirm()

	if err := e.chain.ConfirmTransaction(confirmCtx, sig); err != nil {
		if errors.Is(err, common.ErrSubmissionRejected) {
			result.State = StateFailed
			return result, fmt.Errorf("transaction %s failed on chain: %w", sig, err)
		}
		a.log.WithError(err).Warn("transfer submitted but not confirmed in time")
		return result, nil
	}

	a.moveTo(StateConfirmed)
	result.State = StateConfirmed
	a.log.Info("transfer confirmed")
	return result, nil
}

// attempt tracks the state of one Transfer call.
type attempt struct {
	state State
	log   *log.Entry
}

func (a *attempt) moveTo(next State) {
	if !CanTransition(a.state, next) {
		a.log.Errorf("illegal transfer state change %s -> %s", a.state, next)
		return
	}
	a.log.Debugf("transfer %s -> %s", a.state, next)
	a.state = next
}

// classify keeps the chain client's error kind and treats anything unclassified as a
// network failure.
func classify(msg string, err error) error {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds),
		errors.Is(err, common.ErrSubmissionRejected),
		errors.Is(err, common.ErrInvalidRecipient),
		errors.Is(err, common.ErrNetwork):
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return fmt.Errorf("%s: %w: %v", msg, common.ErrNetwork, err)
	}
}
