// Package solana implements the wallet use cases on top of the vault, the transfer
// executor and a persistence backend: onboarding, PIN management, sending USDC,
// balances and history.
package solana

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/internal/transfer"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"
)

var (
	ErrRateLimited        = errors.New("too many transfers, please wait")
	ErrTransferInProgress = errors.New("another transfer from this wallet is in progress")
)

const (
	DefaultTransfersPerMinute = 10
	DefaultTransferBurst      = 3
)

// ChainClient is the chain access the service needs: the executor's capability plus SOL balances.
type ChainClient interface {
	transfer.ChainClient
	GetSOLBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
}

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	Entropy  io.Reader
	Mint     solana.PublicKey
	Decimals uint8

	TransferTimeout   time.Duration
	ConfirmTimeout    time.Duration
	AwaitConfirmation bool

	TransfersPerMinute int
	TransferBurst      int

	Now func() time.Time
}

// Service is the application layer shared by the HTTP handlers and the CLI.
type Service struct {
	store    backend.Backend
	chain    ChainClient
	vault    *wallet.Vault
	executor *transfer.Executor
	now      func() time.Time

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	inflight map[string]*sync.Mutex
}

// NewService wires a Service.
func NewService(store backend.Backend, chain ChainClient, opts Options) *Service {
	if opts.Decimals == 0 {
		opts.Decimals = common.USDCDecimals
	}
	if opts.TransfersPerMinute <= 0 {
		opts.TransfersPerMinute = DefaultTransfersPerMinute
	}
	if opts.TransferBurst <= 0 {
		opts.TransferBurst = DefaultTransferBurst
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store: store,
		chain: chain,
		vault: wallet.NewVault(opts.Entropy),
		executor: transfer.NewExecutor(chain, transfer.Config{
			Mint:              opts.Mint,
			Decimals:          opts.Decimals,
			Timeout:           opts.TransferTimeout,
			AwaitConfirmation: opts.AwaitConfirmation,
			ConfirmTimeout:    opts.ConfirmTimeout,
		}),
		now:      opts.Now,
		limit:    rate.Every(time.Minute / time.Duration(opts.TransfersPerMinute)),
		burst:    opts.TransferBurst,
		limiters: make(map[string]*rate.Limiter),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Vault exposes the vault used by the service, for offline tooling.
func (s *Service) Vault() *wallet.Vault {
	return s.vault
}

func (s *Service) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[userID] = l
	}
	return l
}

// lockWallet takes the in-flight slot of userID without waiting.
func (s *Service) lockWallet(userID string) (unlock func(), ok bool) {
	s.mu.Lock()
	m, exists := s.inflight[userID]
	if !exists {
		m = &sync.Mutex{}
		s.inflight[userID] = m
	}
	s.mu.Unlock()

	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}

func (s *Service) getWallet(ctx context.Context, userID string) (*model.WalletRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty user id", common.ErrInvalidInput)
	}
	rec, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return rec, nil
}
