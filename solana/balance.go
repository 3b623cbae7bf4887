package solana

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// Balance gets USDC (micro units) and SOL (lamports) balance of userID's wallet.
func (s *Service) Balance(ctx context.Context, userID string) (*model.BalanceResponse, error) {
	rec, err := s.getWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	owner, err := solana.PublicKeyFromBase58(rec.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: stored wallet address is invalid: %v", common.ErrIncorrectPinOrCorruptData, err)
	}

	var usdcMicro, solLamports uint64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usdcMicro, err = s.chain.GetTokenBalance(gctx, owner)
		if err != nil {
			return fmt.Errorf("failed to get USDC balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		solLamports, err = s.chain.GetSOLBalance(gctx, owner)
		if err != nil {
			return fmt.Errorf("failed to get SOL balance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Convert to display strings (no float precision loss)
	return &model.BalanceResponse{
		Address:     rec.WalletAddress,
		USDCMicro:   usdcMicro,
		USDC:        common.MicroToUSDC(usdcMicro),
		SOLLamports: solLamports,
		SOL:         common.LamportsToSOL(solLamports),
	}, nil
}
