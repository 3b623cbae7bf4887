package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/config"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/internal/wallet"
	"github.com/AlexZinkM/payme-wallet/solana"

	"github.com/ccoveille/go-safecast"
	"github.com/urfave/cli/v2"
)

var (
	verboseFlag = &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "enable debug logs",
		Value:       false,
		DefaultText: "false",
	}
	userFlag = &cli.StringFlag{
		Name:     "user",
		Usage:    "id of the wallet owner",
		Required: true,
	}
	usernameFlag = &cli.StringFlag{
		Name:  "username",
		Usage: "display name stored with the wallet",
	}
	pinFlag = &cli.StringFlag{
		Name:  "pin",
		Usage: "transaction PIN (prompted when omitted)",
	}
	newPinFlag = &cli.StringFlag{
		Name:  "new-pin",
		Usage: "new transaction PIN (prompted when omitted)",
	}
	toFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "recipient address or @userID",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "amount to send in USDC, e.g. 12.50",
		Required: true,
	}
	memoFlag = &cli.StringFlag{
		Name:  "memo",
		Usage: "note stored with the transaction",
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of transactions",
		Value: 20,
	}
	typeFlag = &cli.StringFlag{
		Name:  "type",
		Usage: "only SEND or RECEIVE transactions",
	}
	inFlag = &cli.StringFlag{
		Name:  "in",
		Usage: "wallet record JSON file (stdin when omitted)",
	}
)

var (
	keygenCommand = cli.Command{
		Name:  "keygen",
		Usage: "Create an encrypted wallet offline and print its record",
		Action: func(ctx *cli.Context) error {
			return keygen(ctx)
		},
		Flags: []cli.Flag{userFlag, usernameFlag, pinFlag},
	}
	rekeyCommand = cli.Command{
		Name:  "rekey",
		Usage: "Re-encrypt a wallet record under a new PIN offline",
		Action: func(ctx *cli.Context) error {
			return rekey(ctx)
		},
		Flags: []cli.Flag{inFlag, pinFlag, newPinFlag},
	}
	onboardCommand = cli.Command{
		Name:  "onboard",
		Usage: "Create a wallet for a user in the configured backend",
		Action: func(ctx *cli.Context) error {
			return onboard(ctx)
		},
		Flags: []cli.Flag{userFlag, usernameFlag, pinFlag},
	}
	verifyPinCommand = cli.Command{
		Name:  "verify-pin",
		Usage: "Check a user's transaction PIN",
		Action: func(ctx *cli.Context) error {
			return verifyPin(ctx)
		},
		Flags: []cli.Flag{userFlag, pinFlag},
	}
	changePinCommand = cli.Command{
		Name:  "change-pin",
		Usage: "Change a user's transaction PIN",
		Action: func(ctx *cli.Context) error {
			return changePin(ctx)
		},
		Flags: []cli.Flag{userFlag, pinFlag, newPinFlag},
	}
	balanceCommand = cli.Command{
		Name:  "balance",
		Usage: "Show USDC and SOL balance",
		Action: func(ctx *cli.Context) error {
			return balance(ctx)
		},
		Flags: []cli.Flag{userFlag},
	}
	sendCommand = cli.Command{
		Name:  "send",
		Usage: "Send USDC",
		Action: func(ctx *cli.Context) error {
			return send(ctx)
		},
		Flags: []cli.Flag{userFlag, toFlag, amountFlag, memoFlag, pinFlag},
	}
	historyCommand = cli.Command{
		Name:  "history",
		Usage: "List transactions, newest first",
		Action: func(ctx *cli.Context) error {
			return history(ctx)
		},
		Flags: []cli.Flag{userFlag, limitFlag, typeFlag},
	}
	deleteCommand = cli.Command{
		Name:  "delete",
		Usage: "Delete a user's wallet",
		Action: func(ctx *cli.Context) error {
			return deleteWallet(ctx)
		},
		Flags: []cli.Flag{userFlag, pinFlag},
	}
)

func keygen(ctx *cli.Context) error {
	pin, err := readPIN(ctx, pinFlag.Name, "choose a 4 digit transaction PIN: ")
	if err != nil {
		return err
	}
	defer clear(pin)

	vault := wallet.NewVault(nil)
	identity, err := vault.GenerateKeypair()
	if err != nil {
		return err
	}
	defer identity.Destroy()

	encrypted, credential, err := vault.CreateVault(identity.PrivateKey, pin)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec := model.WalletRecord{
		UserID:        ctx.String(userFlag.Name),
		Username:      ctx.String(usernameFlag.Name),
		WalletAddress: identity.Address(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	wallet.ToRecord(&rec, encrypted, credential)
	return printJSON(rec)
}

func rekey(ctx *cli.Context) error {
	rec, err := readRecord(ctx.String(inFlag.Name))
	if err != nil {
		return err
	}
	encrypted, credential, err := wallet.FromRecord(rec)
	if err != nil {
		return err
	}

	oldPin, err := readPIN(ctx, pinFlag.Name, "current PIN: ")
	if err != nil {
		return err
	}
	defer clear(oldPin)
	newPin, err := readPIN(ctx, newPinFlag.Name, "new PIN: ")
	if err != nil {
		return err
	}
	defer clear(newPin)

	nextVault, nextCredential, err := wallet.NewVault(nil).ChangePin(encrypted, credential, oldPin, newPin)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now().UTC()
	wallet.ToRecord(rec, nextVault, nextCredential)
	return printJSON(rec)
}

func onboard(ctx *cli.Context) error {
	return withService(func(service *solana.Service) error {
		pin, err := readPIN(ctx, pinFlag.Name, "choose a 4 digit transaction PIN: ")
		if err != nil {
			return err
		}
		defer clear(pin)

		resp, err := service.Onboard(ctx.Context, ctx.String(userFlag.Name), ctx.String(usernameFlag.Name), pin)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"address": resp.Address})
	})
}

func verifyPin(ctx *cli.Context) error {
	return withService(func(service *solana.Service) error {
		pin, err := readPIN(ctx, pinFlag.Name, "transaction PIN: ")
		if err != nil {
			return err
		}
		defer clear(pin)

		ok, err := service.VerifyPin(ctx.Context, ctx.String(userFlag.Name), pin)
		if err != nil {
			return err
		}
		return printJSON(model.VerifyPinResponse{Valid: ok})
	})
}

func changePin(ctx *cli.Context) error {
	return withService(func(service *solana.Service) error {
		oldPin, err := readPIN(ctx, pinFlag.Name, "current PIN: ")
		if err != nil {
			return err
		}
		defer clear(oldPin)
		newPin, err := readPIN(ctx, newPinFlag.Name, "new PIN: ")
		if err != nil {
			return err
		}
		defer clear(newPin)

		if err := service.ChangePin(ctx.Context, ctx.String(userFlag.Name), oldPin, newPin); err != nil {
			return err
		}
		return printJSON(map[string]bool{"changed": true})
	})
}

func balance(ctx *cli.Context) error {
	return withService(func(service *solana.Service) error {
		bal, err := service.Balance(ctx.Context, ctx.String(userFlag.Name))
		if err != nil {
			return err
		}
		return printJSON(bal)
	})
}

func send(ctx *cli.Context) error {
	micro, err := common.USDCToMicro(ctx.String(amountFlag.Name))
	if err != nil {
		return err
	}
	amount, err := safecast.ToInt64(micro)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	return withService(func(service *solana.Service) error {
		pin, err := readPIN(ctx, pinFlag.Name, "transaction PIN: ")
		if err != nil {
			return err
		}
		defer clear(pin)

		res, err := service.Send(ctx.Context, solana.SendRequest{
			UserID:           ctx.String(userFlag.Name),
			Recipient:        ctx.String(toFlag.Name),
			AmountMinorUnits: amount,
			Memo:             ctx.String(memoFlag.Name),
			PIN:              pin,
		})
		if err != nil {
			return err
		}
		return printJSON(model.PayResponse{TxID: res.Signature, Status: res.State.String()})
	})
}

func history(ctx *cli.Context) error {
	req := &model.TransactionsRequest{Limit: ctx.Int(limitFlag.Name)}
	if t := ctx.String(typeFlag.Name); t != "" {
		txType := model.TransactionType(t)
		req.Type = &txType
	}

	return withService(func(service *solana.Service) error {
		resp, err := service.Transactions(ctx.Context, ctx.String(userFlag.Name), req)
		if err != nil {
			return err
		}
		return printJSON(resp)
	})
}

func deleteWallet(ctx *cli.Context) error {
	return withService(func(service *solana.Service) error {
		pin, err := readPIN(ctx, pinFlag.Name, "transaction PIN: ")
		if err != nil {
			return err
		}
		defer clear(pin)

		if err := service.DeleteWallet(ctx.Context, ctx.String(userFlag.Name), pin); err != nil {
			return err
		}
		return printJSON(map[string]bool{"deleted": true})
	})
}

func withService(fn func(*solana.Service) error) error {
	service, closeStore, err := newService()
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(service)
}

// readPIN takes the PIN from flag or prompts for it on the terminal.
// Caller must zero the returned slice after use.
func readPIN(ctx *cli.Context, flag, prompt string) ([]byte, error) {
	if v := ctx.String(flag); v != "" {
		pin := []byte(v)
		if err := common.ValidatePin(pin); err != nil {
			return nil, err
		}
		return pin, nil
	}
	return config.PromptForPIN(prompt)
}

func readRecord(path string) (*model.WalletRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet record: %w", err)
	}

	var rec model.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse wallet record: %w", err)
	}
	return &rec, nil
}
