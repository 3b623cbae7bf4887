// Command payme runs the wallet HTTP server and offers the wallet operations on the command line.
//
// @title        PayMe Wallet API
// @version      1.0
// @description  PIN protected USDC wallets on Solana.
// @BasePath     /
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/api"
	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/client"
	"github.com/AlexZinkM/payme-wallet/internal/config"
	"github.com/AlexZinkM/payme-wallet/solana"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "payme"
	app.Usage = "PIN protected USDC wallets on Solana"
	app.Commands = append(
		app.Commands,
		&serveCommand,
		&keygenCommand,
		&rekeyCommand,
		&onboardCommand,
		&verifyPinCommand,
		&changePinCommand,
		&balanceCommand,
		&sendCommand,
		&historyCommand,
		&deleteCommand,
	)
	app.Flags = []cli.Flag{verboseFlag}
	app.Before = func(ctx *cli.Context) error {
		if err := config.Init(); err != nil {
			return err
		}
		config.Get().SetupLogging()
		if ctx.Bool(verboseFlag.Name) {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "Run the HTTP API",
	Action: func(ctx *cli.Context) error {
		return serve(ctx)
	},
}

func serve(ctx *cli.Context) error {
	service, closeStore, err := newService()
	if err != nil {
		return err
	}
	defer closeStore()

	router, err := api.SetupRouter(service)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newService wires the configured backend and chain client into a wallet service.
func newService() (*solana.Service, func(), error) {
	cfg := config.Get()

	backendCfg := config.GetBackendConfig()
	store, err := backend.Open(backendCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s backend: %w", backendCfg.Kind, err)
	}

	chain, err := client.NewSolanaClient(config.GetSolanaRPCURL(), config.GetUSDCMint(), cfg.Commitment)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	service := solana.NewService(store, chain, solana.Options{
		Mint:               chain.Mint(),
		TransferTimeout:    cfg.TransferTimeout,
		ConfirmTimeout:     cfg.ConfirmTimeout,
		AwaitConfirmation:  cfg.AwaitConfirmation,
		TransfersPerMinute: cfg.TransferRateLimit,
		TransferBurst:      cfg.TransferRateBurst,
	})

	closeStore := func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("failed to close backend")
		}
	}
	return service, closeStore, nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
