package api

import (
	"net/http"

	_ "github.com/AlexZinkM/payme-wallet/docs" // swagger docs
	"github.com/AlexZinkM/payme-wallet/internal/handler"
	"github.com/AlexZinkM/payme-wallet/solana"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(service *solana.Service) (http.Handler, error) {
	solanaHandler, err := handler.NewSolanaHandler(service)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.WrapHandler)

	// Wallet endpoints
	mux.HandleFunc("POST /wallets/{id}", solanaHandler.Generate)
	mux.HandleFunc("DELETE /wallets/{id}", solanaHandler.DeleteWallet)
	mux.HandleFunc("POST /wallets/{id}/pin/verify", solanaHandler.VerifyPin)
	mux.HandleFunc("POST /wallets/{id}/pin/change", solanaHandler.ChangePin)
	mux.HandleFunc("POST /wallets/{id}/send", solanaHandler.PayUSDC)
	mux.HandleFunc("GET /wallets/{id}/balance", solanaHandler.GetBalance)
	mux.HandleFunc("GET /wallets/{id}/qr", solanaHandler.QRCode)
	mux.HandleFunc("GET /wallets/{id}/transactions", solanaHandler.TransactionHistory)

	return mux, nil
}
