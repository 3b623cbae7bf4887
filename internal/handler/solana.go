package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/common"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/solana"

	"github.com/ccoveille/go-safecast"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// SolanaHandler exposes the wallet service over HTTP
type SolanaHandler struct {
	service *solana.Service
}

// NewSolanaHandler creates a new SolanaHandler on top of service
func NewSolanaHandler(service *solana.Service) (*SolanaHandler, error) {
	if service == nil {
		return nil, errors.New("wallet service not set")
	}
	return &SolanaHandler{service: service}, nil
}

// Generate handles POST /wallets/{id}
// @Summary      Create wallet
// @Description  Generates a new wallet for the user, encrypts it under the transaction PIN and stores it
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "User ID"
// @Param        request  body      model.GenerateRequest  true  "Username and PIN"
// @Success      201      {object}  model.GenerateResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /wallets/{id} [post]
func (h *SolanaHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer req.PIN.Clear()

	resp, err := h.service.Onboard(r.Context(), r.PathValue("id"), req.Username, req.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// VerifyPin handles POST /wallets/{id}/pin/verify
// @Summary      Verify transaction PIN
// @Description  Checks the PIN against the stored credential without decrypting the wallet
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "User ID"
// @Param        request  body      model.VerifyPinRequest  true  "PIN"
// @Success      200      {object}  model.VerifyPinResponse
// @Failure      404      {object}  model.ErrorResponse
// @Router       /wallets/{id}/pin/verify [post]
func (h *SolanaHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyPinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer req.PIN.Clear()

	ok, err := h.service.VerifyPin(r.Context(), r.PathValue("id"), req.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.VerifyPinResponse{Valid: ok})
}

// ChangePin handles POST /wallets/{id}/pin/change
// @Summary      Change transaction PIN
// @Description  Re-encrypts the wallet under a new PIN. The old PIN must be correct.
// @Tags         wallets
// @Accept       json
// @Param        id       path  string                  true  "User ID"
// @Param        request  body  model.ChangePinRequest  true  "Old and new PIN"
// @Success      204
// @Failure      401      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /wallets/{id}/pin/change [post]
func (h *SolanaHandler) ChangePin(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer req.OldPIN.Clear()
	defer req.NewPIN.Clear()

	if err := h.service.ChangePin(r.Context(), r.PathValue("id"), req.OldPIN, req.NewPIN); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PayUSDC handles POST /wallets/{id}/send
// @Summary      Send USDC
// @Description  Sends USDC to a base58 address or to another user given as @userID
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "User ID"
// @Param        request  body      model.PayRequest  true  "Payment data"
// @Success      200      {object}  model.PayResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      401      {object}  model.ErrorResponse
// @Failure      422      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Failure      503      {object}  model.ErrorResponse
// @Router       /wallets/{id}/send [post]
func (h *SolanaHandler) PayUSDC(w http.ResponseWriter, r *http.Request) {
	var req model.PayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer req.PIN.Clear()

	amount, err := payAmount(&req)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Send(r.Context(), solana.SendRequest{
		UserID:           r.PathValue("id"),
		Recipient:        req.ToAddress,
		AmountMinorUnits: amount,
		Memo:             req.Memo,
		PIN:              req.PIN,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.PayResponse{
		TxID:   res.Signature,
		Status: res.State.String(),
	})
}

// GetBalance handles GET /wallets/{id}/balance
// @Summary      Get wallet balance
// @Description  Gets USDC and SOL balance of the user's wallet
// @Tags         wallets
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  model.BalanceResponse
// @Failure      404  {object}  model.ErrorResponse
// @Failure      503  {object}  model.ErrorResponse
// @Router       /wallets/{id}/balance [get]
func (h *SolanaHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// QRCode handles GET /wallets/{id}/qr
// @Summary      Receive QR code
// @Description  PNG QR code of the user's wallet address
// @Tags         wallets
// @Produce      png
// @Param        id   path  string  true  "User ID"
// @Success      200
// @Failure      404  {object}  model.ErrorResponse
// @Router       /wallets/{id}/qr [get]
func (h *SolanaHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.QRCode(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.WithError(err).Debug("failed to write QR code")
	}
}

// TransactionHistory handles GET /wallets/{id}/transactions
// @Summary      Get wallet transactions
// @Description  Gets the user's ledger, newest first, with optional type filtering
// @Tags         wallets
// @Produce      json
// @Param        id     path      string  true   "User ID"
// @Param        limit  query     int     false  "Maximum number of entries (default 50, max 500)"
// @Param        type   query     string  false  "Transaction type: SEND or RECEIVE"
// @Success      200    {object}  model.TransactionsResponse
// @Failure      400    {object}  model.ErrorResponse
// @Router       /wallets/{id}/transactions [get]
func (h *SolanaHandler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	var req model.TransactionsRequest

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	// Parse transaction type
	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		txType := model.TransactionType(typeStr)
		req.Type = &txType
	}

	resp, err := h.service.Transactions(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteWallet handles DELETE /wallets/{id}
// @Summary      Delete wallet
// @Description  Removes the user's wallet after checking the PIN. Ledger entries are kept.
// @Tags         wallets
// @Accept       json
// @Param        id       path  string                     true  "User ID"
// @Param        request  body  model.DeleteWalletRequest  true  "PIN"
// @Success      204
// @Failure      401      {object}  model.ErrorResponse
// @Failure      404      {object}  model.ErrorResponse
// @Router       /wallets/{id} [delete]
func (h *SolanaHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	var req model.DeleteWalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	defer req.PIN.Clear()

	if err := h.service.DeleteWallet(r.Context(), r.PathValue("id"), req.PIN); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// payAmount returns the requested amount in minor units.
// Exactly one of the decimal and the integer form must be given.
func payAmount(req *model.PayRequest) (int64, error) {
	switch {
	case req.Amount != "" && req.AmountMinorUnits != 0:
		return 0, fmt.Errorf("%w: give either amount or amountMinorUnits, not both", common.ErrInvalidInput)
	case req.Amount != "":
		micro, err := common.USDCToMicro(req.Amount)
		if err != nil {
			return 0, err
		}
		amount, err := safecast.ToInt64(micro)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		return amount, nil
	default:
		return req.AmountMinorUnits, nil
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

// writeError maps an error kind onto an HTTP status. Unknown errors are logged and
// reported as internal without their message.
func writeError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeErrorMessage(w, status, code, "internal error")
		return
	}
	writeErrorMessage(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidPin):
		return http.StatusBadRequest, "invalid_pin"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, common.ErrInvalidRecipient):
		return http.StatusBadRequest, "invalid_recipient"
	case errors.Is(err, common.ErrIncorrectPinOrCorruptData):
		return http.StatusUnauthorized, "incorrect_pin"
	case errors.Is(err, backend.ErrWalletNotFound):
		return http.StatusNotFound, "wallet_not_found"
	case errors.Is(err, backend.ErrWalletExists):
		return http.StatusConflict, "wallet_exists"
	case errors.Is(err, backend.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, solana.ErrTransferInProgress):
		return http.StatusConflict, "transfer_in_progress"
	case errors.Is(err, solana.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, common.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, common.ErrSubmissionRejected):
		return http.StatusUnprocessableEntity, "rejected"
	case errors.Is(err, common.ErrNetwork):
		return http.StatusServiceUnavailable, "network"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
