package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AlexZinkM/payme-wallet/internal/backend"
	"github.com/AlexZinkM/payme-wallet/internal/model"
	"github.com/AlexZinkM/payme-wallet/internal/transfer"
	"github.com/AlexZinkM/payme-wallet/solana"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMint = solanago.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

// stubChain is an in-memory chain where every funded owner has a token account.
type stubChain struct {
	mu       sync.Mutex
	balances map[solanago.PublicKey]uint64
}

func (c *stubChain) fund(address string, usdc uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[solanago.MustPublicKeyFromBase58(address)] = usdc
}

func (c *stubChain) GetTokenAccount(_ context.Context, owner solanago.PublicKey) (*transfer.TokenAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ata, _, err := solanago.FindAssociatedTokenAddress(owner, testMint)
	if err != nil {
		return nil, err
	}
	_, ok := c.balances[owner]
	return &transfer.TokenAccount{Address: ata, Exists: ok}, nil
}

func (c *stubChain) GetLatestBlockhash(context.Context) (solanago.Hash, error) {
	return solanago.Hash{1}, nil
}

func (c *stubChain) SubmitSignedTransaction(_ context.Context, raw []byte) (solanago.Signature, error) {
	return solanago.SignatureFromBytes(raw[1:65]), nil
}

func (c *stubChain) GetTokenBalance(_ context.Context, owner solanago.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[owner], nil
}

func (c *stubChain) GetSOLBalance(context.Context, solanago.PublicKey) (uint64, error) {
	return 5_000_000, nil
}

func (c *stubChain) ConfirmTransaction(context.Context, solanago.Signature) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubChain) {
	t.Helper()

	store, err := backend.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chain := &stubChain{balances: make(map[solanago.PublicKey]uint64)}
	service := solana.NewService(store, chain, solana.Options{Mint: testMint})

	router, err := SetupRouter(service)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, chain
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createWallet(t *testing.T, srv *httptest.Server, userID, pin string) string {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/wallets/"+userID, `{"username":"`+userID+`","pin":"`+pin+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.GenerateResponse](t, resp).Address
}

func TestGenerate(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/wallets/alice", `{"username":"Alice","pin":"1234"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	created := decode[model.GenerateResponse](t, resp)
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Address)
	assert.NotEmpty(t, created.QR)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"existing wallet", "/wallets/alice", `{"pin":"1234"}`, http.StatusConflict, "wallet_exists"},
		{"short pin", "/wallets/bob", `{"pin":"12"}`, http.StatusBadRequest, "invalid_pin"},
		{"letters in pin", "/wallets/bob", `{"pin":"12ab"}`, http.StatusBadRequest, "invalid_pin"},
		{"malformed body", "/wallets/bob", `{"pin":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", "/wallets/bob", `{"pin":"1234","password":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"escaped pin", "/wallets/bob", `{"pin":"\u0031234"}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[model.ErrorResponse](t, resp).Code)
		})
	}
}

func TestPinEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	createWallet(t, srv, "alice", "1234")

	resp := do(t, srv, http.MethodPost, "/wallets/alice/pin/verify", `{"pin":"1234"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[model.VerifyPinResponse](t, resp).Valid)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/pin/verify", `{"pin":"4321"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[model.VerifyPinResponse](t, resp).Valid)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/pin/change", `{"oldPin":"0000","newPin":"5678"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/pin/change", `{"oldPin":"1234","newPin":"56"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/pin/change", `{"oldPin":"1234","newPin":"5678"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/pin/verify", `{"pin":"5678"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[model.VerifyPinResponse](t, resp).Valid)

	resp = do(t, srv, http.MethodPost, "/wallets/nobody/pin/verify", `{"pin":"1234"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendAndHistory(t *testing.T) {
	srv, chain := newTestServer(t)
	alice := createWallet(t, srv, "alice", "1234")
	bob := createWallet(t, srv, "bob", "5678")
	chain.fund(alice, 5_000_000)

	resp := do(t, srv, http.MethodGet, "/wallets/alice/balance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[model.BalanceResponse](t, resp)
	assert.Equal(t, alice, balance.Address)
	assert.Equal(t, "5.000000", balance.USDC)
	assert.Equal(t, "0.005000000", balance.SOL)

	resp = do(t, srv, http.MethodPost, "/wallets/alice/send", `{"toAddress":"@bob","amount":"1.5","memo":"lunch","pin":"1234"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	paid := decode[model.PayResponse](t, resp)
	assert.NotEmpty(t, paid.TxID)
	assert.Equal(t, "submitted", paid.Status)

	resp = do(t, srv, http.MethodGet, "/wallets/alice/transactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[model.TransactionsResponse](t, resp)
	assert.Equal(t, alice, history.Address)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, "1.500000", history.Transactions[0].Amount)
	assert.Equal(t, uint64(1_500_000), history.Transactions[0].AmountMinorUnits)
	assert.Equal(t, bob, history.Transactions[0].To)
	assert.Equal(t, paid.TxID, history.Transactions[0].Signature)

	resp = do(t, srv, http.MethodGet, "/wallets/bob/transactions?type=RECEIVE&limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	received := decode[model.TransactionsResponse](t, resp)
	require.Len(t, received.Transactions, 1)
	assert.Equal(t, model.TransactionTypeReceive, received.Transactions[0].Type)

	resp = do(t, srv, http.MethodGet, "/wallets/bob/transactions?type=SEND", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[model.TransactionsResponse](t, resp).Transactions)
}

func TestSend_Errors(t *testing.T) {
	srv, chain := newTestServer(t)
	alice := createWallet(t, srv, "alice", "1234")
	createWallet(t, srv, "bob", "5678")
	chain.fund(alice, 1_000_000)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"wrong pin", `{"toAddress":"@bob","amount":"0.1","pin":"9999"}`, http.StatusUnauthorized, "incorrect_pin"},
		{"both amounts", `{"toAddress":"@bob","amount":"0.1","amountMinorUnits":100000,"pin":"1234"}`, http.StatusBadRequest, "invalid_input"},
		{"too many decimals", `{"toAddress":"@bob","amount":"0.0000001","pin":"1234"}`, http.StatusBadRequest, "invalid_input"},
		{"no amount", `{"toAddress":"@bob","pin":"1234"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown handle", `{"toAddress":"@carol","amountMinorUnits":1,"pin":"1234"}`, http.StatusBadRequest, "invalid_recipient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/wallets/alice/send", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[model.ErrorResponse](t, resp).Code)
		})
	}
}

func TestSend_InsufficientFunds(t *testing.T) {
	srv, chain := newTestServer(t)
	alice := createWallet(t, srv, "alice", "1234")
	createWallet(t, srv, "bob", "5678")
	chain.fund(alice, 1_000)

	resp := do(t, srv, http.MethodPost, "/wallets/alice/send", `{"toAddress":"@bob","amountMinorUnits":1001,"pin":"1234"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_funds", decode[model.ErrorResponse](t, resp).Code)
}

func TestTransactionHistory_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, query := range []string{"?limit=abc", "?limit=501", "?type=DEBIT"} {
		resp := do(t, srv, http.MethodGet, "/wallets/alice/transactions"+query, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestQRCode(t *testing.T) {
	srv, _ := newTestServer(t)
	createWallet(t, srv, "alice", "1234")

	resp := do(t, srv, http.MethodGet, "/wallets/alice/qr", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestDeleteWallet(t *testing.T) {
	srv, _ := newTestServer(t)
	createWallet(t, srv, "alice", "1234")

	resp := do(t, srv, http.MethodDelete, "/wallets/alice", `{"pin":"0000"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/wallets/alice", `{"pin":"1234"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/wallets/alice/balance", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	createWallet(t, srv, "alice", "4321")
}

func TestRouting(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/wallets/alice/send", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, resp)
	assert.Contains(t, doc["paths"], "/wallets/{id}/send")
}
