package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/common"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(params json.RawMessage) (any, *rpcError)

// fakeNode is a minimal Solana JSON-RPC endpoint answering from per-method handlers.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()

	node := &fakeNode{
		handlers: make(map[string]rpcHandler),
		calls:    make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(node.serveHTTP))
	t.Cleanup(srv.Close)
	return node, srv
}

func (n *fakeNode) on(method string, h rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcError{Code: -32601, Message: "Method not found"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(value any) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   value,
	}
}

func newTestClient(t *testing.T, url string) *SolanaClient {
	t.Helper()
	c, err := NewSolanaClient(url, USDCMintMainnet, "confirmed")
	require.NoError(t, err)
	c.pollInterval = 5 * time.Millisecond
	return c
}

func randomOwner(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func TestNewSolanaClient_Validation(t *testing.T) {
	_, err := NewSolanaClient("", USDCMintMainnet, "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = NewSolanaClient("http://localhost:8899", "bad-mint", "")
	assert.Error(t, err)

	_, err = NewSolanaClient("http://localhost:8899", USDCMintMainnet, "eventual")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	c, err := NewSolanaClient("http://localhost:8899", USDCMintMainnet, "")
	require.NoError(t, err)
	assert.Equal(t, USDCMintMainnet, c.Mint().String())
}

func TestGetTokenAccount(t *testing.T) {
	node, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	owner := randomOwner(t)

	wantATA, _, err := solana.FindAssociatedTokenAddress(owner, c.Mint())
	require.NoError(t, err)

	node.on("getAccountInfo", func(json.RawMessage) (any, *rpcError) {
		return withContext(nil), nil
	})
	account, err := c.GetTokenAccount(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, wantATA, account.Address)
	assert.False(t, account.Exists)

	node.on("getAccountInfo", func(json.RawMessage) (any, *rpcError) {
		return withContext(map[string]any{
			"data":       []string{"", "base64"},
			"executable": false,
			"lamports":   2039280,
			"owner":      solana.TokenProgramID.String(),
			"rentEpoch":  0,
		}), nil
	})
	account, err = c.GetTokenAccount(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, account.Exists)
}

func TestGetTokenBalance(t *testing.T) {
	node, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	owner := randomOwner(t)

	node.on("getTokenAccountBalance", func(json.RawMessage) (any, *rpcError) {
		return withContext(map[string]any{
			"amount":         "1500000",
			"decimals":       6,
			"uiAmount":       1.5,
			"uiAmountString": "1.5",
		}), nil
	})
	balance, err := c.GetTokenBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), balance)

	node.on("getTokenAccountBalance", func(json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "Invalid param: could not find account"}
	})
	balance, err = c.GetTokenBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.Zero(t, balance)

	node.on("getTokenAccountBalance", func(json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32005, Message: "Node is behind by 42 slots"}
	})
	_, err = c.GetTokenBalance(context.Background(), owner)
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestMissingAccount_OnlyAccountMessages(t *testing.T) {
	node, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	owner := randomOwner(t)

	// no handlers registered: every call gets -32601 "Method not found"
	_, err := c.GetTokenBalance(context.Background(), owner)
	assert.ErrorIs(t, err, common.ErrNetwork)
	_, err = c.GetTokenAccount(context.Background(), owner)
	assert.ErrorIs(t, err, common.ErrNetwork)

	node.on("getTokenAccountBalance", func(json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32004, Message: "Block not found"}
	})
	_, err = c.GetTokenBalance(context.Background(), owner)
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestGetSOLBalanceAndBlockhash(t *testing.T) {
	node, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)

	node.on("getBalance", func(json.RawMessage) (any, *rpcError) {
		return withContext(24981836), nil
	})
	hash := solana.Hash{9, 8, 7}
	node.on("getLatestBlockhash", func(json.RawMessage) (any, *rpcError) {
		return withContext(map[string]any{
			"blockhash":            hash.String(),
			"lastValidBlockHeight": 100,
		}), nil
	})

	lamports, err := c.GetSOLBalance(context.Background(), randomOwner(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(24981836), lamports)

	got, err := c.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)
}

func TestSubmitSignedTransaction(t *testing.T) {
	node, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	want := solana.Signature{1, 2, 3}

	node.on("sendTransaction", func(json.RawMessage) (any, *rpcError) {
		return want.String(), nil
	})
	sig, err := c.SubmitSignedTransaction(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, want, sig)

	tests := []struct {
		name    string
		message string
		want    error
	}{
		{"spl insufficient funds", "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1", common.ErrInsufficientFunds},
		{"no sol for fee", "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.", common.ErrInsufficientFunds},
		{"stale blockhash", "Transaction simulation failed: Blockhash not found", common.ErrSubmissionRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node.on("sendTransaction", func(json.RawMessage) (any, *rpcError) {
				return nil, &rpcError{Code: -32002, Message: tt.message}
			})
			_, err := c.SubmitSignedTransaction(context.Background(), []byte{1, 2, 3})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitSignedTransaction_NodeDown(t *testing.T) {
	_, srv := newFakeNode(t)
	c := newTestClient(t, srv.URL)
	srv.Close()

	_, err := c.SubmitSignedTransaction(context.Background(), []byte{1, 2, 3})
	assert.ErrorIs(t, err, common.ErrNetwork)
}

func TestConfirmTransaction(t *testing.T) {
	sig := solana.Signature{4, 5, 6}

	t.Run("confirmed after polling", func(t *testing.T) {
		node, srv := newFakeNode(t)
		c := newTestClient(t, srv.URL)

		polls := 0
		node.on("getSignatureStatuses", func(json.RawMessage) (any, *rpcError) {
			polls++
			if polls < 3 {
				return withContext([]any{nil}), nil
			}
			return withContext([]any{map[string]any{
				"slot":               10,
				"confirmations":      1,
				"err":                nil,
				"confirmationStatus": "confirmed",
			}}), nil
		})

		require.NoError(t, c.ConfirmTransaction(context.Background(), sig))
		assert.Equal(t, 3, node.count("getSignatureStatuses"))
	})

	t.Run("landed with error", func(t *testing.T) {
		node, srv := newFakeNode(t)
		c := newTestClient(t, srv.URL)

		node.on("getSignatureStatuses", func(json.RawMessage) (any, *rpcError) {
			return withContext([]any{map[string]any{
				"slot":               10,
				"confirmations":      1,
				"err":                map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}},
				"confirmationStatus": "confirmed",
			}}), nil
		})

		err := c.ConfirmTransaction(context.Background(), sig)
		assert.ErrorIs(t, err, common.ErrSubmissionRejected)
	})

	t.Run("timeout", func(t *testing.T) {
		node, srv := newFakeNode(t)
		c := newTestClient(t, srv.URL)

		node.on("getSignatureStatuses", func(json.RawMessage) (any, *rpcError) {
			return withContext([]any{map[string]any{
				"slot":               10,
				"confirmations":      0,
				"err":                nil,
				"confirmationStatus": "processed",
			}}), nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := c.ConfirmTransaction(ctx, sig)
		assert.ErrorIs(t, err, common.ErrNetwork)
	})
}
