package model

// PayRequest represents request for POST /wallets/{id}/send.
// Exactly one of Amount (decimal USDC string) and AmountMinorUnits must be set.
type PayRequest struct {
	ToAddress        string `json:"toAddress"`
	Amount           string `json:"amount,omitempty"`
	AmountMinorUnits int64  `json:"amountMinorUnits,omitempty"`
	Memo             string `json:"memo,omitempty"`
	PIN              PIN    `json:"pin" swaggertype:"string"`
}

// PayResponse represents response for POST /wallets/{id}/send
type PayResponse struct {
	TxID   string `json:"txId"`
	Status string `json:"status"`
}
