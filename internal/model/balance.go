package model

// BalanceResponse represents response for GET /wallets/{id}/balance
type BalanceResponse struct {
	Address     string `json:"address"`
	USDCMicro   uint64 `json:"usdcMinorUnits"`
	USDC        string `json:"usdc"`
	SOLLamports uint64 `json:"solLamports"`
	SOL         string `json:"sol"`
}
