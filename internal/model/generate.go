package model

// GenerateRequest represents request for POST /wallets/{id}
type GenerateRequest struct {
	Username string `json:"username,omitempty"`
	PIN      PIN    `json:"pin" swaggertype:"string"`
}

// GenerateResponse represents response for POST /wallets/{id}
type GenerateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Address string `json:"address,omitempty"`
	QR      string `json:"qr,omitempty"` // base64 PNG
}

// VerifyPinRequest represents request for POST /wallets/{id}/pin/verify
type VerifyPinRequest struct {
	PIN PIN `json:"pin" swaggertype:"string"`
}

// VerifyPinResponse represents response for POST /wallets/{id}/pin/verify
type VerifyPinResponse struct {
	Valid bool `json:"valid"`
}

// ChangePinRequest represents request for POST /wallets/{id}/pin/change
type ChangePinRequest struct {
	OldPIN PIN `json:"oldPin" swaggertype:"string"`
	NewPIN PIN `json:"newPin" swaggertype:"string"`
}

// DeleteWalletRequest represents request for DELETE /wallets/{id}
type DeleteWalletRequest struct {
	PIN PIN `json:"pin" swaggertype:"string"`
}
