package service

import "github.com/mmynk/splitchat/internal/models"

// GetStateRequest asks for the current session state.
type GetStateRequest struct{}

// StateResponse is the session state as shown to a client.
type StateResponse struct {
	Bill      models.BillState     `json:"bill"`
	Breakdown models.Breakdown     `json:"breakdown"`
	Messages  []models.ChatMessage `json:"messages"`

	CommandPending bool `json:"commandPending"`
	VisionPending  bool `json:"visionPending"`

	// ConfigError is set when chat commands and receipt scans are disabled.
	ConfigError string `json:"configError,omitempty"`

	// FlowError is set when the request waited for a round trip that failed.
	FlowError string `json:"flowError,omitempty"`
}

// SendMessageRequest submits one chat command.
type SendMessageRequest struct {
	Text string `json:"text"`

	// Wait holds the response until the interpreter round trip has been
	// recorded.
	Wait bool `json:"wait"`
}

// ScanReceiptRequest submits one receipt image, either as raw bytes
// (base64 in JSON) with an optional media type, or as a data URL.
type ScanReceiptRequest struct {
	Image    []byte `json:"image,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	DataURL  string `json:"dataUrl,omitempty"`
	Wait     bool   `json:"wait"`
}

// SetTotalRequest sets the bill total directly.
type SetTotalRequest struct {
	Total float64 `json:"total"`
}

// RemoveExpenseRequest deletes one individual expense by ID.
type RemoveExpenseRequest struct {
	ID string `json:"id"`
}

// SettleRequest lists who actually paid how much.
type SettleRequest struct {
	Payments []models.Payment `json:"payments"`
}

// SettleResponse is the settlement of the current bill.
type SettleResponse struct {
	Breakdown models.Breakdown       `json:"breakdown"`
	Balances  []models.MemberBalance `json:"balances"`
	Transfers []models.Transfer      `json:"transfers"`
}
