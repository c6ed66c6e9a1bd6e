package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type CreditResponse struct {
	IsActive            bool  `json:"is_active"`
	BalanceCents        int64 `json:"balance_cents"`
	FreeSendsRemaining  int   `json:"free_sends_remaining"`
	FeeWaiversRemaining int   `json:"fee_waivers_remaining"`
}
