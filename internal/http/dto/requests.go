package dto

import "github.com/giftlink/backend/internal/ton"

type CreateSendRequest struct {
	SenderAddress    string  `json:"sender_address"`
	RecipientContact string  `json:"recipient_contact"`
	AssetID          *string `json:"asset_id,omitempty"`
	AmountNano       *string `json:"amount_nano,omitempty"`
	BundleID         *string `json:"bundle_id,omitempty"`
	Message          *string `json:"message,omitempty"`
	PaymentChannel   string  `json:"payment_channel"` // wallet / card
	IncludeAddOn     bool    `json:"include_add_on"`
}

type FeeQuoteRequest struct {
	AssetID        *string `json:"asset_id,omitempty"`
	AmountNano     *string `json:"amount_nano,omitempty"`
	BundleID       *string `json:"bundle_id,omitempty"`
	IncludeAddOn   bool    `json:"include_add_on"`
	PaymentChannel string  `json:"payment_channel"`
}

type ConfirmSwapRequest struct {
	Signature string `json:"signature"`
}

type ClaimRequest struct {
	RecipientAddress string    `json:"recipient_address"` // raw workchain:hex
	PublicKey        string    `json:"public_key"`
	Proof            ton.Proof `json:"proof"`
}

type IssueCreditRequest struct {
	FundingTxRef string `json:"funding_tx_ref"`
}
