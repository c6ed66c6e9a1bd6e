package models

import (
	"time"

	"github.com/google/uuid"
)

// Swap operation statuses. Completed requires a confirmed on-chain
// signature supplied by the signing collaborator.
const (
	SwapStatusPrepared         = "prepared"
	SwapStatusPendingSignature = "pending_signature"
	SwapStatusCompleted        = "completed"
	SwapStatusFailed           = "failed"
)

// SwapOperation records one conversion of the funding asset into a bundle
// leg asset via the external aggregator.
type SwapOperation struct {
	ID              uuid.UUID `json:"id"`
	GiftID          uuid.UUID `json:"gift_id"`
	InputAssetID    uuid.UUID `json:"input_asset_id"`
	OutputAssetID   uuid.UUID `json:"output_asset_id"`
	InputAmountNano string    `json:"input_amount_nano"`
	OutAmountNano   *string   `json:"out_amount_nano,omitempty"` // quoted output, pre-slippage
	Status          string    `json:"status"`
	UnsignedTxBOC   *string   `json:"unsigned_tx_boc,omitempty"`
	Signature       *string   `json:"signature,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
