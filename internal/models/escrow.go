package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowAccount is a one-time custodied on-chain wallet holding one gift
// leg between send and claim/refund. The private key is stored only
// encrypted; once claimed or refunded the account is never reused.
type EscrowAccount struct {
	ID              uuid.UUID  `json:"id"`
	GiftID          uuid.UUID  `json:"gift_id"`
	AssetID         uuid.UUID  `json:"asset_id"`
	PublicKey       string     `json:"public_key"` // hex
	Address         string     `json:"address"`
	EncryptedSecret string     `json:"-"` // iv:ciphertext, server-key encrypted
	AmountNano      string     `json:"amount_nano"` // recorded pending transfer amount
	FundedNano      *string    `json:"funded_nano,omitempty"`
	FundedAt        *time.Time `json:"funded_at,omitempty"`
	Claimed         bool       `json:"claimed"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (e *EscrowAccount) IsFunded() bool {
	return e.FundedAt != nil
}
