package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset is a sendable asset: native TON or a jetton identified by its
// master (mint) address.
type Asset struct {
	ID            uuid.UUID `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	MasterAddress *string   `json:"master_address,omitempty"` // nil for native TON
	Decimals      int       `json:"decimals"`
	CreatedAt     time.Time `json:"created_at"`
}

func (a *Asset) IsNative() bool {
	return a.MasterAddress == nil
}
