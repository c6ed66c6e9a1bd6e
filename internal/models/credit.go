package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditEntry is a time-boxed allowance of fee waivers tied to a funding
// event. At most one active, non-expired entry exists per identity; the
// issuing funding transaction reference is the idempotency key.
type CreditEntry struct {
	ID                uuid.UUID `json:"id"`
	Identity          string    `json:"identity"`
	TotalIssuedCents  int64     `json:"total_issued_cents"`
	BalanceCents      int64     `json:"balance_cents"`
	FreeSendsUsed     int       `json:"free_sends_used"`
	FreeSendsAllowed  int       `json:"free_sends_allowed"`
	FeeWaiversUsed    int       `json:"fee_waivers_used"`
	FeeWaiversAllowed int       `json:"fee_waivers_allowed"`
	FundingTxRef      string    `json:"funding_tx_ref"`
	ExpiresAt         time.Time `json:"expires_at"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (c *CreditEntry) FreeSendsRemaining() int {
	if r := c.FreeSendsAllowed - c.FreeSendsUsed; r > 0 {
		return r
	}
	return 0
}

func (c *CreditEntry) FeeWaiversRemaining() int {
	if r := c.FeeWaiversAllowed - c.FeeWaiversUsed; r > 0 {
		return r
	}
	return 0
}

func (c *CreditEntry) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *CreditEntry) IsUsable(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now)
}
