package models

import (
	"time"

	"github.com/google/uuid"
)

// Gift statuses. A gift is created on send confirmation and never deleted;
// only its status advances.
const (
	GiftStatusPendingPayment    = "pending_payment"
	GiftStatusSent              = "SENT"
	GiftStatusClaimed           = "CLAIMED"
	GiftStatusExpired           = "EXPIRED"
	GiftStatusExpiredEmpty      = "EXPIRED_EMPTY"
	GiftStatusExpiredLowBalance = "EXPIRED_LOW_BALANCE"
	GiftStatusRefunded          = "REFUNDED"
)

// On-ramp statuses for fiat-funded sends.
const (
	OnrampStatusNotRequired = "not_required"
	OnrampStatusPending     = "pending"
	OnrampStatusCompleted   = "completed"
	OnrampStatusFailed      = "failed"
)

// Gift-level swap statuses mirror the furthest swap operation state.
const (
	GiftSwapStatusNone             = "none"
	GiftSwapStatusPrepared         = "prepared"
	GiftSwapStatusPendingSignature = "pending_signature"
	GiftSwapStatusCompleted        = "completed"
	GiftSwapStatusFailed           = "failed"
)

// Valid state transitions: from -> []to
var ValidGiftTransitions = map[string][]string{
	GiftStatusPendingPayment: {GiftStatusSent},
	GiftStatusSent: {
		GiftStatusClaimed,
		GiftStatusExpired,
		GiftStatusExpiredEmpty,
		GiftStatusExpiredLowBalance,
		GiftStatusRefunded,
	},
	GiftStatusClaimed:           {},
	GiftStatusExpired:           {},
	GiftStatusExpiredEmpty:      {},
	GiftStatusExpiredLowBalance: {},
	GiftStatusRefunded:          {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidGiftTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	allowed, ok := ValidGiftTransitions[status]
	return ok && len(allowed) == 0
}

// swapStatusRank orders gift swap statuses so a failed preparation can never
// regress a status the gift already reached.
var swapStatusRank = map[string]int{
	GiftSwapStatusNone:             0,
	GiftSwapStatusPrepared:         1,
	GiftSwapStatusPendingSignature: 2,
	GiftSwapStatusCompleted:        3,
	GiftSwapStatusFailed:           0,
}

// SwapStatusAdvances reports whether moving from -> to is a forward move.
func SwapStatusAdvances(from, to string) bool {
	if to == GiftSwapStatusFailed {
		return false
	}
	return swapStatusRank[to] > swapStatusRank[from]
}

type Gift struct {
	ID               uuid.UUID  `json:"id"`
	SenderIdentity   string     `json:"sender_identity"`
	SenderContact    string     `json:"sender_contact"`
	SenderAddress    string     `json:"sender_address"` // funding wallet, refund destination
	RecipientContact string     `json:"recipient_contact"`
	AssetID          *uuid.UUID `json:"asset_id,omitempty"`  // single-asset gift
	BundleID         *uuid.UUID `json:"bundle_id,omitempty"` // multi-asset gift
	AmountNano       *string    `json:"amount_nano,omitempty"`
	ValueUSDCents    int64      `json:"value_usd_cents"` // valuation snapshot at send time
	Message          *string    `json:"message,omitempty"`
	Status           string     `json:"status"`
	OnrampStatus     string     `json:"onramp_status"`
	SwapStatus       string     `json:"swap_status"`
	PaymentChannel   string     `json:"payment_channel"`
	IncludeAddOn     bool       `json:"include_add_on"`
	RefundAttempts   int        `json:"refund_attempts"`
	LastRefundAt     *time.Time `json:"last_refund_at,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`
	ClaimedBy        *string    `json:"claimed_by,omitempty"`
	ClaimSignature   *string    `json:"claim_signature,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
	RefundSignature  *string    `json:"refund_signature,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (g *Gift) IsBundle() bool {
	return g.BundleID != nil
}

func (g *Gift) IsExpired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
