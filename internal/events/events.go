package events

import "context"

// Event types
const (
	EventGiftStatusChanged = "gift_status_changed"
	EventSwapStatusChanged = "swap_status_changed"
	EventEscrowFunded      = "escrow_funded"
	EventRefundProcessed   = "refund_processed"
)

// StreamGifts is the redis channel carrying gift lifecycle events.
const StreamGifts = "events:gift"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
