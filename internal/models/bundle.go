package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BundleTemplate is a named multi-asset allocation. Templates are immutable
// once a gift references them.
type BundleTemplate struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	FaceValueUSDCents int64       `json:"face_value_usd_cents"`
	BadgeName         *string     `json:"badge_name,omitempty"`
	BadgeImageURL     *string     `json:"badge_image_url,omitempty"`
	Legs              []BundleLeg `json:"legs"`
	CreatedAt         time.Time   `json:"created_at"`
}

// BundleLeg is one asset allocation within a bundle. Legs are ordered by
// Position and their percentages must sum to 100.
type BundleLeg struct {
	ID       uuid.UUID `json:"id"`
	BundleID uuid.UUID `json:"bundle_id"`
	AssetID  uuid.UUID `json:"asset_id"`
	Symbol   string    `json:"symbol"`
	Percent  int       `json:"percent"`
	Position int       `json:"position"`
}

// Validate checks the leg invariant: at least one leg, every percentage
// positive, percentages summing to exactly 100.
func (b *BundleTemplate) Validate() error {
	if len(b.Legs) == 0 {
		return fmt.Errorf("bundle %q has no legs", b.Name)
	}
	sum := 0
	for _, leg := range b.Legs {
		if leg.Percent <= 0 {
			return fmt.Errorf("bundle %q leg %s has non-positive percent %d", b.Name, leg.Symbol, leg.Percent)
		}
		sum += leg.Percent
	}
	if sum != 100 {
		return fmt.Errorf("bundle %q leg percentages sum to %d, want 100", b.Name, sum)
	}
	return nil
}

// LegValueCents returns the USD face value of one leg in cents.
func (b *BundleTemplate) LegValueCents(leg BundleLeg) int64 {
	return b.FaceValueUSDCents * int64(leg.Percent) / 100
}
