package models

import (
	"testing"

	"github.com/google/uuid"
)

func legs(percents ...int) []BundleLeg {
	out := make([]BundleLeg, 0, len(percents))
	for i, p := range percents {
		out = append(out, BundleLeg{
			ID:       uuid.New(),
			AssetID:  uuid.New(),
			Symbol:   "AST",
			Percent:  p,
			Position: i,
		})
	}
	return out
}

func TestBundleValidate(t *testing.T) {
	tests := []struct {
		name     string
		percents []int
		wantErr  bool
	}{
		{"two legs 40/60", []int{40, 60}, false},
		{"three legs", []int{50, 30, 20}, false},
		{"single leg 100", []int{100}, false},
		{"sum below 100", []int{40, 50}, true},
		{"sum above 100", []int{60, 60}, true},
		{"zero leg", []int{0, 100}, true},
		{"negative leg", []int{-10, 110}, true},
		{"no legs", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &BundleTemplate{Name: tt.name, FaceValueUSDCents: 10000, Legs: legs(tt.percents...)}
			err := b.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLegValueCents(t *testing.T) {
	b := &BundleTemplate{Name: "starter", FaceValueUSDCents: 10000, Legs: legs(40, 60)}
	if got := b.LegValueCents(b.Legs[0]); got != 4000 {
		t.Errorf("LegValueCents(40%%) = %d, want 4000", got)
	}
	if got := b.LegValueCents(b.Legs[1]); got != 6000 {
		t.Errorf("LegValueCents(60%%) = %d, want 6000", got)
	}
}
