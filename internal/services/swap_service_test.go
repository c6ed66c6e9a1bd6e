package services

import (
	"math/big"
	"testing"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
)

func ton100() *big.Int {
	// 100 TON in nano, standing in for "$100 worth of native" at $1/TON
	return new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000))
}

func TestAllocateBundleLegsNativePlusSwap(t *testing.T) {
	// 40% native, 60% swapped: native leg reserves 40, leg B gets the rest
	legs := []models.BundleLeg{
		{ID: uuid.New(), AssetID: uuid.New(), Symbol: "TON", Percent: 40, Position: 0},
		{ID: uuid.New(), AssetID: uuid.New(), Symbol: "USDT", Percent: 60, Position: 1},
	}
	allocs := AllocateBundleLegs(legs, ton100())

	if len(allocs) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocs))
	}

	var native, swapped *LegAllocation
	for i := range allocs {
		if allocs[i].Native {
			native = &allocs[i]
		} else {
			swapped = &allocs[i]
		}
	}
	if native == nil || swapped == nil {
		t.Fatal("expected one native and one swapped allocation")
	}

	wantNative := new(big.Int).Mul(big.NewInt(40), big.NewInt(1_000_000_000))
	if native.AmountNano.Cmp(wantNative) != 0 {
		t.Errorf("native allocation = %s, want %s", native.AmountNano, wantNative)
	}
	wantSwapped := new(big.Int).Mul(big.NewInt(60), big.NewInt(1_000_000_000))
	if swapped.AmountNano.Cmp(wantSwapped) != 0 {
		t.Errorf("swapped allocation = %s, want %s", swapped.AmountNano, wantSwapped)
	}
}

func TestAllocateBundleLegsProportionalSplit(t *testing.T) {
	// two non-native legs split the full balance 25/75
	legs := []models.BundleLeg{
		{AssetID: uuid.New(), Symbol: "USDT", Percent: 25},
		{AssetID: uuid.New(), Symbol: "NOT", Percent: 75},
	}
	allocs := AllocateBundleLegs(legs, big.NewInt(1000))

	if allocs[0].AmountNano.Int64() != 250 {
		t.Errorf("first leg = %d, want 250", allocs[0].AmountNano.Int64())
	}
	if allocs[1].AmountNano.Int64() != 750 {
		t.Errorf("second leg = %d, want 750", allocs[1].AmountNano.Int64())
	}
}

func TestAllocateBundleLegsZeroBalance(t *testing.T) {
	legs := []models.BundleLeg{
		{AssetID: uuid.New(), Symbol: "TON", Percent: 50},
		{AssetID: uuid.New(), Symbol: "USDT", Percent: 50},
	}
	allocs := AllocateBundleLegs(legs, big.NewInt(0))
	for _, a := range allocs {
		if a.AmountNano.Sign() != 0 {
			t.Errorf("allocation for %s = %s, want 0", a.Leg.Symbol, a.AmountNano)
		}
	}
}

func TestAllocateBundleLegsTotalNeverExceedsAvailable(t *testing.T) {
	legs := []models.BundleLeg{
		{AssetID: uuid.New(), Symbol: "TON", Percent: 33},
		{AssetID: uuid.New(), Symbol: "USDT", Percent: 33},
		{AssetID: uuid.New(), Symbol: "NOT", Percent: 34},
	}
	available := big.NewInt(999_999_937) // prime-ish, forces truncation
	allocs := AllocateBundleLegs(legs, available)

	total := new(big.Int)
	for _, a := range allocs {
		total.Add(total, a.AmountNano)
	}
	if total.Cmp(available) > 0 {
		t.Errorf("allocated %s exceeds available %s", total, available)
	}
}

func TestCentsToNano(t *testing.T) {
	tests := []struct {
		name       string
		cents      int64
		priceCents int64
		want       string
	}{
		{"$100 at $5/TON is 20 TON", 10000, 500, "20000000000"},
		{"$1 at $2/TON is 0.5 TON", 100, 200, "500000000"},
		{"zero cents", 0, 500, "0"},
		{"non-positive price degrades to zero", 10000, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := centsToNano(tt.cents, tt.priceCents); got.String() != tt.want {
				t.Errorf("centsToNano(%d, %d) = %s, want %s", tt.cents, tt.priceCents, got, tt.want)
			}
		})
	}
}
