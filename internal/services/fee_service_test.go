package services

import (
	"math/big"
	"testing"
)

func baseInputs() feeInputs {
	return feeInputs{
		baseValueCents:         10000, // $100
		nonNativeValueCents:    6000,  // $60 non-native leg
		newAccounts:            3,
		txCount:                3,
		escrowCount:            2,
		accountReserveCents:    15, // $0.15 per jetton wallet deploy
		swapFeeBPS:             85,
		priorityFeeCents:       2,
		escrowIssuanceFeeCents: 10,
		onrampFeeBPS:           390,
	}
}

func TestComputeFeesWalletChannel(t *testing.T) {
	q := computeFees(baseInputs())

	// account creation 3*15=45, swap 6000*85/10000=51, priority 3*2=6, issuance 2*10=20
	wantNetwork := int64(45 + 51 + 6 + 20)
	if q.NetworkFeeCents != wantNetwork {
		t.Errorf("network fee = %d, want %d", q.NetworkFeeCents, wantNetwork)
	}
	if q.PaymentFeeCents != 0 {
		t.Errorf("payment fee = %d, want 0 on wallet channel", q.PaymentFeeCents)
	}
	if q.TotalCostCents != 10000+wantNetwork {
		t.Errorf("total = %d, want %d", q.TotalCostCents, 10000+wantNetwork)
	}
	if q.TotalCostCents < q.BaseValueCents {
		t.Error("total cost below base value")
	}
}

func TestComputeFeesCardChannel(t *testing.T) {
	in := baseInputs()
	in.fiatChannel = true
	q := computeFees(in)

	// 10000 * 390bps = 390 cents
	if q.PaymentFeeCents != 390 {
		t.Errorf("payment fee = %d, want 390", q.PaymentFeeCents)
	}
	if q.TotalCostCents != q.BaseValueCents+q.NetworkFeeCents+q.PaymentFeeCents {
		t.Error("total is not base + network + payment")
	}
}

func TestComputeFeesOverheadPercent(t *testing.T) {
	in := feeInputs{
		baseValueCents:   10000,
		priorityFeeCents: 500, // force a round overhead
		txCount:          2,
	}
	q := computeFees(in)
	if q.OverheadPercent != 10.0 {
		t.Errorf("overhead = %f, want 10.0", q.OverheadPercent)
	}
}

func TestComputeFeesZeroBase(t *testing.T) {
	q := computeFees(feeInputs{})
	if q.OverheadPercent != 0 {
		t.Errorf("overhead on zero base = %f, want 0", q.OverheadPercent)
	}
	if q.TotalCostCents != 0 {
		t.Errorf("total on empty inputs = %d, want 0", q.TotalCostCents)
	}
}

func TestNanoValueCents(t *testing.T) {
	tests := []struct {
		name       string
		nano       string
		decimals   int
		priceCents int64
		want       int64
	}{
		{"one TON at $5", "1000000000", 9, 500, 500},
		{"half TON at $5", "500000000", 9, 500, 250},
		{"tiny amount truncates", "1", 9, 500, 0},
		{"jetton 6 decimals", "2500000", 6, 100, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nano, _ := new(big.Int).SetString(tt.nano, 10)
			if got := nanoValueCents(nano, tt.decimals, tt.priceCents); got != tt.want {
				t.Errorf("nanoValueCents(%s) = %d, want %d", tt.nano, got, tt.want)
			}
		})
	}
}

func TestTonAmountCents(t *testing.T) {
	// 0.05 TON at $5.00 = 25 cents
	if got := tonAmountCents("0.05", 500); got != 25 {
		t.Errorf("tonAmountCents(0.05, 500) = %d, want 25", got)
	}
	if got := tonAmountCents("not-a-number", 500); got != 0 {
		t.Errorf("tonAmountCents on bad input = %d, want 0", got)
	}
}
