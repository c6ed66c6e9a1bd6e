package ton

import (
	"math/big"
	"testing"
)

func TestToNano(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1", 9, "1000000000", false},
		{"5.5", 9, "5500000000", false},
		{"0.000000001", 9, "1", false},
		{"0.05", 9, "50000000", false},
		{" 2.25 ", 9, "2250000000", false},
		{"100", 6, "100000000", false},
		{"1.2345678999", 9, "1234567899", false}, // excess digits truncated
		{"0", 9, "0", false},
		{"", 9, "", true},
		{"1.2.3", 9, "", true},
		{"abc", 9, "", true},
	}

	for _, tt := range tests {
		got, err := ToNano(tt.amount, tt.decimals)
		if (err != nil) != tt.wantErr {
			t.Errorf("ToNano(%q, %d) err = %v, wantErr %v", tt.amount, tt.decimals, err, tt.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ToNano(%q, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestFromNano(t *testing.T) {
	tests := []struct {
		nano     string
		decimals int
		want     string
	}{
		{"1000000000", 9, "1"},
		{"5500000000", 9, "5.5"},
		{"1", 9, "0.000000001"},
		{"50000000", 9, "0.05"},
		{"0", 9, "0"},
		{"-2500000000", 9, "-2.5"},
	}

	for _, tt := range tests {
		n, _ := new(big.Int).SetString(tt.nano, 10)
		if got := FromNano(n, tt.decimals); got != tt.want {
			t.Errorf("FromNano(%s, %d) = %s, want %s", tt.nano, tt.decimals, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "5.5", "0.000000001", "123456.789"} {
		n, err := ToNano(s, 9)
		if err != nil {
			t.Fatalf("ToNano(%q): %v", s, err)
		}
		if got := FromNano(n, 9); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestMulBPS(t *testing.T) {
	n := big.NewInt(1_000_000_000)
	if got := MulBPS(n, 300); got.Int64() != 30_000_000 {
		t.Errorf("MulBPS(1e9, 300) = %d, want 30000000", got.Int64())
	}
	if got := MulBPS(n, 0); got.Int64() != 0 {
		t.Errorf("MulBPS(1e9, 0) = %d, want 0", got.Int64())
	}
}
