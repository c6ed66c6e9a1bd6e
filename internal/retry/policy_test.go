package retry

import (
	"testing"
	"time"
)

func TestExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3}

	tests := []struct {
		attempts int
		expected bool
	}{
		{0, false},
		{1, false},
		{2, false},
		{3, true},
		{4, true},
	}

	for _, tt := range tests {
		if got := p.Exhausted(tt.attempts); got != tt.expected {
			t.Errorf("Exhausted(%d) = %v, want %v", tt.attempts, got, tt.expected)
		}
	}
}

func TestRemaining(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	if got := p.Remaining(1); got != 2 {
		t.Errorf("Remaining(1) = %d, want 2", got)
	}
	if got := p.Remaining(5); got != 0 {
		t.Errorf("Remaining(5) = %d, want 0", got)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // capped
		{5, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
