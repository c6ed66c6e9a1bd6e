package models

import "testing"

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{GiftStatusPendingPayment, GiftStatusSent, true},
		{GiftStatusSent, GiftStatusClaimed, true},

		// Scheduler outcomes
		{GiftStatusSent, GiftStatusExpired, true},
		{GiftStatusSent, GiftStatusExpiredEmpty, true},
		{GiftStatusSent, GiftStatusExpiredLowBalance, true},
		{GiftStatusSent, GiftStatusRefunded, true},

		// No regressions
		{GiftStatusSent, GiftStatusPendingPayment, false},
		{GiftStatusClaimed, GiftStatusSent, false},
		{GiftStatusRefunded, GiftStatusSent, false},

		// Terminal states never overwrite each other
		{GiftStatusClaimed, GiftStatusRefunded, false},
		{GiftStatusRefunded, GiftStatusClaimed, false},
		{GiftStatusExpiredEmpty, GiftStatusRefunded, false},
		{GiftStatusExpiredLowBalance, GiftStatusClaimed, false},
		{GiftStatusExpired, GiftStatusRefunded, false},

		// No skipping the funded gate
		{GiftStatusPendingPayment, GiftStatusClaimed, false},
		{GiftStatusPendingPayment, GiftStatusRefunded, false},
		{GiftStatusPendingPayment, GiftStatusExpiredEmpty, false},

		// Unknown statuses
		{"nonexistent", GiftStatusSent, false},
		{GiftStatusSent, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		GiftStatusPendingPayment, GiftStatusSent,
		GiftStatusClaimed, GiftStatusExpired, GiftStatusExpiredEmpty,
		GiftStatusExpiredLowBalance, GiftStatusRefunded,
	}

	for _, status := range allStatuses {
		if _, ok := ValidGiftTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidGiftTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{
		GiftStatusClaimed, GiftStatusExpired, GiftStatusExpiredEmpty,
		GiftStatusExpiredLowBalance, GiftStatusRefunded,
	}
	for _, status := range terminal {
		if !IsTerminalStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if transitions := ValidGiftTransitions[status]; len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestSwapStatusAdvances(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{GiftSwapStatusNone, GiftSwapStatusPrepared, true},
		{GiftSwapStatusPrepared, GiftSwapStatusPendingSignature, true},
		{GiftSwapStatusPendingSignature, GiftSwapStatusCompleted, true},

		// A failure never advances the gift-level status
		{GiftSwapStatusPendingSignature, GiftSwapStatusFailed, false},
		{GiftSwapStatusNone, GiftSwapStatusFailed, false},

		// No backward moves
		{GiftSwapStatusCompleted, GiftSwapStatusPendingSignature, false},
		{GiftSwapStatusPendingSignature, GiftSwapStatusPrepared, false},
		{GiftSwapStatusPrepared, GiftSwapStatusPrepared, false},
	}

	for _, tt := range tests {
		if got := SwapStatusAdvances(tt.from, tt.to); got != tt.expected {
			t.Errorf("SwapStatusAdvances(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
		}
	}
}
