package services

import (
	"testing"

	"github.com/giftlink/backend/internal/models"
)

func TestSwapsSettled(t *testing.T) {
	ops := func(statuses ...string) []models.SwapOperation {
		out := make([]models.SwapOperation, len(statuses))
		for i, s := range statuses {
			out[i].Status = s
		}
		return out
	}

	tests := []struct {
		name string
		ops  []models.SwapOperation
		want bool
	}{
		{"no swaps", nil, true},
		{"single completed", ops(models.SwapStatusCompleted), true},
		{"completed and failed", ops(models.SwapStatusCompleted, models.SwapStatusFailed), true},
		{"prepared blocks completion", ops(models.SwapStatusPrepared), false},
		{"awaiting signature blocks completion", ops(models.SwapStatusCompleted, models.SwapStatusPendingSignature), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := swapsSettled(tt.ops); got != tt.want {
				t.Errorf("swapsSettled = %v, want %v", got, tt.want)
			}
		})
	}
}
