package domain_test

import (
	"testing"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		count int
		want  domain.Tier
	}{
		{-3, domain.TierGray},
		{0, domain.TierGray},
		{1, domain.TierBlue},
		{2, domain.TierYellow},
		{3, domain.TierOrange},
		{5, domain.TierOrange},
		{6, domain.TierRed},
		{1000, domain.TierRed},
	}
	for _, tt := range tests {
		if got := domain.TierFor(tt.count); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.count, got, tt.want)
		}
	}
}

func TestTier_Hex(t *testing.T) {
	if got := domain.TierRed.Hex(); got != "#e53935" {
		t.Errorf("red hex = %s", got)
	}
	if got := domain.Tier("plaid").Hex(); got != domain.TierGray.Hex() {
		t.Errorf("unknown tier should fall back to gray, got %s", got)
	}
}
