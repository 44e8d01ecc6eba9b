package usecase

import (
	"strings"
	"testing"
)

func TestGenerateVoucherCode(t *testing.T) {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := generateVoucherCode()
		if err != nil {
			t.Fatalf("generateVoucherCode: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(chars, r) {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
		seen[code] = true
	}
	// With ~2.8e11 possible codes, 1000 draws colliding would point at a
	// broken generator rather than bad luck.
	if len(seen) != 1000 {
		t.Errorf("expected 1000 distinct codes, got %d", len(seen))
	}
}
