package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected length 16, got %d", len(hex))
	}
	for _, ch := range hex {
		if !strings.ContainsRune("0123456789abcdef", ch) {
			t.Errorf("unexpected character %q in hex string", ch)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
	if GenerateRandomHex(-5) != "" {
		t.Error("expected empty string for negative length")
	}
}

func TestGenerateCandidateID(t *testing.T) {
	id := GenerateCandidateID()
	if !strings.HasPrefix(id, "cand_") {
		t.Errorf("expected cand_ prefix, got %q", id)
	}
	other := GenerateCandidateID()
	if id == other {
		t.Errorf("expected distinct IDs, got %q twice", id)
	}
}
