package locks

import (
	"strings"
	"testing"
)

func TestValidAccessCode(t *testing.T) {
	valid := []string{"ABCD", "lock-7", "A1_b2-C3", "ABCDEFGHJKLMNPQR"}
	for _, code := range valid {
		if !ValidAccessCode(code) {
			t.Errorf("expected %q to be valid", code)
		}
	}

	invalid := []string{"", "abc", "has space", "toolongtoolongtoo", "bad!chars", "äöå123"}
	for _, code := range invalid {
		if ValidAccessCode(code) {
			t.Errorf("expected %q to be invalid", code)
		}
	}
}

func TestGenerateAccessCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := generateAccessCode()
		if err != nil {
			t.Fatalf("generateAccessCode: %v", err)
		}
		if len(code) != generatedCodeLength {
			t.Fatalf("expected %d characters, got %q", generatedCodeLength, code)
		}
		if !ValidAccessCode(code) {
			t.Fatalf("generated code %q does not match the access code format", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("generated code %q contains %q outside the alphabet", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("generated codes are not random")
	}
}
