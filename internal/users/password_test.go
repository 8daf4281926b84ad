package users

import (
	"strings"
	"testing"
)

func TestHashPasswordAndVerify(t *testing.T) {
	password := "Perc!ussion9"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if hash == password {
		t.Fatal("expected hash to differ from password")
	}

	if !VerifyPassword(hash, password) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected password mismatch to fail")
	}
}

func TestVerifyPasswordWithInvalidHash(t *testing.T) {
	if VerifyPassword("not-a-valid-hash", "password") {
		t.Fatal("expected invalid hash to fail verification")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Sh0rt!", false},
		{"alllowercase1!", false},
		{"ALLUPPERCASE1!", false},
		{"NoDigitsHere!", false},
		{"NoSymbols123", false},
		{"Good#Pass123", true},
		{"Ünïcode#Pass9", true},
		{"Aa1!" + strings.Repeat("x", 68), true},
		{"Aa1!" + strings.Repeat("x", 69), false},
		// 36 runes but 72+ bytes once the accented letters are encoded.
		{"Aa1!" + strings.Repeat("é", 35), false},
	}
	for _, tc := range tests {
		reason := ValidatePasswordStrength(tc.password)
		if (reason == "") != tc.ok {
			t.Fatalf("ValidatePasswordStrength(%q) = %q, want ok=%v", tc.password, reason, tc.ok)
		}
	}
}
