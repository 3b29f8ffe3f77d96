package validation

import (
	"testing"
)

func TestIsValidEVMAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", true},
		{"0x0000000000000000000000000000000000000000", true},
		{"742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", false},    // missing 0x
		{"0x742d35Cc6634C0532925a3b844Bc9e7595f0bE", false},    // too short
		{"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0ff", false}, // too long
		{"0xZZZd35Cc6634C0532925a3b844Bc9e7595f0bEb0", false},  // non-hex
		{"", false},
	}
	for _, tc := range tests {
		result := IsValidEVMAddress(tc.addr)
		if result != tc.valid {
			t.Errorf("IsValidEVMAddress(%q) = %v, want %v", tc.addr, result, tc.valid)
		}
	}
}

func TestIsSupportedNetwork(t *testing.T) {
	tests := []struct {
		network string
		valid   bool
	}{
		{"ethereum", true},
		{"bsc", true},
		{"solana", true},
		{"polygon", true},
		{"other", true},
		{"tron", false},
		{"BSC", false}, // case-sensitive; callers lowercase first
		{"", false},
	}
	for _, tc := range tests {
		if got := IsSupportedNetwork(tc.network); got != tc.valid {
			t.Errorf("IsSupportedNetwork(%q) = %v, want %v", tc.network, got, tc.valid)
		}
	}
}

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0  ", "0x742d35cc6634c0532925a3b844bc9e7595f0beb0"},
		{"742d35cc6634c0532925a3b844bc9e7595f0beb0", "0x742d35cc6634c0532925a3b844bc9e7595f0beb0"},
		{"0xABCDEF", "0xabcdef"},
	}
	for _, tc := range tests {
		if got := SanitizeAddress(tc.in); got != tc.want {
			t.Errorf("SanitizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"  hello  ", 100, "hello"},
		{"truncated", 5, "trunc"},
		{"null\x00byte", 100, "nullbyte"},
	}
	for _, tc := range tests {
		if got := SanitizeString(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("name", ""),
		Required("network", "bsc"),
		ValidNetwork("network", "bsc"),
		ValidAddress("contract", "not-an-address"),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "name" {
		t.Errorf("expected first error on name, got %s", errs[0].Field)
	}
	if errs[1].Field != "contract" {
		t.Errorf("expected second error on contract, got %s", errs[1].Field)
	}
}

func TestValidNetwork(t *testing.T) {
	if err := ValidNetwork("network", "tron")(); err == nil {
		t.Error("expected error for unsupported network")
	}
	if err := ValidNetwork("network", "ethereum")(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	// empty values are left to Required
	if err := ValidNetwork("network", "")(); err != nil {
		t.Errorf("unexpected error for empty value: %v", err)
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("description", "short", 10)(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := MaxLength("description", "this is far too long", 10)(); err == nil {
		t.Error("expected error for oversized value")
	}
}
