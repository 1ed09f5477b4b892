package facematch

import (
	"errors"
	"testing"
)

func TestNormalizeIdentityInput(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{" 123 ", "123"},
		{"１２３", "123"},
		{"<@４２>", "<@42>"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeIdentityInput(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeIdentityInput(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		input   string
		want    Identity
		wantErr bool
	}{
		{"42", 42, false},
		{"<@42>", 42, false},
		{"<@!42>", 42, false},
		{" <@!1234567890123> ", 1234567890123, false},
		{"１２３", 123, false},
		{"-7", -7, false},
		{"", 0, true},
		{"abc", 0, true},
		{"<@abc>", 0, true},
		{"<@42", 0, true},
		{"4.2", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIdentity(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("ParseIdentity(%q) error = %v, want ErrInvalidInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentity(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseIdentity(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
