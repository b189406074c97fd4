package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"valid key", "certified#stock:aaaaa-aa:sat-1", nil},
		{"too long", strings.Repeat("x", MaxKeyLength+1), ErrKeyTooLong},
		{"contains newline", "key\nwith\nnewlines", ErrInvalidKey},
		{"contains carriage return", "key\rwith\rreturns", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"max length exactly", strings.Repeat("x", MaxKeyLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name    string
		parts   []string
		want    string
		wantErr error
	}{
		{"single part", []string{"a"}, "a", nil},
		{"joined", []string{"certified#stock", "2vxsx-fae", "sat"}, "certified#stock:2vxsx-fae:sat", nil},
		{"empty part", []string{"a", "", "b"}, "", ErrInvalidKey},
		{"no parts", nil, "", ErrInvalidKey},
		{"newline part", []string{"a\nb"}, "", ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.parts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Key() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}
