package identity

import (
	"errors"
	"testing"
)

func TestPrincipal_KnownTextForms(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		want string
	}{
		{name: "anonymous", p: AnonymousPrincipal(), want: "2vxsx-fae"},
		{name: "management", p: Principal{}, want: "aaaaa-aa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePrincipal_RoundTrip(t *testing.T) {
	id, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519() error = %v", err)
	}

	text := id.Principal().Text()
	parsed, err := ParsePrincipal(text)
	if err != nil {
		t.Fatalf("ParsePrincipal(%q) error = %v", text, err)
	}
	if !parsed.Equal(id.Principal()) {
		t.Errorf("ParsePrincipal(%q) = %x, want %x", text, parsed, id.Principal())
	}
	if len(parsed) != 29 {
		t.Errorf("self-authenticating principal length = %d, want 29", len(parsed))
	}
}

func TestParsePrincipal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "not base32", text: "!!!!!", want: ErrInvalidPrincipal},
		{name: "bad checksum", text: "2vxsx-fbe", want: ErrChecksumMismatch},
		{name: "too short", text: "aa", want: ErrInvalidPrincipal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrincipal(tt.text)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParsePrincipal(%q) error = %v, want %v", tt.text, err, tt.want)
			}
		})
	}
}

func TestPrincipal_IsAnonymous(t *testing.T) {
	if !AnonymousPrincipal().IsAnonymous() {
		t.Error("AnonymousPrincipal().IsAnonymous() = false")
	}
	if IsAnonymous(AnonymousIdentity{}) != true {
		t.Error("IsAnonymous(AnonymousIdentity{}) = false")
	}
	if !IsAnonymous(nil) {
		t.Error("IsAnonymous(nil) = false")
	}

	id, _ := DevIdentity("alice")
	if IsAnonymous(id) {
		t.Error("IsAnonymous(dev identity) = true")
	}
}
