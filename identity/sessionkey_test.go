package identity

import (
	"context"
	"errors"
	"testing"
)

func TestSessionKey_BinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	key, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey() error = %v", err)
	}

	data, err := key.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	restored, err := SessionKeyFromBinary(data)
	if err != nil {
		t.Fatalf("SessionKeyFromBinary() error = %v", err)
	}
	if !restored.Principal().Equal(key.Principal()) {
		t.Errorf("restored principal = %s, want %s", restored.Principal(), key.Principal())
	}

	sig, err := restored.Sign(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := VerifySignature(key.PublicKey(), []byte("payload"), sig); err != nil {
		t.Errorf("VerifySignature() error = %v", err)
	}
}

func TestSessionKey_Release(t *testing.T) {
	key, _ := GenerateSessionKey()
	key.Release()

	if _, err := key.Sign(context.Background(), []byte("x")); !errors.Is(err, ErrSessionKeyReleased) {
		t.Errorf("Sign() after Release error = %v, want ErrSessionKeyReleased", err)
	}
}

func TestSessionKeyFromBinary_Malformed(t *testing.T) {
	if _, err := SessionKeyFromBinary([]byte("not json")); !errors.Is(err, ErrMalformedKey) {
		t.Errorf("error = %v, want ErrMalformedKey", err)
	}
	if _, err := SessionKeyFromBinary([]byte(`["00","abcd"]`)); !errors.Is(err, ErrMalformedKey) {
		t.Errorf("short seed error = %v, want ErrMalformedKey", err)
	}
}

func TestDevIdentity_Deterministic(t *testing.T) {
	a, _ := DevIdentity("carol")
	b, _ := DevIdentity("carol")
	c, _ := DevIdentity("dave")
	d, _ := DevIdentity("")
	e, _ := DevIdentity(DefaultDevIdentifier)

	if !a.Principal().Equal(b.Principal()) {
		t.Error("same identifier should yield the same principal")
	}
	if a.Principal().Equal(c.Principal()) {
		t.Error("different identifiers should yield different principals")
	}
	if !d.Principal().Equal(e.Principal()) {
		t.Error("empty identifier should fall back to the default")
	}
}
