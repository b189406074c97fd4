package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// SessionKey is the ephemeral key pair a session signs with.
//
// The private seed lives in a memguard enclave and is decrypted into locked
// memory only for the duration of a signature.
type SessionKey struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	der     []byte
}

// GenerateSessionKey creates a random session key.
func GenerateSessionKey() (*SessionKey, error) {
	enclave := memguard.NewEnclaveRandom(ed25519.SeedSize)
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("identity: open session key: %w", err)
	}
	defer buf.Destroy()
	return newSessionKey(enclave, buf.Bytes())
}

func newSessionKey(enclave *memguard.Enclave, seed []byte) (*SessionKey, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	defer wipe(priv)

	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("identity: encode public key: %w", err)
	}
	return &SessionKey{enclave: enclave, der: der}, nil
}

// Principal returns the principal of the session key itself.
func (k *SessionKey) Principal() Principal {
	return SelfAuthenticating(k.der)
}

// PublicKey returns the DER encoded public key.
func (k *SessionKey) PublicKey() []byte {
	return k.der
}

// Sign signs msg with the sealed private key.
func (k *SessionKey) Sign(_ context.Context, msg []byte) ([]byte, error) {
	k.mu.RLock()
	enclave := k.enclave
	k.mu.RUnlock()
	if enclave == nil {
		return nil, ErrSessionKeyReleased
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("identity: open session key: %w", err)
	}
	defer buf.Destroy()

	priv := ed25519.NewKeyFromSeed(buf.Bytes())
	defer wipe(priv)
	return ed25519.Sign(priv, msg), nil
}

// Release drops the sealed key. Further signatures fail.
func (k *SessionKey) Release() {
	k.mu.Lock()
	k.enclave = nil
	k.mu.Unlock()
}

// MarshalBinary exports the key pair for persistence as a JSON pair of
// hex strings: the DER public key and the private seed.
func (k *SessionKey) MarshalBinary() ([]byte, error) {
	k.mu.RLock()
	enclave := k.enclave
	k.mu.RUnlock()
	if enclave == nil {
		return nil, ErrSessionKeyReleased
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("identity: open session key: %w", err)
	}
	defer buf.Destroy()

	return json.Marshal([2]string{hex.EncodeToString(k.der), hex.EncodeToString(buf.Bytes())})
}

// SessionKeyFromBinary restores a key exported by MarshalBinary.
func SessionKeyFromBinary(data []byte) (*SessionKey, error) {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	seed, err := hex.DecodeString(pair[1])
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrMalformedKey
	}

	key, err := newSessionKey(memguard.NewEnclave(append([]byte(nil), seed...)), seed)
	wipe(seed)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(key.der) != pair[0] {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrMalformedKey)
	}
	return key, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Ensure SessionKey implements Identity
var _ Identity = (*SessionKey)(nil)
