package identity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// delegationDomainSeparator prefixes every signed delegation so the
// signature cannot be replayed as a signature over a request.
var delegationDomainSeparator = []byte("\x1Aic-request-auth-delegation")

// Delegation authorizes PublicKey to act for the signer until Expiration.
// An empty Targets list leaves the delegation unrestricted.
type Delegation struct {
	PublicKey  []byte
	Expiration time.Time
	Targets    []Principal
}

// SignedDelegation is a Delegation with the signature of its issuer.
type SignedDelegation struct {
	Delegation Delegation
	Signature  []byte
}

// DelegationChain proves that the last delegation's key may act on behalf
// of PublicKey, the root identity.
type DelegationChain struct {
	Delegations []SignedDelegation
	PublicKey   []byte
}

// SignedBytes returns the bytes an issuer signs for d.
func (d Delegation) SignedBytes() []byte {
	h := sha256.New()
	writeField(h, d.PublicKey)
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], uint64(d.Expiration.UnixNano()))
	h.Write(exp[:])
	for _, t := range d.Targets {
		writeField(h, t)
	}

	out := make([]byte, 0, len(delegationDomainSeparator)+sha256.Size)
	out = append(out, delegationDomainSeparator...)
	return h.Sum(out)
}

func writeField(h interface{ Write([]byte) (int, error) }, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}

// CreateDelegationChain signs a delegation from `from` to the DER public key
// `to`. When previous is non-nil the new delegation extends it and the
// chain keeps previous' root key.
//
// Errors returned by from.Sign are returned as is.
func CreateDelegationChain(ctx context.Context, from Identity, to []byte, expiration time.Time, targets []Principal, previous *DelegationChain) (*DelegationChain, error) {
	d := Delegation{
		PublicKey:  append([]byte(nil), to...),
		Expiration: expiration,
		Targets:    targets,
	}

	sig, err := from.Sign(ctx, d.SignedBytes())
	if err != nil {
		return nil, err
	}

	chain := &DelegationChain{PublicKey: from.PublicKey()}
	if previous != nil {
		chain.PublicKey = previous.PublicKey
		chain.Delegations = append(chain.Delegations, previous.Delegations...)
	}
	chain.Delegations = append(chain.Delegations, SignedDelegation{Delegation: d, Signature: sig})
	return chain, nil
}

// Expiration returns the earliest expiration in the chain, or the zero time
// for an empty chain.
func (c *DelegationChain) Expiration() time.Time {
	var exp time.Time
	for i, sd := range c.Delegations {
		if i == 0 || sd.Delegation.Expiration.Before(exp) {
			exp = sd.Delegation.Expiration
		}
	}
	return exp
}

// SessionPublicKey returns the key the last delegation points to.
func (c *DelegationChain) SessionPublicKey() []byte {
	if len(c.Delegations) == 0 {
		return nil
	}
	return c.Delegations[len(c.Delegations)-1].Delegation.PublicKey
}

// Principal returns the principal of the root key.
func (c *DelegationChain) Principal() Principal {
	return SelfAuthenticating(c.PublicKey)
}

// ValidityCheck narrows what a valid chain must allow.
type ValidityCheck func(c *DelegationChain) error

// WithScope requires every restricted delegation to include target.
func WithScope(target Principal) ValidityCheck {
	return func(c *DelegationChain) error {
		for _, sd := range c.Delegations {
			if len(sd.Delegation.Targets) == 0 {
				continue
			}
			allowed := false
			for _, t := range sd.Delegation.Targets {
				if t.Equal(target) {
					allowed = true
					break
				}
			}
			if !allowed {
				return fmt.Errorf("%w: %s", ErrTargetNotAllowed, target.Text())
			}
		}
		return nil
	}
}

// ValidateDelegation returns why c is not usable at now, or nil.
//
// Signatures are verified link by link when the issuing key is ed25519.
// Keys of other types (passkeys) are left to the backend to verify.
func ValidateDelegation(c *DelegationChain, now time.Time, checks ...ValidityCheck) error {
	if c == nil || len(c.Delegations) == 0 {
		return ErrEmptyChain
	}
	if len(c.PublicKey) == 0 {
		return fmt.Errorf("%w: missing root public key", ErrMalformedChain)
	}

	issuer := c.PublicKey
	for i, sd := range c.Delegations {
		if !sd.Delegation.Expiration.After(now) {
			return fmt.Errorf("%w: delegation %d expired at %s", ErrDelegationExpired, i, sd.Delegation.Expiration.UTC().Format(time.RFC3339))
		}
		err := VerifySignature(issuer, sd.Delegation.SignedBytes(), sd.Signature)
		if err != nil && !errors.Is(err, ErrUnsupportedKey) {
			return fmt.Errorf("delegation %d: %w", i, err)
		}
		issuer = sd.Delegation.PublicKey
	}

	for _, check := range checks {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

// IsDelegationValid reports whether ValidateDelegation succeeds.
func IsDelegationValid(c *DelegationChain, now time.Time, checks ...ValidityCheck) bool {
	return ValidateDelegation(c, now, checks...) == nil
}

type jsonDelegation struct {
	Delegation struct {
		PublicKey  string   `json:"pubkey"`
		Expiration string   `json:"expiration"`
		Targets    []string `json:"targets,omitempty"`
	} `json:"delegation"`
	Signature string `json:"signature"`
}

type jsonChain struct {
	Delegations []jsonDelegation `json:"delegations"`
	PublicKey   string           `json:"publicKey"`
}

// MarshalJSON encodes the chain with hex byte fields and the expiration as
// hex nanoseconds since the Unix epoch.
func (c *DelegationChain) MarshalJSON() ([]byte, error) {
	out := jsonChain{
		Delegations: make([]jsonDelegation, 0, len(c.Delegations)),
		PublicKey:   hex.EncodeToString(c.PublicKey),
	}
	for _, sd := range c.Delegations {
		var jd jsonDelegation
		jd.Delegation.PublicKey = hex.EncodeToString(sd.Delegation.PublicKey)
		jd.Delegation.Expiration = strconv.FormatUint(uint64(sd.Delegation.Expiration.UnixNano()), 16)
		for _, t := range sd.Delegation.Targets {
			jd.Delegation.Targets = append(jd.Delegation.Targets, t.Text())
		}
		jd.Signature = hex.EncodeToString(sd.Signature)
		out.Delegations = append(out.Delegations, jd)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (c *DelegationChain) UnmarshalJSON(data []byte) error {
	var in jsonChain
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedChain, err)
	}

	root, err := hex.DecodeString(in.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %v", ErrMalformedChain, err)
	}

	delegations := make([]SignedDelegation, 0, len(in.Delegations))
	for i, jd := range in.Delegations {
		pub, err := hex.DecodeString(jd.Delegation.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: delegation %d pubkey: %v", ErrMalformedChain, i, err)
		}
		nanos, err := strconv.ParseUint(jd.Delegation.Expiration, 16, 64)
		if err != nil {
			return fmt.Errorf("%w: delegation %d expiration: %v", ErrMalformedChain, i, err)
		}
		sig, err := hex.DecodeString(jd.Signature)
		if err != nil {
			return fmt.Errorf("%w: delegation %d signature: %v", ErrMalformedChain, i, err)
		}
		var targets []Principal
		for _, t := range jd.Delegation.Targets {
			p, err := ParsePrincipal(t)
			if err != nil {
				return fmt.Errorf("%w: delegation %d target: %v", ErrMalformedChain, i, err)
			}
			targets = append(targets, p)
		}
		delegations = append(delegations, SignedDelegation{
			Delegation: Delegation{
				PublicKey:  pub,
				Expiration: time.Unix(0, int64(nanos)),
				Targets:    targets,
			},
			Signature: sig,
		})
	}

	c.PublicKey = root
	c.Delegations = delegations
	return nil
}

// ParseDelegationChain decodes a chain persisted with MarshalJSON.
func ParseDelegationChain(data []byte) (*DelegationChain, error) {
	var c DelegationChain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DelegationIdentity signs with a session key on behalf of the root of a
// delegation chain.
type DelegationIdentity struct {
	key   Identity
	chain *DelegationChain
}

// NewDelegationIdentity binds key to chain. The chain's last delegation
// must point at key.
func NewDelegationIdentity(key Identity, chain *DelegationChain) (*DelegationIdentity, error) {
	if chain == nil || len(chain.Delegations) == 0 {
		return nil, ErrEmptyChain
	}
	if !bytes.Equal(chain.SessionPublicKey(), key.PublicKey()) {
		return nil, ErrKeyMismatch
	}
	return &DelegationIdentity{key: key, chain: chain}, nil
}

// Principal returns the root principal.
func (d *DelegationIdentity) Principal() Principal {
	return d.chain.Principal()
}

// PublicKey returns the root public key.
func (d *DelegationIdentity) PublicKey() []byte {
	return d.chain.PublicKey
}

// Sign signs with the session key.
func (d *DelegationIdentity) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	return d.key.Sign(ctx, msg)
}

// Chain returns the delegation chain.
func (d *DelegationIdentity) Chain() *DelegationChain {
	return d.chain
}

// SessionKey returns the key that signs on behalf of the root.
func (d *DelegationIdentity) SessionKey() Identity {
	return d.key
}

// Ensure DelegationIdentity implements Identity
var _ Identity = (*DelegationIdentity)(nil)
