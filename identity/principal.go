package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	selfAuthenticatingSuffix = 0x02
	anonymousSuffix          = 0x04
	maxPrincipalLength       = 29
)

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is the canonical identifier of an identity. It is used as the
// key of user documents and as part of every cache key.
type Principal []byte

// SelfAuthenticating derives the principal of a DER encoded public key.
func SelfAuthenticating(derPublicKey []byte) Principal {
	sum := sha256.Sum224(derPublicKey)
	p := make(Principal, 0, len(sum)+1)
	p = append(p, sum[:]...)
	return append(p, selfAuthenticatingSuffix)
}

// AnonymousPrincipal returns the principal used by unauthenticated callers.
func AnonymousPrincipal() Principal {
	return Principal{anonymousSuffix}
}

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool {
	return len(p) == 1 && p[0] == anonymousSuffix
}

// Equal reports whether two principals hold the same bytes.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p, other)
}

// Text returns the textual form: a CRC32-prefixed lowercase base32 string
// split into groups of five characters.
func (p Principal) Text() string {
	buf := make([]byte, 4, 4+len(p))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(p))
	buf = append(buf, p...)

	encoded := strings.ToLower(principalEncoding.EncodeToString(buf))

	var b strings.Builder
	for i := 0; i < len(encoded); i += 5 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := min(i+5, len(encoded))
		b.WriteString(encoded[i:end])
	}
	return b.String()
}

// String implements fmt.Stringer.
func (p Principal) String() string {
	return p.Text()
}

// ParsePrincipal parses the textual form produced by Text.
func ParsePrincipal(text string) (Principal, error) {
	raw := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	decoded, err := principalEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPrincipal, text, err)
	}
	if len(decoded) < 4 || len(decoded)-4 > maxPrincipalLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrincipal, text)
	}

	p := Principal(decoded[4:])
	if binary.BigEndian.Uint32(decoded[:4]) != crc32.ChecksumIEEE(p) {
		return nil, fmt.Errorf("%w: %q", ErrChecksumMismatch, text)
	}
	if p.Text() != strings.ToLower(text) {
		return nil, fmt.Errorf("%w: %q is not in canonical form", ErrInvalidPrincipal, text)
	}
	return p, nil
}
