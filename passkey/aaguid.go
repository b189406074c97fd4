package passkey

import (
	"encoding/hex"
	"strings"
)

// AAGUID location inside authenticator data: after the 32-byte rp id hash,
// the flags byte and the 4-byte signature counter.
const (
	aaguidOffset = 37
	aaguidLength = 16
)

// ExtractAAGUID returns the authenticator model id of authData as a
// lowercase hyphenated string.
func ExtractAAGUID(authData []byte) (string, error) {
	if len(authData) < aaguidOffset+aaguidLength {
		return "", ErrInvalidAuthData
	}
	raw := authData[aaguidOffset : aaguidOffset+aaguidLength]

	zero := true
	for _, b := range raw {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return "", ErrUnknownProvider
	}

	h := hex.EncodeToString(raw)
	return strings.Join([]string{h[0:8], h[8:12], h[12:16], h[16:20], h[20:32]}, "-"), nil
}

// ProviderInfo describes a known passkey provider.
type ProviderInfo struct {
	AAGUID string
	Name   string
}

var knownProviders = map[string]string{
	"ea9b8d66-4d01-1d21-3ce4-b6b48cb575d4": "Google Password Manager",
	"adce0002-35bc-c60a-648b-0b25f1f05503": "Chrome on Mac",
	"fbfc3007-154e-4ecc-8c0b-6e020557d7bd": "iCloud Keychain",
	"dd4ec289-e01d-41c9-bb89-70fa845d4bf2": "iCloud Keychain (Managed)",
	"08987058-cadc-4b81-b6e1-30de50dcbe96": "Windows Hello",
	"9ddd1817-af5a-4672-a2b9-3e3dd95000a9": "Windows Hello",
	"bada5566-a7aa-401f-bd96-45619a55120d": "1Password",
	"d548826e-79b4-db40-a3d8-11116f7e8349": "Bitwarden",
	"531126d6-e717-415c-9320-3d9aa6981239": "Dashlane",
	"b84e4048-15dc-4dd0-8640-f4f60813c8af": "NordPass",
}

// ProviderForAAGUID returns the provider registered for aaguid.
func ProviderForAAGUID(aaguid string) (ProviderInfo, bool) {
	aaguid = strings.ToLower(aaguid)
	name, ok := knownProviders[aaguid]
	if !ok {
		return ProviderInfo{}, false
	}
	return ProviderInfo{AAGUID: aaguid, Name: name}, true
}
