// Package passkey wraps WebAuthn credentials as signing identities.
//
// The credential ceremonies themselves run in the platform authenticator,
// reached through the [Authenticator] interface. This package extracts the
// authenticator model (AAGUID) from authenticator data, exposes a
// credential as a root [identity.Identity] and looks up stored public keys
// by credential id.
package passkey
