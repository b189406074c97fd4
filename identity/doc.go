// Package identity provides the cryptographic principals used by a session:
// root identities, ephemeral session keys, delegation chains and the
// identity that signs on behalf of a root through such a chain.
//
// The package does not implement any remote protocol. It produces signatures
// and serializable proofs that transports attach to outgoing calls.
//
// # Session delegations
//
// [BuildSessionDelegation] turns any root [Identity] (an ed25519 key derived
// from a wallet signature, a passkey, a local development seed) into a fresh
// [SessionKey] and a [DelegationChain] expiring after a bounded time to live.
// Persisting the pair is the caller's job.
package identity
