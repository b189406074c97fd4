// Package authclient owns the long-lived session client and its persisted state.
//
// A Client is reconstructed entirely from storage: the session key and the
// delegation chain persisted under storage.KeySessionKey and
// storage.KeyDelegation. When the chain is valid the client signs with a
// DelegationIdentity on behalf of the chain root; otherwise it is anonymous.
//
// Store holds the single live Client of a process. Creating a client always
// replaces the previous reference, and SafeCreateAuthClient purges any
// persisted session key first so a fresh unauthenticated session never reuses
// tampered key material.
//
// Clients do not detect idleness. Session expiry is enforced by the worker
// package, which re-reads storage on its own schedule.
package authclient
