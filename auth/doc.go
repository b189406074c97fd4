// Package auth signs users in through interchangeable identity providers.
//
// Every provider option type is a variant of the sealed [Options] set and
// [NewProvider] maps each to its [Provider]. Providers report their steps
// through a [ProgressFunc]: each step emits in_progress before it starts
// and exactly one of success or error once it settles.
//
// Popup providers (Internet Identity, NFID) obtain a delegation for the
// session key held by the current session client. Passkey, dev and
// Ethereum providers derive a root identity locally, build a session
// delegation from it and persist it. Redirect providers (Google, GitHub)
// hand off to an OAuth redirect; [HandleRedirectCallback] completes the
// flow when the browser comes back.
//
// Whatever the provider, a successful sign-in ends with the user document
// loaded or created and published to the user store. A failed sign-in
// leaves the store unchanged.
package auth
