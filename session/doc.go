// Package session is the application entry point: it wires the session
// client, user, agent and actor stores, the cross-session sync and the
// expiry worker behind one [Manager].
//
// A Manager owns one session. Start restores it from storage, SignIn and
// SignUp establish it through an identity provider, and SignOut tears it
// down so that no cached agent or actor outlives the identity it was built
// for.
package session
