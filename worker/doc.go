// Package worker polls the persisted session in the background and signals
// when it expires.
//
// The protocol is two small state machines exchanging typed messages. The
// main side sends StartAuthTimer when a user signs in and StopAuthTimer
// when the user is cleared. While running, the worker re-derives the
// session from storage on every tick and answers with either
// DelegationRemainingTime or a single SignOutAuthTimer, after which it stops.
//
// [Transition] and [Evaluate] hold the protocol logic as pure functions;
// [Worker] drives them from a goroutine.
package worker
