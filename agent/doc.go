// Package agent provides remote call handles bound to an identity and a
// satellite, and the stores that cache them.
//
// An [Agent] signs requests for one identity against one host. An [Actor]
// adds an [Interface] descriptor and a [CallStrategy] on top of an agent and
// addresses one satellite.
//
// [AgentStore] and [ActorStore] memoize handles per key, including
// creations still in flight, so concurrent first calls share one handle.
// Both are reset on sign-out so the next handle binds to whatever identity
// is active afterward.
package agent
