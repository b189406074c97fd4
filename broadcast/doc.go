// Package broadcast notifies sibling sessions that a sign-in happened
// elsewhere.
//
// A [Channel] carries opaque envelopes between the sessions of one origin.
// [MemoryBus] connects sessions of one process; the redis subpackage
// connects processes through Redis pub/sub. [Sync] layers the login
// notification protocol on a channel and never reacts to its own posts.
//
// Cross-session notification is best effort: it is a hint to reload the
// persisted session, not a replicated state transfer.
package broadcast
