package core

// Thread is the C8 adapter contract the loop consumes: an append-only
// ordered message sequence with an optional checkpoint hook. Persistence,
// branching, and storage are out of scope for the core (§1) — this is only
// the interface shape, specified as a thin adapter per §4.8.
type Thread interface {
	// Append adds one message. Must be atomic with respect to concurrent
	// Snapshot calls made by the next iteration.
	Append(msg Message)

	// Snapshot returns the ordered message list at the current checkpoint.
	Snapshot() []Message

	// CreateCheckpoint is optional; the core only emits a structured event
	// when asked to branch, it never branches itself.
	CreateCheckpoint(afterMessageIndex int) (checkpointID string, err error)
}
