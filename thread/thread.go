// Package thread provides the C8 Thread/Checkpoint adapter: an in-memory
// implementation of core.Thread, grounded on runner/checkpoint.go's
// MemoryCheckpointer (deep-clone on both write and read to avoid aliasing
// between a reader mid-iteration and a writer appending the next message).
package thread

import (
	"fmt"
	"sync"

	"github.com/HPD-AI/agentrt/core"
)

// MemoryThread is a process-local core.Thread implementation. Real
// deployments would back this with durable storage; the core only ever
// consumes the interface (§1's "Persistence... out of scope").
type MemoryThread struct {
	mu          sync.RWMutex
	messages    []core.Message
	checkpoints map[string][]core.Message
}

func NewMemoryThread() *MemoryThread {
	return &MemoryThread{checkpoints: make(map[string][]core.Message)}
}

func (t *MemoryThread) Append(msg core.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg.Clone())
}

func (t *MemoryThread) Snapshot() []core.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

func (t *MemoryThread) CreateCheckpoint(afterMessageIndex int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if afterMessageIndex < 0 || afterMessageIndex > len(t.messages) {
		return "", fmt.Errorf("thread: checkpoint index %d out of range [0,%d]", afterMessageIndex, len(t.messages))
	}
	id := core.NewID()
	snapshot := make([]core.Message, afterMessageIndex)
	for i := 0; i < afterMessageIndex; i++ {
		snapshot[i] = t.messages[i].Clone()
	}
	t.checkpoints[id] = snapshot
	return id, nil
}

// Branch materializes a new MemoryThread seeded from a checkpoint, the
// caller-driven branching §4.8 says the core itself never performs.
func (t *MemoryThread) Branch(checkpointID string) (*MemoryThread, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot, ok := t.checkpoints[checkpointID]
	if !ok {
		return nil, fmt.Errorf("thread: unknown checkpoint %q", checkpointID)
	}
	branched := NewMemoryThread()
	for _, m := range snapshot {
		branched.messages = append(branched.messages, m.Clone())
	}
	return branched, nil
}

var _ core.Thread = (*MemoryThread)(nil)
