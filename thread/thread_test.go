package thread

import (
	"testing"

	"github.com/HPD-AI/agentrt/core"
)

func TestMemoryThreadAppendAndSnapshot(t *testing.T) {
	th := NewMemoryThread()
	th.Append(core.UserMessage("m1", "hello"))
	th.Append(core.UserMessage("m2", "world"))

	snap := th.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snap))
	}
	if snap[0].TextContent() != "hello" || snap[1].TextContent() != "world" {
		t.Fatalf("unexpected snapshot contents: %+v", snap)
	}
}

func TestMemoryThreadSnapshotIsDeepCopy(t *testing.T) {
	th := NewMemoryThread()
	th.Append(core.UserMessage("m1", "hello"))

	snap := th.Snapshot()
	snap[0].Content[0].Text = "mutated"

	again := th.Snapshot()
	if again[0].TextContent() != "hello" {
		t.Fatalf("mutating a snapshot must not affect the thread's own state")
	}
}

func TestMemoryThreadCheckpointAndBranch(t *testing.T) {
	th := NewMemoryThread()
	th.Append(core.UserMessage("m1", "one"))
	th.Append(core.UserMessage("m2", "two"))

	id, err := th.CreateCheckpoint(1)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	th.Append(core.UserMessage("m3", "three"))

	branched, err := th.Branch(id)
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	snap := branched.Snapshot()
	if len(snap) != 1 || snap[0].TextContent() != "one" {
		t.Fatalf("expected branch to contain only messages up to the checkpoint, got %+v", snap)
	}

	// The original thread is unaffected by the branch.
	orig := th.Snapshot()
	if len(orig) != 3 {
		t.Fatalf("expected original thread to retain all 3 messages, got %d", len(orig))
	}
}

func TestMemoryThreadCheckpointOutOfRange(t *testing.T) {
	th := NewMemoryThread()
	th.Append(core.UserMessage("m1", "one"))

	if _, err := th.CreateCheckpoint(5); err == nil {
		t.Fatalf("expected an error for an out-of-range checkpoint index")
	}
	if _, err := th.CreateCheckpoint(-1); err == nil {
		t.Fatalf("expected an error for a negative checkpoint index")
	}
}

func TestMemoryThreadBranchUnknownCheckpoint(t *testing.T) {
	th := NewMemoryThread()
	if _, err := th.Branch("nonexistent"); err == nil {
		t.Fatalf("expected an error branching from an unknown checkpoint")
	}
}
