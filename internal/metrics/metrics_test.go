package metrics

import (
	"sync"
	"testing"
)

func TestIncExecution(t *testing.T) {
	before, beforeBy := ExecutionSnapshot()

	IncExecution("completed")
	IncExecution("completed")
	IncExecution("failed")
	IncExecution("") // maps to unknown

	total, by := ExecutionSnapshot()
	if total != before+4 {
		t.Fatalf("expected total +4, got %d -> %d", before, total)
	}
	if by["completed"] != beforeBy["completed"]+2 {
		t.Fatalf("expected completed +2")
	}
	if by["failed"] != beforeBy["failed"]+1 {
		t.Fatalf("expected failed +1")
	}
	if by["unknown"] != beforeBy["unknown"]+1 {
		t.Fatalf("expected unknown +1")
	}
}

func TestIncRateLimitDrop(t *testing.T) {
	before, beforeBy := RateLimitSnapshot()

	IncRateLimitDrop("global")
	IncRateLimitDrop("")

	total, by := RateLimitSnapshot()
	if total != before+2 {
		t.Fatalf("expected total +2, got %d -> %d", before, total)
	}
	if by["global"] != beforeBy["global"]+2 {
		t.Fatalf("expected both drops under global")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	IncExecution("completed")
	_, by := ExecutionSnapshot()
	by["completed"] = 0

	_, again := ExecutionSnapshot()
	if again["completed"] == 0 {
		t.Fatal("mutating a snapshot must not affect the counters")
	}
}

func TestIncExecutionConcurrent(t *testing.T) {
	before, _ := ExecutionSnapshot()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncExecution("completed")
		}()
	}
	wg.Wait()

	total, _ := ExecutionSnapshot()
	if total != before+50 {
		t.Fatalf("expected total +50, got %d -> %d", before, total)
	}
}
