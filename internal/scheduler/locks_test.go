package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestAgentLockManager_BasicLockUnlock verifies basic lock/unlock operations.
func TestAgentLockManager_BasicLockUnlock(t *testing.T) {
	mgr := NewAgentLockManager()

	mgr.Lock("ENGINEER")
	mgr.Unlock("ENGINEER")

	// Should be able to lock again after unlock
	mgr.Lock("ENGINEER")
	mgr.Unlock("ENGINEER")
}

// TestAgentLockManager_TryLockBusy verifies TryLock fails while the agent is held.
func TestAgentLockManager_TryLockBusy(t *testing.T) {
	mgr := NewAgentLockManager()

	if !mgr.TryLock("QA") {
		t.Fatal("expected first TryLock to succeed")
	}
	if mgr.TryLock("QA") {
		t.Fatal("expected second TryLock to fail while held")
	}
	mgr.Unlock("QA")

	if !mgr.TryLock("QA") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	mgr.Unlock("QA")
}

// TestAgentLockManager_DifferentAgentsConcurrent verifies distinct agents don't block each other.
func TestAgentLockManager_DifferentAgentsConcurrent(t *testing.T) {
	mgr := NewAgentLockManager()
	var wg sync.WaitGroup
	var aLocked, bLocked atomic.Bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		mgr.Lock("ARCHITECT")
		aLocked.Store(true)
		time.Sleep(50 * time.Millisecond)
		mgr.Unlock("ARCHITECT")
	}()
	go func() {
		defer wg.Done()
		mgr.Lock("ENGINEER")
		bLocked.Store(true)
		time.Sleep(50 * time.Millisecond)
		mgr.Unlock("ENGINEER")
	}()

	time.Sleep(20 * time.Millisecond)
	if !aLocked.Load() || !bLocked.Load() {
		t.Error("expected both agents to hold their locks concurrently")
	}
	wg.Wait()
}

// TestAgentLockManager_ConcurrentTryLock verifies only one of many racing callers wins.
func TestAgentLockManager_ConcurrentTryLock(t *testing.T) {
	mgr := NewAgentLockManager()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if mgr.TryLock("ENGINEER") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("expected exactly 1 winner, got %d", got)
	}
}

// TestAgentLockManager_UnlockUnknown verifies unlocking an unknown agent is a no-op.
func TestAgentLockManager_UnlockUnknown(t *testing.T) {
	mgr := NewAgentLockManager()
	mgr.Unlock("nobody")
}
