package process

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestRun_BasicExecution verifies basic command execution.
func TestRun_BasicExecution(t *testing.T) {
	res, err := Run(Command(context.Background(), "", "echo", "hello"), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "hello") {
		t.Errorf("Expected stdout to contain 'hello', got: %s", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", res.ExitCode)
	}
}

// TestRun_LargeOutput verifies concurrent pipe draining prevents deadlock
// when output exceeds the pipe buffer.
func TestRun_LargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// ~256KB on stdout and some stderr interleaved
	line := `for i in $(seq 1 16384); do echo "line $i padding-padding"; done; echo done >&2`
	res, err := Run(Shell(ctx, "", line), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(res.Stdout)), "\n")
	if len(lines) != 16384 {
		t.Errorf("Expected 16384 lines, got %d", len(lines))
	}
	if !strings.Contains(string(res.Stderr), "done") {
		t.Errorf("Expected stderr to contain 'done', got %q", res.Stderr)
	}
}

// TestRun_ExitCode verifies non-zero exits are reported in both Result and error.
func TestRun_ExitCode(t *testing.T) {
	res, err := Run(Shell(context.Background(), "", "echo oops >&2; exit 3"), nil)
	if err == nil {
		t.Fatal("Expected error for non-zero exit")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("Expected wrapped *exec.ExitError, got %T", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", res.ExitCode)
	}
	if got := res.Combined(); !strings.Contains(got, "oops") {
		t.Errorf("Expected combined output to contain stderr, got %q", got)
	}
}

// TestRun_ContextCancellation verifies the process group is killed on timeout.
func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(Shell(ctx, "", "sleep 30 & sleep 30"), nil)
	if err == nil {
		t.Fatal("Expected error due to context cancellation, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Cancellation took too long: %v", elapsed)
	}
}

// TestManager_TrackAndKillAll verifies Manager tracks and terminates processes.
func TestManager_TrackAndKillAll(t *testing.T) {
	pm := NewManager()
	cmd := Command(context.Background(), "", "sleep", "300")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	pm.Track(cmd)

	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll returned error: %v", err)
	}

	err := cmd.Wait()
	if err == nil {
		t.Fatal("Expected process to be killed (non-nil error), got nil")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && !status.Signaled() {
			t.Errorf("Expected process to be signaled, got exit status: %v", status)
		}
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", pm.Count())
	}
}

// TestRun_TracksWhileRunning verifies Run registers the process for its lifetime only.
func TestRun_TracksWhileRunning(t *testing.T) {
	pm := NewManager()
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(Command(context.Background(), "", "sleep", "0.3"), pm)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pm.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pm.Count() != 1 {
		t.Errorf("Expected process tracked while running, got %d", pm.Count())
	}

	<-done
	if pm.Count() != 0 {
		t.Errorf("Expected process untracked after exit, got %d", pm.Count())
	}
}
