package scheduler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultChain(t *testing.T) *Chain {
	t.Helper()
	bp, err := CompileBlueprint(DefaultBlueprint())
	require.NoError(t, err)
	return NewChain(bp)
}

func TestChain_DesignExpandsToBlueprint(t *testing.T) {
	c := defaultChain(t)

	got := c.FollowUps(CapabilityArchitect, "Design: a snake game", "done")
	want := []FollowUp{
		{Task: "Implement: core modules for a snake game", HeadOfLine: true},
		{Task: "Implement: entry point for a snake game"},
		{Task: "Implement: configuration and helpers for a snake game"},
		{Task: "Implement: unit tests for a snake game"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("follow-ups mismatch (-want +got):\n%s", diff)
	}
}

func TestChain_DesignFollowUpsLandInQueueOrder(t *testing.T) {
	c := defaultChain(t)
	q := NewQueue()
	require.NoError(t, q.Enqueue("Verify: pending", 0))

	for _, f := range c.FollowUps(CapabilityArchitect, "Design: app", "ok") {
		require.NoError(t, q.Enqueue(f.Task, f.Priority()))
	}

	want := []string{
		"Implement: core modules for app",
		"Verify: pending",
		"Implement: entry point for app",
		"Implement: configuration and helpers for app",
		"Implement: unit tests for app",
	}
	if diff := cmp.Diff(want, q.Snapshot()); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}
}

func TestChain_ArchitectNonDesignTask(t *testing.T) {
	c := defaultChain(t)
	assert.Empty(t, c.FollowUps(CapabilityArchitect, "Review the backlog", "ok"))
}

func TestChain_ImplementYieldsVerify(t *testing.T) {
	c := defaultChain(t)
	got := c.FollowUps(CapabilityEngineer, "Implement: core modules for app", "wrote files")
	assert.Equal(t, []FollowUp{{Task: "Verify: core modules for app", HeadOfLine: true}}, got)
}

func TestChain_EngineerCreateYieldsNothing(t *testing.T) {
	c := defaultChain(t)
	assert.Empty(t, c.FollowUps(CapabilityEngineer, "Create a README", "ok"))
}

func TestChain_QAFailureYieldsFix(t *testing.T) {
	c := defaultChain(t)
	result := strings.Repeat("x", 150) + " 2 tests FAILED"

	got := c.FollowUps(CapabilityQA, "Verify: core modules for app", result)
	require.Len(t, got, 1)
	assert.True(t, got[0].HeadOfLine)
	assert.True(t, strings.HasPrefix(got[0].Task, "Fix: core modules for app | QA output: "))
	assert.True(t, strings.HasSuffix(got[0].Task, tail(result, 100)))
	assert.Equal(t, IntentBuild, Classify(got[0].Task))
}

func TestChain_QASuccessYieldsNothing(t *testing.T) {
	c := defaultChain(t)
	assert.Empty(t, c.FollowUps(CapabilityQA, "Verify: x", "QA SUCCESS. Deployment Approved."))
}

func TestChain_FixCompletionYieldsNothing(t *testing.T) {
	c := defaultChain(t)
	fix := c.FollowUps(CapabilityQA, "Verify: parser", "error: boom")[0].Task
	assert.Empty(t, c.FollowUps(CapabilityEngineer, fix, "patched"))
	assert.Empty(t, c.FollowUps(CapabilityEngineer, "Fix: X | QA output: 1 failed", "done"))
	assert.Empty(t, c.FollowUps(CapabilityEngineer, "Create a README", "done"))
}

func TestChain_FixDoesNotNest(t *testing.T) {
	c := defaultChain(t)

	fix := c.FollowUps(CapabilityQA, "Verify: parser", "error: boom")[0].Task
	again := c.FollowUps(CapabilityQA, fix, "still failing")[0].Task
	assert.True(t, strings.HasPrefix(again, "Fix: parser | QA output: "))
	assert.Equal(t, 1, strings.Count(again, "QA output"))
}

func TestChain_Deterministic(t *testing.T) {
	c := defaultChain(t)
	inputs := []struct {
		c            Capability
		task, result string
	}{
		{CapabilityArchitect, "Design: x", "r"},
		{CapabilityEngineer, "Implement: y", "r"},
		{CapabilityQA, "Verify: z", "test failed"},
	}
	for _, in := range inputs {
		first := c.FollowUps(in.c, in.task, in.result)
		for i := 0; i < 10; i++ {
			if diff := cmp.Diff(first, c.FollowUps(in.c, in.task, in.result)); diff != "" {
				t.Fatalf("non-deterministic follow-ups for %q:\n%s", in.task, diff)
			}
		}
	}
}

func TestCompileBlueprint_Errors(t *testing.T) {
	_, err := CompileBlueprint([]BlueprintStep{
		{ID: "a", Template: "Implement: a", After: []string{"b"}},
		{ID: "b", Template: "Implement: b", After: []string{"a"}},
	})
	assert.ErrorContains(t, err, "cycle")

	_, err = CompileBlueprint([]BlueprintStep{{ID: "a", Template: "x", After: []string{"missing"}}})
	assert.ErrorContains(t, err, "unknown step")

	_, err = CompileBlueprint([]BlueprintStep{{ID: "a", Template: "x"}, {ID: "a", Template: "y"}})
	assert.ErrorContains(t, err, "declared twice")

	_, err = CompileBlueprint([]BlueprintStep{{ID: "a", Template: "{{.Subject"}})
	assert.Error(t, err)
}

func TestCompileBlueprint_StableOrder(t *testing.T) {
	bp, err := CompileBlueprint([]BlueprintStep{
		{ID: "tests", Template: "Implement: tests", After: []string{"core"}},
		{ID: "docs", Template: "Implement: docs"},
		{ID: "core", Template: "Implement: core"},
	})
	require.NoError(t, err)

	want := []string{"Implement: docs", "Implement: core", "Implement: tests"}
	if diff := cmp.Diff(want, bp.Expand("ignored")); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNilBlueprintExpandsToNothing(t *testing.T) {
	c := NewChain(nil)
	assert.Empty(t, c.FollowUps(CapabilityArchitect, "Design: x", "ok"))
}
