package scheduler

import (
	"fmt"
	"strings"
)

// FollowUp is a task generated by a completion. HeadOfLine tasks are
// enqueued with positive priority.
type FollowUp struct {
	Task       string
	HeadOfLine bool
}

// Priority returns the queue priority for the follow-up.
func (f FollowUp) Priority() int {
	if f.HeadOfLine {
		return 1
	}
	return 0
}

// qaTailRunes is how much of a failing QA result is quoted in the fix task.
const qaTailRunes = 100

const qaOutputMarker = " | QA output: "

// Chain generates follow-up work from completed tasks.
type Chain struct {
	blueprint *Blueprint
}

// NewChain creates a chain that expands designs with the given blueprint.
func NewChain(bp *Blueprint) *Chain {
	return &Chain{blueprint: bp}
}

// FollowUps returns the tasks to enqueue after an agent of the given
// capability finished task with result. It is a pure function of its inputs.
//
//   - ARCHITECT on a design or architecture task emits the blueprint; the
//     first step jumps the queue, the rest are appended in order.
//   - ENGINEER on an implement task emits "Verify: <subject>" at the head.
//   - QA whose result mentions fail or error emits "Fix: <subject>" at the
//     head, quoting the tail of the result.
func (c *Chain) FollowUps(capability Capability, task, result string) []FollowUp {
	switch capability {
	case CapabilityArchitect:
		if !HasKeyword(task, "design") && !HasKeyword(task, "architecture") {
			return nil
		}
		tasks := c.blueprint.Expand(Subject(task))
		out := make([]FollowUp, 0, len(tasks))
		for i, t := range tasks {
			out = append(out, FollowUp{Task: t, HeadOfLine: i == 0})
		}
		return out

	case CapabilityEngineer:
		if !HasKeyword(task, "implement") {
			return nil
		}
		return []FollowUp{{Task: "Verify: " + baseSubject(task), HeadOfLine: true}}

	case CapabilityQA:
		lower := strings.ToLower(result)
		if !strings.Contains(lower, "fail") && !strings.Contains(lower, "error") {
			return nil
		}
		fix := fmt.Sprintf("Fix: %s%s%s", baseSubject(task), qaOutputMarker, tail(result, qaTailRunes))
		return []FollowUp{{Task: fix, HeadOfLine: true}}
	}
	return nil
}

// baseSubject strips the directive and any quoted QA output so a fix raised
// on a fix task does not nest.
func baseSubject(task string) string {
	s := Subject(task)
	if i := strings.Index(s, qaOutputMarker); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
