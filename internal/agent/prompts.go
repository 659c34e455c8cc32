package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dweebuild/dweebuild/internal/scheduler"
)

var rolePrompts = map[scheduler.Capability]string{
	scheduler.CapabilityArchitect: `You are the Chief Architect.
Your goal is to scaffold the project structure for the mission.

STRATEGY:
1. Think about the file structure the mission needs.
2. Create files one by one with file_write.
3. When the structure is in place, call FINAL_ANSWER with a short summary.`,

	scheduler.CapabilityEngineer: `You are a Principal Software Engineer.
Your goal is to implement the current task with precision.

STRATEGY:
1. If you don't know the file structure, list or search it.
2. If you need to see existing code, read it.
3. When ready, write the source and its tests.
4. When both source and tests are written, call FINAL_ANSWER.`,

	scheduler.CapabilityQA: `You are the QA Lead.
Your goal is to verify the work by running the test suite.

STRATEGY:
1. Run the tests.
2. Call FINAL_ANSWER quoting the test summary. Say FAILED if anything failed.`,
}

// DefaultRolePrompt returns the built-in role prompt for a capability.
func DefaultRolePrompt(c scheduler.Capability) string {
	return rolePrompts[c]
}

const decisionFormat = `Return JSON ONLY:
{
    "thought": "reasoning about what to do next",
    "tool": "tool_name or FINAL_ANSWER",
    "args": { ... },
    "result": "summary, only with FINAL_ANSWER"
}`

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.rolePrompt))
	b.WriteString("\n\nAVAILABLE TOOLS:\n")
	if a.tools != nil {
		b.WriteString(a.tools.Describe())
	}
	b.WriteString("- FINAL_ANSWER: finish the task. put the outcome in \"result\"\n\n")
	b.WriteString(decisionFormat)
	return b.String()
}

// userPrompt is deterministic for a given task, context and observation list.
func userPrompt(task string, kv map[string]string, observations []string) string {
	var b strings.Builder
	if m := kv["mission"]; m != "" {
		fmt.Fprintf(&b, "MISSION: %s\n", m)
	}
	fmt.Fprintf(&b, "CURRENT TASK: %s\n", task)

	keys := make([]string, 0, len(kv))
	for k := range kv {
		if k != "mission" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		b.WriteString("PROJECT CONTEXT:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, kv[k])
		}
	}

	b.WriteString("CONTEXT:\n")
	if len(observations) == 0 {
		b.WriteString("(no actions taken yet)\n")
	}
	for i, o := range observations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, o)
	}
	return b.String()
}
