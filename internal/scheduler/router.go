package scheduler

// Route picks the agent for a task. caps holds the capabilities of the
// registered agents in registration order; the index of the first one that
// accepts the task is returned, or -1 when none does.
func Route(task string, caps []Capability) int {
	in := Classify(task)
	if in == IntentNone {
		return -1
	}
	for i, c := range caps {
		if c.Intent() == in {
			return i
		}
	}
	return -1
}

// Stalled reports whether the head task can never be routed to the given
// roster. An empty queue is not stalled.
func Stalled(q *Queue, caps []Capability) (string, bool) {
	head, ok := q.Head()
	if !ok {
		return "", false
	}
	if Route(head, caps) >= 0 {
		return "", false
	}
	return head, true
}
