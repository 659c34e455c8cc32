package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrEmptyTask is returned when enqueueing blank task text.
	ErrEmptyTask = errors.New("task text is empty")
	// ErrIndexOutOfRange is returned by Remove and Move for invalid positions.
	ErrIndexOutOfRange = errors.New("queue index out of range")
)

// Queue is an ordered, priority-aware deque of task directives.
//
// Only the head is ever routed: a head that no capability accepts blocks the
// tasks behind it until an operator removes or moves it.
type Queue struct {
	mu    sync.Mutex
	items []string
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a task. A positive priority places it at the head, anything
// else appends it to the tail.
func (q *Queue) Enqueue(task string, priority int) error {
	if strings.TrimSpace(task) == "" {
		return ErrEmptyTask
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if priority > 0 {
		q.items = append([]string{task}, q.items...)
	} else {
		q.items = append(q.items, task)
	}
	return nil
}

// Head returns the first task without removing it.
func (q *Queue) Head() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

// PeekReady returns the head task if the capability accepts it.
func (q *Queue) PeekReady(c Capability) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || !c.Accepts(q.items[0]) {
		return "", false
	}
	return q.items[0], true
}

// TakeReady atomically removes and returns the head task if the capability
// accepts it.
func (q *Queue) TakeReady(c Capability) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || !c.Accepts(q.items[0]) {
		return "", false
	}
	task := q.items[0]
	q.items = q.items[1:]
	return task, true
}

// Consume removes the head if it equals task. It pairs with PeekReady for
// callers that need to inspect before committing.
func (q *Queue) Consume(task string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0] != task {
		return false
	}
	q.items = q.items[1:]
	return true
}

// Remove deletes the task at index i and returns it.
func (q *Queue) Remove(i int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.items) {
		return "", fmt.Errorf("remove %d of %d: %w", i, len(q.items), ErrIndexOutOfRange)
	}
	task := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return task, nil
}

// Move relocates the task at index from to index to, shifting the others.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	task := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]string{task}, q.items[to:]...)...)
	return nil
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queue in order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}

// Restore replaces the queue contents.
func (q *Queue) Restore(tasks []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]string, 0, len(tasks))
	for _, t := range tasks {
		if strings.TrimSpace(t) != "" {
			q.items = append(q.items, t)
		}
	}
}
