package backend

import (
	"context"
	"encoding/json"
	"sync"
)

// Reply is one scripted provider response. Func, when set, is called instead
// of returning Text and Err.
type Reply struct {
	Text string
	Err  error
	Func func(ctx context.Context, system, user string) (string, error)
}

// Scripted replays queued replies in order. When the queue is empty it
// finishes every task, which makes it usable as a dry-run provider.
type Scripted struct {
	name string

	mu      sync.Mutex
	replies []Reply
	calls   []ScriptedCall
}

// ScriptedCall records the prompts a Scripted provider received.
type ScriptedCall struct {
	System string
	User   string
}

// NewScripted creates an empty scripted provider.
func NewScripted(name string) *Scripted {
	if name == "" {
		name = TypeScripted
	}
	return &Scripted{name: name}
}

// Name returns the provider name.
func (s *Scripted) Name() string { return s.name }

// Push queues replies.
func (s *Scripted) Push(replies ...Reply) *Scripted {
	s.mu.Lock()
	s.replies = append(s.replies, replies...)
	s.mu.Unlock()
	return s
}

// PushDecision queues a reply that encodes d as JSON.
func (s *Scripted) PushDecision(d Decision) *Scripted {
	b, _ := json.Marshal(d)
	return s.Push(Reply{Text: string(b)})
}

// Calls returns the prompts received so far.
func (s *Scripted) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScriptedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Complete returns the next queued reply.
func (s *Scripted) Complete(ctx context.Context, system, user string, _ float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.calls = append(s.calls, ScriptedCall{System: system, User: user})
	if len(s.replies) == 0 {
		s.mu.Unlock()
		return `{"thought": "nothing scripted", "tool": "FINAL_ANSWER", "result": "Task Completed"}`, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	if r.Func != nil {
		return r.Func(ctx, system, user)
	}
	return r.Text, r.Err
}
