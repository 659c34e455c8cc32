// Package memory holds the project-wide log every agent and the orchestrator
// write to, plus a small key/value context store.
package memory

import (
	"strings"
	"sync"
	"time"
)

// Level classifies a memory entry.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERR"
	LevelDebug   Level = "DEBUG"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 1000

// Entry is one record in shared memory. Seq increases by one per append and
// survives eviction, so readers can tell how many entries they missed.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// Sink observes entries after they are appended. It runs outside the memory
// lock and must not block.
type Sink func(Entry)

// Memory is an append-only bounded log. All methods are safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries *Ring[Entry]
	seq     uint64
	kv      map[string]string
	sink    Sink
	now     func() time.Time
}

// New creates a memory with the given capacity; capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		entries: NewRing[Entry](capacity),
		kv:      make(map[string]string),
		now:     time.Now,
	}
}

// SetSink installs an observer for new entries. Pass nil to remove it.
func (m *Memory) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// Append records a message and returns the stored entry.
func (m *Memory) Append(source string, level Level, message string) Entry {
	m.mu.Lock()
	m.seq++
	e := Entry{
		Seq:       m.seq,
		Timestamp: m.now(),
		Source:    source,
		Level:     level,
		Message:   message,
	}
	m.entries.Push(e)
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		sink(e)
	}
	return e
}

// Recent returns up to n most recent entries, oldest first. n <= 0 returns all.
func (m *Memory) Recent(n int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Last(n)
}

// All returns every retained entry, oldest first.
func (m *Memory) All() []Entry {
	return m.Recent(0)
}

// Len returns the number of retained entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// Cap returns the memory capacity.
func (m *Memory) Cap() int {
	return m.entries.Cap()
}

// Find returns retained entries whose message contains substr, case-insensitively.
func (m *Memory) Find(substr string) []Entry {
	needle := strings.ToLower(substr)
	var out []Entry
	for _, e := range m.All() {
		if strings.Contains(strings.ToLower(e.Message), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Restore replaces the log with entries. The sequence counter continues from
// the highest restored Seq.
func (m *Memory) Restore(entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Reset(entries)
	m.seq = 0
	for _, e := range entries {
		if e.Seq > m.seq {
			m.seq = e.Seq
		}
	}
}

// SetContext stores a context value shared between agents.
func (m *Memory) SetContext(key, value string) {
	m.mu.Lock()
	m.kv[key] = value
	m.mu.Unlock()
}

// Context returns a context value.
func (m *Memory) Context(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok
}

// ContextMap returns a copy of the context store.
func (m *Memory) ContextMap() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.kv))
	for k, v := range m.kv {
		out[k] = v
	}
	return out
}

// RestoreContext replaces the context store.
func (m *Memory) RestoreContext(kv map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv = make(map[string]string, len(kv))
	for k, v := range kv {
		m.kv[k] = v
	}
}
