package scheduler

import (
	"sync"
)

// AgentLockManager provides per-agent mutual exclusion. Each agent name gets
// its own mutex so different agents run concurrently while a single agent
// never holds two tasks at once.
type AgentLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-agent mutexes
}

// NewAgentLockManager creates a new AgentLockManager.
func NewAgentLockManager() *AgentLockManager {
	return &AgentLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *AgentLockManager) get(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// Lock blocks until the agent's mutex is held.
func (m *AgentLockManager) Lock(name string) {
	m.get(name).Lock()
}

// TryLock acquires the agent's mutex without blocking.
// Returns false when the agent is already busy.
func (m *AgentLockManager) TryLock(name string) bool {
	return m.get(name).TryLock()
}

// Unlock releases the agent's mutex.
func (m *AgentLockManager) Unlock(name string) {
	m.mu.Lock()
	l, ok := m.locks[name]
	m.mu.Unlock()

	if ok {
		l.Unlock()
	}
}
