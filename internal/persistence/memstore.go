package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/pheromone-collective/swarm/pkg/wire"
)

// MemStore is the default in-process Store — no configured
// PERSISTENCE_DSN falls back to this rather than refusing to start, so
// the agent loop degrades instead of crashing.
type MemStore struct {
	mu sync.Mutex

	states     map[string]wire.State
	thoughts   map[string][]wire.Thought
	decisions  map[string][]wire.Decision
	signals    map[string]wire.Signal
	collective []wire.CollectiveMemory
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		states:    make(map[string]wire.State),
		thoughts:  make(map[string][]wire.Thought),
		decisions: make(map[string][]wire.Decision),
		signals:   make(map[string]wire.Signal),
	}
}

func (m *MemStore) SaveAgentState(_ context.Context, agentID string, snapshot wire.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[agentID] = snapshot
	return nil
}

func (m *MemStore) LoadAgentState(_ context.Context, agentID string) (*wire.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[agentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemStore) SaveThought(_ context.Context, agentID string, t wire.Thought) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.thoughts[agentID] {
		if existing.ID == t.ID {
			m.thoughts[agentID][i] = t
			return nil
		}
	}
	m.thoughts[agentID] = append(m.thoughts[agentID], t)
	return nil
}

func (m *MemStore) SaveDecision(_ context.Context, agentID string, d wire.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.decisions[agentID] {
		if existing.ID == d.ID {
			m.decisions[agentID][i] = d
			return nil
		}
	}
	m.decisions[agentID] = append(m.decisions[agentID], d)
	return nil
}

func (m *MemStore) SaveSignal(_ context.Context, s wire.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[s.ID] = s // dedup-by-id, idempotent overwrite
	return nil
}

func (m *MemStore) SaveCollectiveMemory(_ context.Context, mem wire.CollectiveMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.collective {
		if existing.ID == mem.ID {
			m.collective[i] = mem
			return nil
		}
	}
	m.collective = append(m.collective, mem)
	return nil
}

func (m *MemStore) LoadCollectiveMemories(_ context.Context, limit int) ([]wire.CollectiveMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.CollectiveMemory, len(m.collective))
	copy(out, m.collective)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) Close() error { return nil }
