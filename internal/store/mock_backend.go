// ABOUTME: Mock Backend implementation for testing.
// ABOUTME: Allows tests to run without SQLite and to inject durable failures.

package store

import (
	"context"
	"sync"
)

// MockBackend is an in-memory Backend for tests. It counts writes so tests
// can assert persistence behavior (for example, one write per finalized
// assistant message regardless of stream chunk count), and it can be
// seeded and made to fail.
type MockBackend struct {
	mu sync.Mutex

	// Seed is returned by Load. Nil means start empty.
	Seed map[string]*Conversation

	// FailSaves makes SaveMessage return FailErr when set.
	FailSaves bool
	FailErr   error

	saved       map[string][]Message // agentID -> persisted messages
	saveCount   int
	deleteCalls int
}

// NewMockBackend creates an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		saved: make(map[string][]Message),
	}
}

func (m *MockBackend) Load(ctx context.Context) (map[string]*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Seed == nil {
		return make(map[string]*Conversation), nil
	}
	out := make(map[string]*Conversation, len(m.Seed))
	for k, v := range m.Seed {
		out[k] = v.clone()
	}
	return out, nil
}

func (m *MockBackend) SaveMessage(ctx context.Context, conv *Conversation, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaves {
		return m.FailErr
	}
	m.saved[conv.AgentID] = append(m.saved[conv.AgentID], msg)
	m.saveCount++
	return nil
}

func (m *MockBackend) DeleteConversation(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.saved, agentID)
	m.deleteCalls++
	return nil
}

func (m *MockBackend) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = make(map[string][]Message)
	m.deleteCalls++
	return nil
}

func (m *MockBackend) Close() error { return nil }

// Saved returns the messages persisted for agentID.
func (m *MockBackend) Saved(agentID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.saved[agentID]))
	copy(out, m.saved[agentID])
	return out
}

// SaveCount returns the total number of successful SaveMessage calls.
func (m *MockBackend) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}
