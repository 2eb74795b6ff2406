// ABOUTME: Conversation store keeping per-agent message history in memory.
// ABOUTME: Every mutation is written through to a durable Backend, best-effort.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single chat message. Once added to the store a message is
// immutable; streaming placeholders live in the session layer and only
// reach the store after finalization.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
}

// Conversation is the ordered message history for one agent.
// StartedAt is set when the first message is added and never changes.
type Conversation struct {
	AgentID   string
	Messages  []Message
	StartedAt time.Time
	UpdatedAt time.Time
}

// clone returns a deep copy so callers can never mutate store-owned state.
func (c *Conversation) clone() *Conversation {
	out := &Conversation{
		AgentID:   c.AgentID,
		Messages:  make([]Message, len(c.Messages)),
		StartedAt: c.StartedAt,
		UpdatedAt: c.UpdatedAt,
	}
	copy(out.Messages, c.Messages)
	return out
}

// Backend is the durable side of the store. The in-memory map is
// authoritative for the process lifetime; backend failures are logged by
// ConversationStore and never propagated to callers.
type Backend interface {
	// Load rehydrates the full agentID -> Conversation mapping at startup.
	Load(ctx context.Context) (map[string]*Conversation, error)

	// SaveMessage persists one appended message along with the
	// conversation's current StartedAt/UpdatedAt.
	SaveMessage(ctx context.Context, conv *Conversation, msg Message) error

	DeleteConversation(ctx context.Context, agentID string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// ConversationStore is the process-wide conversation state. Reads and
// writes are safe from any goroutine; each conversation context owns a
// disjoint agentID key so there is no cross-key coordination.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	backend       Backend
	logger        *slog.Logger
}

// New creates a store rehydrated from the backend. A load failure is a
// startup error; losing history silently would be worse than failing fast.
func New(ctx context.Context, backend Backend, logger *slog.Logger) (*ConversationStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("rehydrating conversations: %w", err)
	}
	if loaded == nil {
		loaded = make(map[string]*Conversation)
	}

	return &ConversationStore{
		conversations: loaded,
		backend:       backend,
		logger:        logger.With("component", "store"),
	}, nil
}

// AddMessage appends a message to the conversation for agentID, creating
// the conversation on first use. The in-memory update always succeeds;
// the durable write is write-through but best-effort.
func (s *ConversationStore) AddMessage(ctx context.Context, agentID string, msg Message) {
	now := time.Now()

	s.mu.Lock()
	conv, ok := s.conversations[agentID]
	if !ok {
		conv = &Conversation{
			AgentID:   agentID,
			StartedAt: now,
		}
		s.conversations[agentID] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now
	snapshot := conv.clone()
	s.mu.Unlock()

	if err := s.backend.SaveMessage(ctx, snapshot, msg); err != nil {
		s.logger.Error("durable write failed, in-memory state remains authoritative",
			"agent_id", agentID,
			"message_id", msg.ID,
			"error", err)
	}
}

// Messages returns the ordered message history for agentID, or an empty
// slice if no conversation exists. The returned slice is a copy.
func (s *ConversationStore) Messages(agentID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[agentID]
	if !ok {
		return nil
	}
	out := make([]Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

// ClearConversation removes the conversation for agentID entirely.
// Clearing a conversation that does not exist is a no-op.
func (s *ConversationStore) ClearConversation(ctx context.Context, agentID string) {
	s.mu.Lock()
	delete(s.conversations, agentID)
	s.mu.Unlock()

	if err := s.backend.DeleteConversation(ctx, agentID); err != nil {
		s.logger.Error("durable delete failed",
			"agent_id", agentID,
			"error", err)
	}
}

// ClearAll removes every conversation. Idempotent.
func (s *ConversationStore) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.conversations = make(map[string]*Conversation)
	s.mu.Unlock()

	if err := s.backend.DeleteAll(ctx); err != nil {
		s.logger.Error("durable delete-all failed", "error", err)
	}
}

// UpdatedToday returns copies of all conversations whose StartedAt or
// UpdatedAt falls on the current local calendar day. Used to select the
// daily sync batch.
func (s *ConversationStore) UpdatedToday() []*Conversation {
	today := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Conversation
	for _, conv := range s.conversations {
		if sameDay(conv.StartedAt, today) || sameDay(conv.UpdatedAt, today) {
			out = append(out, conv.clone())
		}
	}
	return out
}

// Summary returns a short human-readable description of a conversation,
// or an empty string if none exists.
func (s *ConversationStore) Summary(agentID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[agentID]
	if !ok {
		return ""
	}

	userCount := 0
	for _, m := range conv.Messages {
		if m.Role == RoleUser {
			userCount++
		}
	}
	return fmt.Sprintf("%d messages (%d from user)", len(conv.Messages), userCount)
}

// sameDay reports whether a and b fall on the same local calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
