// ABOUTME: Session coordinator gluing UI intent to the gateway and the store.
// ABOUTME: Owns the working message list and the placeholder finalize/discard edges.

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifeos/companion/internal/agents"
	"github.com/lifeos/companion/internal/store"
)

// ErrSendInFlight is returned when a send is attempted while a prior
// exchange for the same context is still awaiting its response.
var ErrSendInFlight = errors.New("a send is already in flight for this conversation")

// State tags a working-list entry. A pending entry is an assistant
// placeholder whose content is still arriving; it is not durable until
// finalized, and it is discarded outright when the exchange fails.
type State int

const (
	StateFinal State = iota
	StatePending
)

// Entry is one message in the working list together with its lifecycle tag.
type Entry struct {
	Message store.Message
	State   State
}

// ChunkStream yields streamed content fragments until io.EOF.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Sender is what the coordinator needs from the gateway client.
type Sender interface {
	Send(ctx context.Context, agent agents.Config, message string) (string, error)
	SendStream(ctx context.Context, agent agents.Config, message string) (ChunkStream, error)
	Ping(ctx context.Context) bool
}

// Coordinator manages one conversation context. Distinct contexts are
// fully independent: each owns a disjoint agent id key in the store, so
// several coordinators may have exchanges in flight concurrently.
type Coordinator struct {
	agent   agents.Config
	store   *store.ConversationStore
	sender  Sender
	logger  *slog.Logger
	updates *Broadcaster

	mu        sync.Mutex
	entries   []Entry
	sending   bool
	connected bool
	lastErr   string
}

// New creates a coordinator for the given agent id. An unknown id is
// terminal (agents.ErrAgentNotFound), not retryable.
func New(agentID string, st *store.ConversationStore, sender Sender, logger *slog.Logger) (*Coordinator, error) {
	agent, err := agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session", "agent_id", agentID)

	return &Coordinator{
		agent:   agent,
		store:   st,
		sender:  sender,
		logger:  logger,
		updates: NewBroadcaster(logger),
	}, nil
}

// Agent returns the agent config this coordinator talks to.
func (c *Coordinator) Agent() agents.Config {
	return c.agent
}

// Init loads persisted history into the working list and probes gateway
// reachability. A failed probe only clears the connected flag; history
// already loaded is never discarded. While an exchange is in flight the
// reload is skipped entirely so the pending placeholder survives and the
// eventual response still lands and persists.
func (c *Coordinator) Init(ctx context.Context) {
	history := c.store.Messages(c.agent.ID)

	c.mu.Lock()
	if !c.sending {
		c.entries = make([]Entry, 0, len(history))
		for _, m := range history {
			c.entries = append(c.entries, Entry{Message: m, State: StateFinal})
		}
	}
	c.mu.Unlock()

	connected := c.sender.Ping(ctx)

	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()

	if !connected {
		c.logger.Warn("gateway unreachable at session init")
	}
	c.updates.Publish()
}

// Send runs one non-streaming exchange: optimistic user append, assistant
// placeholder, gateway call, then finalize or discard. The error is also
// recorded on the coordinator so UI state needs no unwinding.
func (c *Coordinator) Send(ctx context.Context, content string) error {
	if err := c.begin(content); err != nil {
		return err
	}

	reply, err := c.sender.Send(ctx, c.agent, content)
	if err != nil {
		c.fail(err)
		return err
	}

	c.finalize(reply)
	return nil
}

// SendStreaming runs one streaming exchange. Fragments accumulate on the
// placeholder in receipt order; durable storage is touched exactly once,
// at finalization, to avoid per-chunk write amplification.
func (c *Coordinator) SendStreaming(ctx context.Context, content string) error {
	if err := c.begin(content); err != nil {
		return err
	}

	stream, err := c.sender.SendStream(ctx, c.agent, content)
	if err != nil {
		c.fail(err)
		return err
	}
	defer stream.Close()

	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.fail(err)
			return err
		}
		c.appendChunk(frag)
	}

	c.finalizeAccumulated()
	return nil
}

// Clear removes the durable conversation and the working list.
func (c *Coordinator) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = nil
	c.lastErr = ""
	c.mu.Unlock()

	c.store.ClearConversation(ctx, c.agent.ID)
	c.updates.Publish()
}

// Snapshot returns a copy of the working list in append order.
func (c *Coordinator) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Loading reports whether an exchange is awaiting its response.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// Connected reports the result of the last reachability probe or exchange.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Err returns the last exchange error message, or "" when the last
// exchange succeeded.
func (c *Coordinator) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers for update notifications; receivers pull Snapshot.
func (c *Coordinator) Subscribe(ctx context.Context) (<-chan struct{}, string) {
	return c.updates.Subscribe(ctx)
}

// begin is the single-flight guard plus the optimistic working-list setup:
// the user entry (persisted immediately) followed by the assistant
// placeholder (in-memory only until finalized).
func (c *Coordinator) begin(content string) error {
	now := time.Now()
	user := store.Message{
		ID:        newMessageID(store.RoleUser),
		Role:      store.RoleUser,
		Content:   content,
		Timestamp: now,
	}
	placeholder := store.Message{
		ID:        newMessageID(store.RoleAssistant),
		Role:      store.RoleAssistant,
		Timestamp: now,
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	c.lastErr = ""
	c.entries = append(c.entries,
		Entry{Message: user, State: StateFinal},
		Entry{Message: placeholder, State: StatePending},
	)
	c.mu.Unlock()

	// Persistence deliberately ignores caller cancellation: a user message,
	// once shown, must survive navigation away from the view.
	c.store.AddMessage(context.Background(), c.agent.ID, user)
	c.updates.Publish()
	return nil
}

// appendChunk applies one streamed fragment to the placeholder.
func (c *Coordinator) appendChunk(frag string) {
	c.mu.Lock()
	if i := c.pendingIndex(); i >= 0 {
		c.entries[i].Message.Content += frag
	}
	c.mu.Unlock()
	c.updates.Publish()
}

// finalize completes the placeholder with the full response text.
func (c *Coordinator) finalize(content string) {
	c.mu.Lock()
	var final store.Message
	if i := c.pendingIndex(); i >= 0 {
		c.entries[i].Message.Content = content
		c.entries[i].Message.Timestamp = time.Now()
		c.entries[i].State = StateFinal
		final = c.entries[i].Message
	}
	c.sending = false
	c.connected = true
	c.mu.Unlock()

	if final.ID != "" {
		c.store.AddMessage(context.Background(), c.agent.ID, final)
	}
	c.updates.Publish()
}

// finalizeAccumulated completes the placeholder with whatever content the
// stream delivered. This is the streaming path's single durable write.
func (c *Coordinator) finalizeAccumulated() {
	c.mu.Lock()
	var final store.Message
	if i := c.pendingIndex(); i >= 0 {
		c.entries[i].Message.Timestamp = time.Now()
		c.entries[i].State = StateFinal
		final = c.entries[i].Message
	}
	c.sending = false
	c.connected = true
	c.mu.Unlock()

	if final.ID != "" {
		c.store.AddMessage(context.Background(), c.agent.ID, final)
	}
	c.updates.Publish()
}

// fail discards the placeholder and surfaces the error. The user's message
// stays (already persisted); retry is manual.
func (c *Coordinator) fail(err error) {
	c.logger.Warn("exchange failed", "error", err)

	c.mu.Lock()
	if i := c.pendingIndex(); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
	c.sending = false
	c.lastErr = err.Error()
	c.mu.Unlock()

	c.updates.Publish()
}

// pendingIndex finds the placeholder. At most one exists at a time (the
// single-flight guard), and it is always the newest entry.
func (c *Coordinator) pendingIndex() int {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].State == StatePending {
			return i
		}
	}
	return -1
}

// newMessageID builds a role-prefixed unique id. The role prefix keeps ids
// readable in logs; the UUID removes the same-millisecond collision the
// timestamp-only scheme had.
func newMessageID(role string) string {
	return role + "-" + uuid.New().String()
}
