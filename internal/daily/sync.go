// ABOUTME: Daily sync of local conversations to the gateway for summarization.
// ABOUTME: Renders digests of today's conversations and verifies the ack token.

package daily

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lifeos/companion/internal/dedupe"
	"github.com/lifeos/companion/internal/store"
)

// ackToken is the application-level success signal embedded in the
// gateway's reply text. HTTP status alone is not trusted for sync.
const ackToken = "HEARTBEAT_OK"

// vaultPath is where the server is instructed to file the digest.
const vaultPath = "/root/clawd/vault/obsidian/LifeOS/Mobile/conversations/"

// DefaultMaxPreviewLen bounds each digest line's content prefix.
const DefaultMaxPreviewLen = 100

// Submitter is what the syncer needs from the gateway client.
type Submitter interface {
	SyncMessage(ctx context.Context, content string) (string, error)
}

// Syncer submits digests of today's conversations to the main agent.
// The dedupe cache keys on agent id plus content revision, so an
// unchanged conversation is submitted at most once per day.
type Syncer struct {
	store         *store.ConversationStore
	gateway       Submitter
	cache         *dedupe.Cache
	maxPreviewLen int
	logger        *slog.Logger
}

// New creates a Syncer. maxPreviewLen <= 0 selects the default.
func New(st *store.ConversationStore, gw Submitter, cache *dedupe.Cache, maxPreviewLen int, logger *slog.Logger) *Syncer {
	if maxPreviewLen <= 0 {
		maxPreviewLen = DefaultMaxPreviewLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:         st,
		gateway:       gw,
		cache:         cache,
		maxPreviewLen: maxPreviewLen,
		logger:        logger.With("component", "daily-sync"),
	}
}

// Sync submits every conversation touched today. It returns how many were
// submitted and acknowledged; per-conversation failures are joined into
// the returned error so one bad conversation never blocks the rest.
//
// Dedupe follows check -> submit -> mark: a key is only marked after the
// ack arrives, so a failed submission is retried on the next run.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	convs := s.store.UpdatedToday()
	if len(convs) == 0 {
		s.logger.Info("nothing to sync")
		return 0, nil
	}

	synced := 0
	var errs []error
	for _, conv := range convs {
		key := syncKey(conv)
		if s.cache != nil && s.cache.Check(key) {
			s.logger.Debug("digest unchanged since last sync, skipping",
				"agent_id", conv.AgentID)
			continue
		}

		if err := s.syncOne(ctx, conv); err != nil {
			s.logger.Warn("conversation sync failed",
				"agent_id", conv.AgentID,
				"error", err)
			errs = append(errs, fmt.Errorf("agent %s: %w", conv.AgentID, err))
			continue
		}

		if s.cache != nil {
			s.cache.Mark(key)
		}
		synced++
	}

	s.logger.Info("sync finished", "submitted", synced, "failed", len(errs))
	return synced, errors.Join(errs...)
}

// syncOne submits a single conversation digest and checks the ack.
func (s *Syncer) syncOne(ctx context.Context, conv *store.Conversation) error {
	reply, err := s.gateway.SyncMessage(ctx, s.buildPrompt(conv))
	if err != nil {
		return err
	}
	if !strings.Contains(reply, ackToken) {
		return fmt.Errorf("gateway did not acknowledge sync (no %s in reply)", ackToken)
	}
	return nil
}

// buildPrompt wraps the digest in the server-side logging instruction.
func (s *Syncer) buildPrompt(conv *store.Conversation) string {
	return fmt.Sprintf(
		"[MOBILE SYNC] Log this conversation from agent %q:\n\n%s\n\nSave to %s and respond with %s",
		conv.AgentID, s.Digest(conv), vaultPath, ackToken)
}

// Digest renders a conversation as human-readable "[role]: content" lines,
// each content bounded to the configured prefix length.
func (s *Syncer) Digest(conv *store.Conversation) string {
	lines := make([]string, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.Role, truncate(m.Content, s.maxPreviewLen)))
	}
	return strings.Join(lines, "\n")
}

// syncKey identifies one content revision of one conversation. UpdatedAt
// changes on every mutation, so a touched conversation gets a fresh key.
func syncKey(conv *store.Conversation) string {
	return fmt.Sprintf("sync:%s:%s:%d",
		conv.AgentID,
		time.Now().Format("2006-01-02"),
		conv.UpdatedAt.UnixNano())
}

// truncate shortens a string to at most maxLen bytes, appending "..." when
// there is room for it. Cuts land on rune boundaries so digest lines stay
// valid UTF-8.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut, ellipsis := maxLen-3, "..."
	if maxLen <= 3 {
		cut, ellipsis = maxLen, ""
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
