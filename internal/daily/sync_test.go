package daily

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeos/companion/internal/dedupe"
	"github.com/lifeos/companion/internal/store"
)

// mockSubmitter records submitted payloads and replays canned replies.
type mockSubmitter struct {
	payloads []string
	reply    string
	err      error
}

func (m *mockSubmitter) SyncMessage(ctx context.Context, content string) (string, error) {
	m.payloads = append(m.payloads, content)
	return m.reply, m.err
}

func newSyncStore(t *testing.T) *store.ConversationStore {
	t.Helper()
	st, err := store.New(context.Background(), store.NewMockBackend(), nil)
	require.NoError(t, err)
	return st
}

func TestSync_SubmitsTodaysConversations(t *testing.T) {
	st := newSyncStore(t)
	ctx := context.Background()

	st.AddMessage(ctx, "main", store.Message{ID: "u-1", Role: store.RoleUser, Content: "hello", Timestamp: time.Now()})
	st.AddMessage(ctx, "main", store.Message{ID: "a-1", Role: store.RoleAssistant, Content: "hi", Timestamp: time.Now()})

	gw := &mockSubmitter{reply: "Logged. HEARTBEAT_OK"}
	syncer := New(st, gw, nil, 0, nil)

	synced, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	require.Len(t, gw.payloads, 1)
	payload := gw.payloads[0]
	assert.Contains(t, payload, `[MOBILE SYNC] Log this conversation from agent "main"`)
	assert.Contains(t, payload, "[user]: hello")
	assert.Contains(t, payload, "[assistant]: hi")
	assert.Contains(t, payload, "HEARTBEAT_OK")
}

func TestSync_MissingAckIsFailure(t *testing.T) {
	st := newSyncStore(t)
	ctx := context.Background()
	st.AddMessage(ctx, "main", store.Message{ID: "u-1", Role: store.RoleUser, Content: "hello", Timestamp: time.Now()})

	gw := &mockSubmitter{reply: "sure, saved it"} // 200 OK but no ack token
	syncer := New(st, gw, nil, 0, nil)

	synced, err := syncer.Sync(ctx)
	assert.Equal(t, 0, synced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not acknowledge")
}

func TestSync_GatewayErrorDoesNotBlockOthers(t *testing.T) {
	st := newSyncStore(t)
	ctx := context.Background()
	st.AddMessage(ctx, "main", store.Message{ID: "u-1", Role: store.RoleUser, Content: "a", Timestamp: time.Now()})
	st.AddMessage(ctx, "writer", store.Message{ID: "u-2", Role: store.RoleUser, Content: "b", Timestamp: time.Now()})

	calls := 0
	gw := &flakySubmitter{failFirst: true, calls: &calls}
	syncer := New(st, gw, nil, 0, nil)

	synced, err := syncer.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, synced)
	assert.Equal(t, 2, calls, "second conversation still attempted")
}

type flakySubmitter struct {
	failFirst bool
	calls     *int
}

func (f *flakySubmitter) SyncMessage(ctx context.Context, content string) (string, error) {
	*f.calls++
	if f.failFirst && *f.calls == 1 {
		return "", errors.New("gateway unreachable")
	}
	return "HEARTBEAT_OK", nil
}

func TestSync_DedupeSuppressesUnchanged(t *testing.T) {
	st := newSyncStore(t)
	ctx := context.Background()
	st.AddMessage(ctx, "main", store.Message{ID: "u-1", Role: store.RoleUser, Content: "hello", Timestamp: time.Now()})

	cache := dedupe.New(24*time.Hour, 128)
	defer cache.Close()

	gw := &mockSubmitter{reply: "HEARTBEAT_OK"}
	syncer := New(st, gw, cache, 0, nil)

	synced, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	// Unchanged conversation: second run submits nothing.
	synced, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
	assert.Len(t, gw.payloads, 1)

	// New message changes the revision; it syncs again.
	st.AddMessage(ctx, "main", store.Message{ID: "u-2", Role: store.RoleUser, Content: "more", Timestamp: time.Now()})
	synced, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestSync_FailedSubmissionIsRetried(t *testing.T) {
	st := newSyncStore(t)
	ctx := context.Background()
	st.AddMessage(ctx, "main", store.Message{ID: "u-1", Role: store.RoleUser, Content: "hello", Timestamp: time.Now()})

	cache := dedupe.New(24*time.Hour, 128)
	defer cache.Close()

	gw := &mockSubmitter{err: errors.New("connection refused")}
	syncer := New(st, gw, cache, 0, nil)

	_, err := syncer.Sync(ctx)
	require.Error(t, err)

	// The key was not marked, so a retry submits again.
	gw.err = nil
	gw.reply = "HEARTBEAT_OK"
	synced, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestDigest_Truncation(t *testing.T) {
	st := newSyncStore(t)
	syncer := New(st, &mockSubmitter{}, nil, 20, nil)

	long := strings.Repeat("x", 50)
	conv := &store.Conversation{
		AgentID: "main",
		Messages: []store.Message{
			{Role: store.RoleUser, Content: long},
			{Role: store.RoleAssistant, Content: "short"},
		},
	}

	digest := syncer.Digest(conv)
	lines := strings.Split(digest, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[user]: "+strings.Repeat("x", 17)+"...", lines[0])
	assert.Equal(t, "[assistant]: short", lines[1])
}

func TestDigest_TinyPreviewLen(t *testing.T) {
	st := newSyncStore(t)
	// A preview length too small for the ellipsis must still produce a
	// bounded line, never a slice panic.
	syncer := New(st, &mockSubmitter{}, nil, 2, nil)

	conv := &store.Conversation{
		AgentID: "main",
		Messages: []store.Message{
			{Role: store.RoleUser, Content: "hello world"},
		},
	}

	assert.Equal(t, "[user]: he", syncer.Digest(conv))
}

func TestDigest_CutsOnRuneBoundary(t *testing.T) {
	st := newSyncStore(t)
	syncer := New(st, &mockSubmitter{}, nil, 10, nil)

	conv := &store.Conversation{
		AgentID: "main",
		Messages: []store.Message{
			{Role: store.RoleUser, Content: strings.Repeat("é", 20)},
		},
	}

	digest := syncer.Digest(conv)
	assert.True(t, utf8.ValidString(digest), "digest must stay valid UTF-8")
	assert.Equal(t, "[user]: "+strings.Repeat("é", 3)+"...", digest)
}

func TestSync_EmptyStoreIsNoop(t *testing.T) {
	st := newSyncStore(t)
	gw := &mockSubmitter{}
	syncer := New(st, gw, nil, 0, nil)

	synced, err := syncer.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, synced)
	assert.Empty(t, gw.payloads)
}
