package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeos/companion/internal/agents"
)

// sseServer serves the given pre-framed SSE body for streaming requests.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
}

// drain collects fragments until io.EOF or an error.
func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var got []string
	for {
		frag, err := s.Recv()
		if err == io.EOF {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		got = append(got, frag)
	}
}

func TestStream_DeltaFrames(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	main, _ := agents.Lookup(agents.MainAgentID)
	stream, err := newTestClient(srv.URL).SendStream(context.Background(), main, "hi")
	require.NoError(t, err)
	defer stream.Close()

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"He", "llo"}, frags)

	// Terminated streams stay terminated.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_TextShapeAndRawFallback(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"text\":\"alpha \"}\n\n"+
		"data: not json at all\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	main, _ := agents.Lookup(agents.MainAgentID)
	stream, err := newTestClient(srv.URL).SendStream(context.Background(), main, "hi")
	require.NoError(t, err)
	defer stream.Close()

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha ", "not json at all"}, frags)
}

func TestStream_NoiseJSONIsDropped(t *testing.T) {
	srv := sseServer(t, ""+
		": comment line\n"+
		"data: {\"choices\":[{\"delta\":{}}]}\n\n"+
		"data: {\"choices\":[{\"delta\":{\"content\":\"keep\"}}]}\n\n"+
		"data: [DONE]\n\n")
	defer srv.Close()

	main, _ := agents.Lookup(agents.MainAgentID)
	stream, err := newTestClient(srv.URL).SendStream(context.Background(), main, "hi")
	require.NoError(t, err)
	defer stream.Close()

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, frags)
}

func TestStream_NaturalEOFWithoutSentinel(t *testing.T) {
	srv := sseServer(t, "data: {\"text\":\"partial\"}\n\n")
	defer srv.Close()

	main, _ := agents.Lookup(agents.MainAgentID)
	stream, err := newTestClient(srv.URL).SendStream(context.Background(), main, "hi")
	require.NoError(t, err)
	defer stream.Close()

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"partial"}, frags)
}

func TestSendStream_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	main, _ := agents.Lookup(agents.MainAgentID)
	_, err := newTestClient(srv.URL).SendStream(context.Background(), main, "hi")

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnauthorized, gwErr.Status)
}

func TestSendStream_StreamFlagAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"stream":true`)
		assert.Equal(t, "writer", r.Header.Get("x-clawdbot-agent-id"))
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	writer, _ := agents.Lookup("writer")
	stream, err := newTestClient(srv.URL).SendStream(context.Background(), writer, "draft a post")
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}
